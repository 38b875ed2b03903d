package tx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptKind is the closed set of output templates the bridge understands.
type ScriptKind int

const (
	Unrecognized ScriptKind = iota
	P2PKH
	P2WPKH
	P2SH
	P2WSH
)

// String returns the conventional template name.
func (k ScriptKind) String() string {
	switch k {
	case P2PKH:
		return "p2pkh"
	case P2WPKH:
		return "p2wpkh"
	case P2SH:
		return "p2sh"
	case P2WSH:
		return "p2wsh"
	default:
		return "unrecognized"
	}
}

// Classify returns the template kind of script.
func Classify(script []byte) ScriptKind {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyHashTy:
		return P2PKH
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKH
	case txscript.ScriptHashTy:
		return P2SH
	case txscript.WitnessV0ScriptHashTy:
		return P2WSH
	default:
		return Unrecognized
	}
}

// ExtractHash returns the template kind of script and the hash it commits to:
// 20 bytes for P2PKH, P2WPKH and P2SH, 32 bytes for P2WSH.
func ExtractHash(script []byte) (ScriptKind, []byte, error) {
	kind := Classify(script)
	switch kind {
	case P2PKH:
		// OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG
		return kind, script[3:23], nil
	case P2WPKH:
		// OP_0 <20>
		return kind, script[2:22], nil
	case P2SH:
		// OP_HASH160 <20> OP_EQUAL
		return kind, script[2:22], nil
	case P2WSH:
		// OP_0 <32>
		return kind, script[2:34], nil
	default:
		return Unrecognized, nil, fmt.Errorf("%w: %x", ErrUnsupportedScript, script)
	}
}

// ExtractPubKeyHash returns the 20-byte key hash paid by a P2PKH or P2WPKH
// script.
func ExtractPubKeyHash(script []byte) ([20]byte, error) {
	var pkh [20]byte
	kind, h, err := ExtractHash(script)
	if err != nil {
		return pkh, err
	}
	if kind != P2PKH && kind != P2WPKH {
		return pkh, fmt.Errorf("%w: %s is not a key hash template", ErrUnsupportedScript, kind)
	}
	copy(pkh[:], h)
	return pkh, nil
}

// PubKeyHashScripts returns the P2PKH and P2WPKH scripts paying pkh.
func PubKeyHashScripts(pkh [20]byte) (p2pkh, p2wpkh []byte) {
	// Network parameters only affect address encoding, not scripts.
	params := &chaincfg.MainNetParams
	a, err := btcutil.NewAddressPubKeyHash(pkh[:], params)
	if err == nil {
		p2pkh, _ = txscript.PayToAddrScript(a)
	}
	w, err := btcutil.NewAddressWitnessPubKeyHash(pkh[:], params)
	if err == nil {
		p2wpkh, _ = txscript.PayToAddrScript(w)
	}
	return p2pkh, p2wpkh
}

// IsStandardOutputScript reports whether script is one of the recognized
// payment templates.
func IsStandardOutputScript(script []byte) bool {
	return Classify(script) != Unrecognized
}
