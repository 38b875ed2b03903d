package tx

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common"
)

// DepositScriptParams are the values a depositor commits to in the funding
// output.
type DepositScriptParams struct {
	Depositor        common.Address
	BlindingFactor   [8]byte
	WalletPubKeyHash [20]byte
	RefundPubKeyHash [20]byte
	RefundLocktime   [4]byte // little-endian, as it appears in the script
}

// DepositScript returns the redeem script locking a deposit:
//
//	<depositor> DROP <blinding> DROP
//	DUP HASH160 <walletPKH> EQUAL
//	IF CHECKSIG
//	ELSE DUP HASH160 <refundPKH> EQUALVERIFY <locktime> CHECKLOCKTIMEVERIFY DROP CHECKSIG
//	ENDIF
func DepositScript(p DepositScriptParams) ([]byte, error) {
	script, err := txscript.NewScriptBuilder().
		AddData(p.Depositor[:]).
		AddOp(txscript.OP_DROP).
		AddData(p.BlindingFactor[:]).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(p.WalletPubKeyHash[:]).
		AddOp(txscript.OP_EQUAL).
		AddOp(txscript.OP_IF).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_ELSE).
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(p.RefundPubKeyHash[:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddData(p.RefundLocktime[:]).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_ENDIF).
		Script()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptBuild, err)
	}
	return script, nil
}

// ExpectedDepositScriptHash returns the commitment a funding output of the
// given kind must carry: HASH160 of the redeem script for P2SH, single
// SHA-256 for P2WSH.
func ExpectedDepositScriptHash(kind ScriptKind, p DepositScriptParams) ([]byte, error) {
	script, err := DepositScript(p)
	if err != nil {
		return nil, err
	}
	switch kind {
	case P2SH:
		return Hash160(script), nil
	case P2WSH:
		return chainhash.HashB(script), nil
	default:
		return nil, fmt.Errorf("%w: deposit cannot be funded with %s", ErrUnsupportedScript, kind)
	}
}

// DepositOutputScript returns the locking script of a funding output of the
// given kind.
func DepositOutputScript(kind ScriptKind, p DepositScriptParams) ([]byte, error) {
	h, err := ExpectedDepositScriptHash(kind, p)
	if err != nil {
		return nil, err
	}
	b := txscript.NewScriptBuilder()
	if kind == P2SH {
		b.AddOp(txscript.OP_HASH160).AddData(h).AddOp(txscript.OP_EQUAL)
	} else {
		b.AddOp(txscript.OP_0).AddData(h)
	}
	return b.Script()
}
