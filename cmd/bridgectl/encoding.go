package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/tx"
)

// decodeFixed decodes a 0x-prefixed hex string of exactly n bytes.
func decodeFixed(s string, n int) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("got %d bytes, want %d", len(b), n)
	}
	return b, nil
}

// pkh is a 20-byte public key hash in JSON hex.
type pkh [20]byte

func (p pkh) MarshalText() ([]byte, error) { return hexutil.Bytes(p[:]).MarshalText() }

func (p *pkh) UnmarshalText(text []byte) error {
	b, err := decodeFixed(string(text), len(p))
	if err != nil {
		return fmt.Errorf("public key hash: %w", err)
	}
	copy(p[:], b)
	return nil
}

// hash32 is a 32-byte identifier in JSON hex, in internal byte order.
type hash32 [32]byte

func (h hash32) MarshalText() ([]byte, error) { return hexutil.Bytes(h[:]).MarshalText() }

func (h *hash32) UnmarshalText(text []byte) error {
	b, err := decodeFixed(string(text), len(h))
	if err != nil {
		return err
	}
	copy(h[:], b)
	return nil
}

// txid is a transaction hash in the reversed display order used by nodes
// and block explorers.
type txid chainhash.Hash

func (t txid) MarshalText() ([]byte, error) { return []byte(chainhash.Hash(t).String()), nil }

func (t *txid) UnmarshalText(text []byte) error {
	h, err := chainhash.NewHashFromStr(string(text))
	if err != nil {
		return fmt.Errorf("txid: %w", err)
	}
	*t = txid(*h)
	return nil
}

type utxoJSON struct {
	TxHash        txid   `json:"tx_hash"`
	TxOutputIndex uint32 `json:"tx_output_index"`
	TxOutputValue uint64 `json:"tx_output_value"`
}

func (u *utxoJSON) utxo() tx.UTXO {
	if u == nil {
		return tx.UTXO{}
	}
	return tx.UTXO{
		TxHash:        chainhash.Hash(u.TxHash),
		TxOutputIndex: u.TxOutputIndex,
		TxOutputValue: u.TxOutputValue,
	}
}

func newUTXOJSON(u tx.UTXO) *utxoJSON {
	if u.IsZero() {
		return nil
	}
	return &utxoJSON{TxHash: txid(u.TxHash), TxOutputIndex: u.TxOutputIndex, TxOutputValue: u.TxOutputValue}
}

type proofJSON struct {
	MerkleProof    hexutil.Bytes `json:"merkle_proof"`
	TxIndexInBlock uint32        `json:"tx_index_in_block"`
	BitcoinHeaders hexutil.Bytes `json:"bitcoin_headers"`
}

func (p *proofJSON) proof() *spv.Proof {
	if p == nil {
		return nil
	}
	return &spv.Proof{
		MerkleProof:    p.MerkleProof,
		TxIndexInBlock: p.TxIndexInBlock,
		BitcoinHeaders: p.BitcoinHeaders,
	}
}

// txProofRequest is the common shape of every proof submission.
type txProofRequest struct {
	Tx               hexutil.Bytes  `json:"tx"`
	Proof            *proofJSON     `json:"proof"`
	MainUtxo         *utxoJSON      `json:"main_utxo,omitempty"`
	WalletPubKeyHash pkh            `json:"wallet_pubkey_hash"`
	Vault            common.Address `json:"vault"`
}

type revealRequest struct {
	FundingTx          hexutil.Bytes  `json:"funding_tx"`
	FundingOutputIndex uint32         `json:"funding_output_index"`
	Depositor          common.Address `json:"depositor"`
	BlindingFactor     hexutil.Bytes  `json:"blinding_factor"`
	WalletPubKeyHash   pkh            `json:"wallet_pubkey_hash"`
	RefundPubKeyHash   pkh            `json:"refund_pubkey_hash"`
	RefundLocktime     hexutil.Bytes  `json:"refund_locktime"`
	Vault              common.Address `json:"vault"`
}

type redemptionRequestJSON struct {
	Redeemer             common.Address `json:"redeemer"`
	WalletPubKeyHash     pkh            `json:"wallet_pubkey_hash"`
	MainUtxo             *utxoJSON      `json:"main_utxo"`
	RedeemerOutputScript hexutil.Bytes  `json:"redeemer_output_script,omitempty"`
	RedeemerAddress      string         `json:"redeemer_address,omitempty"`
	Amount               uint64         `json:"amount"`
}

type commitmentJSON struct {
	WalletPubKeyHash pkh            `json:"wallet_pubkey_hash"`
	MainUtxo         *utxoJSON      `json:"main_utxo"`
	WalletMembersIDs []uint32       `json:"wallet_members_ids"`
	MemberIndex      int            `json:"member_index"`
	Submitter        common.Address `json:"submitter"`
	TargetWallets    []pkh          `json:"target_wallets"`
}

// readRequest decodes a JSON request from path, or standard input for "-".
func readRequest(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// printJSON writes v to standard output as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
