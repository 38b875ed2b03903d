package tx

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Input is a transaction input: the outpoint it spends plus its unlocking data.
type Input struct {
	PrevTxHash      chainhash.Hash
	PrevOutputIndex uint32
	SignatureScript []byte
	Sequence        uint32
}

// Output is a transaction output.
type Output struct {
	Value  uint64 // satoshis
	Script []byte // locking script, no length prefix
}

// Transaction is a parsed Bitcoin transaction in the form consumed by proofs:
// version | input vector | output vector | locktime. Witness data is never
// part of it.
type Transaction struct {
	Version  int32
	LockTime uint32

	inputs  []Input
	outputs []Output
	msg     *wire.MsgTx
	hash    chainhash.Hash
}

// ParseTransaction decodes a raw transaction. The whole buffer must be
// consumed and both vectors must be non-empty.
func ParseTransaction(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedTransaction)
	}

	msg := new(wire.MsgTx)
	r := bytes.NewReader(raw)
	if err := msg.DeserializeNoWitness(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransaction, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTransaction, r.Len())
	}
	if len(msg.TxIn) == 0 {
		return nil, fmt.Errorf("%w: empty input vector", ErrMalformedTransaction)
	}
	if len(msg.TxOut) == 0 {
		return nil, fmt.Errorf("%w: empty output vector", ErrMalformedTransaction)
	}

	t := &Transaction{
		Version:  msg.Version,
		LockTime: msg.LockTime,
		inputs:   make([]Input, len(msg.TxIn)),
		outputs:  make([]Output, len(msg.TxOut)),
		msg:      msg,
		hash:     chainhash.DoubleHashH(raw),
	}
	for i, in := range msg.TxIn {
		t.inputs[i] = Input{
			PrevTxHash:      in.PreviousOutPoint.Hash,
			PrevOutputIndex: in.PreviousOutPoint.Index,
			SignatureScript: in.SignatureScript,
			Sequence:        in.Sequence,
		}
	}
	for i, out := range msg.TxOut {
		if out.Value < 0 {
			return nil, fmt.Errorf("%w: output %d has negative value", ErrMalformedTransaction, i)
		}
		t.outputs[i] = Output{Value: uint64(out.Value), Script: out.PkScript}
	}

	return t, nil
}

// NewTransaction wraps an already built wire transaction.
func NewTransaction(msg *wire.MsgTx) (*Transaction, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrMalformedTransaction)
	}
	var buf bytes.Buffer
	if err := msg.SerializeNoWitness(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransaction, err)
	}
	return ParseTransaction(buf.Bytes())
}

// Hash returns the double SHA-256 of the serialization in internal byte
// order. Hash().String() is the byte-reversed display form.
func (t *Transaction) Hash() chainhash.Hash {
	return t.hash
}

// Serialize returns the non-witness serialization.
func (t *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Grow(t.msg.SerializeSizeStripped())
	// Writes to a bytes.Buffer cannot fail.
	_ = t.msg.SerializeNoWitness(&buf)
	return buf.Bytes()
}

// Inputs returns the input vector.
func (t *Transaction) Inputs() []Input { return t.inputs }

// Outputs returns the output vector.
func (t *Transaction) Outputs() []Output { return t.outputs }

// Output returns the output at index i.
func (t *Transaction) Output(i uint32) (Output, error) {
	if int(i) >= len(t.outputs) {
		return Output{}, fmt.Errorf("%w: index %d, %d outputs", ErrOutputIndex, i, len(t.outputs))
	}
	return t.outputs[i], nil
}

// Outpoint returns the previous transaction hash and output index spent by
// input i.
func (t *Transaction) Outpoint(i int) (chainhash.Hash, uint32) {
	in := t.inputs[i]
	return in.PrevTxHash, in.PrevOutputIndex
}

// TransactionHash parses raw and returns its hash.
func TransactionHash(raw []byte) (chainhash.Hash, error) {
	t, err := ParseTransaction(raw)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return t.Hash(), nil
}
