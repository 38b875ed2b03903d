package tx

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// UTXO identifies an unspent output held by a wallet. A wallet keeps only the
// hash of its main UTXO; callers present the full record and it is checked
// against that hash.
type UTXO struct {
	TxHash        chainhash.Hash `json:"tx_hash"`
	TxOutputIndex uint32         `json:"tx_output_index"`
	TxOutputValue uint64         `json:"tx_output_value"` // satoshis
}

// Hash returns keccak256(txHash | uint32be(index) | uint64be(value)).
func (u UTXO) Hash() [32]byte {
	var idx [4]byte
	var val [8]byte
	binary.BigEndian.PutUint32(idx[:], u.TxOutputIndex)
	binary.BigEndian.PutUint64(val[:], u.TxOutputValue)
	return Keccak256(u.TxHash[:], idx[:], val[:])
}

// IsZero reports whether u is the empty record.
func (u UTXO) IsZero() bool {
	return u == UTXO{}
}

// SpentBy reports whether input in spends u.
func (u UTXO) SpentBy(in Input) bool {
	return in.PrevTxHash == u.TxHash && in.PrevOutputIndex == u.TxOutputIndex
}

// OutpointKey returns keccak256(txHash | uint32be(index)), the key under
// which deposits and moved-funds requests are indexed.
func OutpointKey(txHash chainhash.Hash, index uint32) [32]byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	return Keccak256(txHash[:], idx[:])
}
