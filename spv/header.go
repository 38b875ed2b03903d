package spv

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockHeaderSize is the size of a serialized block header in bytes.
const BlockHeaderSize = wire.MaxBlockHeaderPayload

// diff1Target is the target of difficulty 1, 0xffff * 2^208.
var diff1Target = new(big.Int).Lsh(big.NewInt(0xffff), 208)

// BlockHeader is a decoded block header together with its hash.
type BlockHeader struct {
	wire.BlockHeader

	// Hash is the double SHA-256 of the 80 serialized bytes.
	Hash chainhash.Hash
}

// DeserializeHeader deserializes 80 bytes into a BlockHeader.
// The Hash field is computed from the serialized data.
func DeserializeHeader(data []byte) (*BlockHeader, error) {
	if len(data) != BlockHeaderSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHeader, BlockHeaderSize, len(data))
	}

	h := new(BlockHeader)
	if err := h.BlockHeader.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	h.Hash = chainhash.DoubleHashH(data)

	return h, nil
}

// ParseHeaderChain splits a concatenation of serialized headers.
func ParseHeaderChain(raw []byte) ([]*BlockHeader, error) {
	if len(raw) == 0 || len(raw)%BlockHeaderSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of headers", ErrInvalidHeaderChainLength, len(raw))
	}

	headers := make([]*BlockHeader, 0, len(raw)/BlockHeaderSize)
	for off := 0; off < len(raw); off += BlockHeaderSize {
		h, err := DeserializeHeader(raw[off : off+BlockHeaderSize])
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", len(headers), err)
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// VerifyPoW checks that a block header's hash, read as a little-endian
// 256-bit integer, does not exceed the target encoded in Bits.
func VerifyPoW(h *BlockHeader) error {
	if h == nil {
		return fmt.Errorf("%w: header", ErrNilParam)
	}
	target := blockchain.CompactToBig(h.Bits)
	if target.Sign() <= 0 {
		return fmt.Errorf("%w: bits 0x%08x encode a non-positive target", ErrInsufficientWork, h.Bits)
	}
	if blockchain.HashToBig(&h.Hash).Cmp(target) > 0 {
		return fmt.Errorf("%w: hash %s exceeds target", ErrInsufficientWork, h.Hash)
	}
	return nil
}

// WorkForBits returns the expected number of hashes to find a block at the
// given compact target: 2^256 / (target + 1). Zero for a non-positive target.
func WorkForBits(bits uint32) *big.Int {
	return blockchain.CalcWork(bits)
}

// DifficultyForBits returns DIFF1_TARGET / target, the integer difficulty
// the relay reports for an epoch. Zero for a non-positive target.
func DifficultyForBits(bits uint32) *big.Int {
	target := blockchain.CompactToBig(bits)
	if target.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Div(diff1Target, target)
}

// VerifyHeaderChain checks linkage and proof of work of headers in ascending
// order and returns the work of each header.
func VerifyHeaderChain(headers []*BlockHeader) ([]*big.Int, error) {
	work := make([]*big.Int, len(headers))
	for i, curr := range headers {
		if curr == nil {
			return nil, fmt.Errorf("%w: nil header at index %d", ErrNilParam, i)
		}
		if i > 0 && curr.PrevBlock != headers[i-1].Hash {
			return nil, fmt.Errorf("%w: header %d PrevBlock does not match header %d hash", ErrBrokenHeaderChain, i, i-1)
		}
		work[i] = WorkForBits(curr.Bits)
	}

	// All linkage is checked before any proof of work.
	for i, curr := range headers {
		if err := VerifyPoW(curr); err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
	}
	return work, nil
}
