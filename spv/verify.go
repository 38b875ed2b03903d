package spv

import (
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DefaultDifficultyFactor is the number of confirmations' worth of work a
// proof must carry on mainnet.
const DefaultDifficultyFactor = 6

// Proof is an SPV inclusion proof for one transaction.
type Proof struct {
	// MerkleProof is the concatenation of 32-byte sibling hashes, bottom-up.
	MerkleProof []byte `json:"merkle_proof"`
	// TxIndexInBlock is the position of the transaction in its block.
	TxIndexInBlock uint32 `json:"tx_index_in_block"`
	// BitcoinHeaders is the concatenation of 80-byte headers, the first one
	// being the block that contains the transaction.
	BitcoinHeaders []byte `json:"bitcoin_headers"`
}

// BlockInfo describes the block a verified proof points at.
type BlockInfo struct {
	BlockHash       chainhash.Hash
	MerkleRoot      chainhash.Hash
	Timestamp       time.Time
	Headers         int
	AccumulatedWork *big.Int // work of the confirming headers
	Difficulty      uint64   // difficulty of the proof block
}

// Verifier checks SPV proofs against the relay's epoch difficulties.
type Verifier struct {
	DifficultyFactor uint64
}

// NewVerifier returns a Verifier requiring factor confirmations' worth of
// work. A zero factor selects DefaultDifficultyFactor.
func NewVerifier(factor uint64) *Verifier {
	if factor == 0 {
		factor = DefaultDifficultyFactor
	}
	return &Verifier{DifficultyFactor: factor}
}

// VerifyInclusion verifies that txHash is included in the first block of
// proof.BitcoinHeaders and that the block is buried under enough work at an
// expected difficulty. Checks run in a fixed order and the first failure is
// returned:
//  1. header chain length
//  2. header linkage
//  3. per-header proof of work
//  4. accumulated work of the confirming headers
//  5. proof block difficulty against the relay epochs
//  6. Merkle inclusion
func (v *Verifier) VerifyInclusion(txHash chainhash.Hash, proof *Proof,
	currentEpochDifficulty, previousEpochDifficulty uint64) (*BlockInfo, error) {

	if proof == nil {
		return nil, fmt.Errorf("%w: proof", ErrNilParam)
	}

	raw := proof.BitcoinHeaders
	minHeaders := v.DifficultyFactor + 1
	if len(raw)%BlockHeaderSize != 0 || uint64(len(raw)/BlockHeaderSize) < minHeaders {
		return nil, fmt.Errorf("%w: %d bytes, need %d headers", ErrInvalidHeaderChainLength, len(raw), minHeaders)
	}

	headers, err := ParseHeaderChain(raw)
	if err != nil {
		return nil, err
	}

	work, err := VerifyHeaderChain(headers)
	if err != nil {
		return nil, err
	}

	accumulated := new(big.Int)
	for _, w := range work[1:] {
		accumulated.Add(accumulated, w)
	}
	required := new(big.Int).Mul(work[0], new(big.Int).SetUint64(v.DifficultyFactor))
	if accumulated.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientAccumulatedDifficulty, accumulated, required)
	}

	first := headers[0]
	diff := DifficultyForBits(first.Bits)
	if !diff.IsUint64() {
		return nil, fmt.Errorf("%w: difficulty %s overflows", ErrUnexpectedDifficulty, diff)
	}
	difficulty := diff.Uint64()
	if difficulty != currentEpochDifficulty && difficulty != previousEpochDifficulty {
		return nil, fmt.Errorf("%w: block %s has %d, relay has %d/%d", ErrUnexpectedDifficulty,
			first.Hash, difficulty, currentEpochDifficulty, previousEpochDifficulty)
	}

	if err := VerifyMerkleProof(txHash, proof.TxIndexInBlock, proof.MerkleProof, first.MerkleRoot); err != nil {
		return nil, err
	}

	return &BlockInfo{
		BlockHash:       first.Hash,
		MerkleRoot:      first.MerkleRoot,
		Timestamp:       first.Timestamp,
		Headers:         len(headers),
		AccumulatedWork: accumulated,
		Difficulty:      difficulty,
	}, nil
}
