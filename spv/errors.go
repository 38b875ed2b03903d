package spv

import "errors"

var (
	// ErrInvalidHeaderChainLength indicates the header chain is not a whole
	// number of 80-byte headers or is shorter than the difficulty factor
	// requires.
	ErrInvalidHeaderChainLength = errors.New("spv: invalid header chain length")

	// ErrBrokenHeaderChain indicates a header does not commit to the hash of
	// the header before it.
	ErrBrokenHeaderChain = errors.New("spv: header chain broken")

	// ErrInsufficientWork indicates a header hash exceeds its own target.
	ErrInsufficientWork = errors.New("spv: insufficient proof of work")

	// ErrInsufficientAccumulatedDifficulty indicates the headers confirming
	// the proof block carry less work than the difficulty factor requires.
	ErrInsufficientAccumulatedDifficulty = errors.New("spv: insufficient accumulated difficulty")

	// ErrUnexpectedDifficulty indicates the proof block difficulty matches
	// neither the current nor the previous epoch.
	ErrUnexpectedDifficulty = errors.New("spv: unexpected difficulty")

	// ErrInvalidMerkleProof indicates the Merkle path does not lead to the
	// block's Merkle root.
	ErrInvalidMerkleProof = errors.New("spv: invalid merkle proof")

	// ErrInvalidHeader indicates the header fails deserialization.
	ErrInvalidHeader = errors.New("spv: invalid header")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("spv: required parameter is nil")
)
