package spv

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// hashPair returns SHA256(SHA256(left || right)).
func hashPair(left, right *chainhash.Hash) chainhash.Hash {
	var combined [chainhash.HashSize * 2]byte
	copy(combined[:chainhash.HashSize], left[:])
	copy(combined[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(combined[:])
}

// ComputeMerkleRoot computes the Merkle root from a transaction hash,
// its index position in the block, and the proof branch nodes (bottom-up).
//
// Algorithm:
//
//	hash = txHash
//	for i, node in proofNodes:
//	    if bit i of index is 0:  hash = DoubleHash(hash || node)
//	    else:                     hash = DoubleHash(node || hash)
func ComputeMerkleRoot(txHash chainhash.Hash, index uint32, proofNodes []chainhash.Hash) chainhash.Hash {
	hash := txHash
	for i := range proofNodes {
		if (index>>uint(i))&1 == 0 {
			hash = hashPair(&hash, &proofNodes[i])
		} else {
			hash = hashPair(&proofNodes[i], &hash)
		}
	}
	return hash
}

// SplitMerkleProof decodes a concatenation of 32-byte sibling hashes.
func SplitMerkleProof(proof []byte) ([]chainhash.Hash, error) {
	if len(proof)%chainhash.HashSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of hashes", ErrInvalidMerkleProof, len(proof))
	}
	nodes := make([]chainhash.Hash, len(proof)/chainhash.HashSize)
	for i := range nodes {
		copy(nodes[i][:], proof[i*chainhash.HashSize:])
	}
	return nodes, nil
}

// VerifyMerkleProof checks that txHash at index leads to merkleRoot through
// the concatenated sibling hashes in proof. An index with bits set above the
// path length cannot belong to a tree of that depth and is rejected.
func VerifyMerkleProof(txHash chainhash.Hash, index uint32, proof []byte, merkleRoot chainhash.Hash) error {
	nodes, err := SplitMerkleProof(proof)
	if err != nil {
		return err
	}
	if len(nodes) < 32 && index>>uint(len(nodes)) != 0 {
		return fmt.Errorf("%w: index %d out of range for %d levels", ErrInvalidMerkleProof, index, len(nodes))
	}
	if ComputeMerkleRoot(txHash, index, nodes) != merkleRoot {
		return fmt.Errorf("%w: computed root does not match header", ErrInvalidMerkleProof)
	}
	return nil
}

// BuildMerkleTree builds a full Merkle tree from a list of transaction hashes.
// Returns all tree levels, where level 0 is leaves and the last level is the root.
// Each level is padded by duplicating the last element if odd.
func BuildMerkleTree(txHashes []chainhash.Hash) [][]chainhash.Hash {
	if len(txHashes) == 0 {
		return nil
	}

	level := append([]chainhash.Hash(nil), txHashes...)
	levels := [][]chainhash.Hash{level}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]chainhash.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashPair(&level[i], &level[i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return levels
}

// MerkleBranch returns the concatenated sibling hashes proving the leaf at
// index, in the form VerifyMerkleProof consumes.
func MerkleBranch(txHashes []chainhash.Hash, index uint32) []byte {
	levels := BuildMerkleTree(txHashes)
	if int(index) >= len(txHashes) {
		return nil
	}

	var branch []byte
	pos := int(index)
	for _, level := range levels[:len(levels)-1] {
		sibling := pos ^ 1
		if sibling >= len(level) {
			sibling = pos
		}
		branch = append(branch, level[sibling][:]...)
		pos >>= 1
	}
	return branch
}
