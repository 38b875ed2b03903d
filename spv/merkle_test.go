package spv

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaves(n int) []chainhash.Hash {
	out := make([]chainhash.Hash, n)
	for i := range out {
		out[i] = chainhash.HashH([]byte{byte(i), 0xee})
	}
	return out
}

// --- Merkle tests ---

func TestBuildMerkleTree_OddLevel(t *testing.T) {
	l := leaves(3)
	levels := BuildMerkleTree(l)
	require.Len(t, levels, 3)

	ab := hashPair(&l[0], &l[1])
	cc := hashPair(&l[2], &l[2])
	assert.Equal(t, hashPair(&ab, &cc), levels[2][0])

	assert.Nil(t, BuildMerkleTree(nil))
}

func TestMerkleBranch_AllIndexes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		l := leaves(n)
		levels := BuildMerkleTree(l)
		root := levels[len(levels)-1][0]

		for i := range l {
			branch := MerkleBranch(l, uint32(i))
			assert.NoError(t, VerifyMerkleProof(l[i], uint32(i), branch, root), "n=%d i=%d", n, i)
		}
		assert.Nil(t, MerkleBranch(l, uint32(n)))
	}
}

func TestVerifyMerkleProof_Failures(t *testing.T) {
	l := leaves(4)
	levels := BuildMerkleTree(l)
	root := levels[len(levels)-1][0]
	branch := MerkleBranch(l, 2)

	tests := []struct {
		name   string
		leaf   chainhash.Hash
		index  uint32
		branch []byte
	}{
		{"wrong leaf", l[1], 2, branch},
		{"wrong index", l[2], 3, branch},
		{"index beyond depth", l[2], 2 | 4, branch},
		{"truncated branch", l[2], 2, branch[:63]},
		{"flipped byte", l[2], 2, func() []byte {
			b := append([]byte(nil), branch...)
			b[5] ^= 0x01
			return b
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyMerkleProof(tt.leaf, tt.index, tt.branch, root)
			assert.ErrorIs(t, err, ErrInvalidMerkleProof)
		})
	}
}

func TestVerifyMerkleProof_SingleTxBlock(t *testing.T) {
	tx := chainhash.HashH([]byte("coinbase"))
	assert.NoError(t, VerifyMerkleProof(tx, 0, nil, tx))
	assert.ErrorIs(t, VerifyMerkleProof(tx, 0, nil, chainhash.Hash{1}), ErrInvalidMerkleProof)
	assert.ErrorIs(t, VerifyMerkleProof(tx, 1, nil, tx), ErrInvalidMerkleProof)
}
