// Package spvtest builds mined header chains and inclusion proofs for tests.
package spvtest

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitfsorg/btcbridge-go/spv"
)

const (
	// RegtestBits is the easiest regtest target; about two hashes per block.
	RegtestBits uint32 = 0x207fffff

	// HardBits needs roughly 256 hashes per block and carries 128 times the
	// work of RegtestBits.
	HardBits uint32 = 0x2000ffff

	// MainnetBits is the genesis difficulty. Never mined here.
	MainnetBits uint32 = 0x1d00ffff
)

var genesisTime = time.Unix(1_700_000_000, 0)

// MineHeader grinds the nonce of h until its hash meets h.Bits.
func MineHeader(h *wire.BlockHeader) {
	target := blockchain.CompactToBig(h.Bits)
	for {
		hash := h.BlockHash()
		if blockchain.HashToBig(&hash).Cmp(target) <= 0 {
			return
		}
		h.Nonce++
	}
}

// Chain returns len(bits) linked headers, serialized back to back. The first
// header commits to merkleRoot. Headers are mined only when mine is set.
func Chain(merkleRoot chainhash.Hash, bits []uint32, mine bool) []byte {
	var buf bytes.Buffer
	var prev chainhash.Hash
	for i, b := range bits {
		h := wire.BlockHeader{
			Version:   0x20000000,
			PrevBlock: prev,
			Timestamp: genesisTime.Add(time.Duration(i) * 10 * time.Minute),
			Bits:      b,
		}
		if i == 0 {
			h.MerkleRoot = merkleRoot
		} else {
			h.MerkleRoot = chainhash.HashH([]byte{byte(i)})
		}
		if mine {
			MineHeader(&h)
		}
		_ = h.Serialize(&buf)
		prev = h.BlockHash()
	}
	return buf.Bytes()
}

// Repeat returns n copies of bits.
func Repeat(bits uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = bits
	}
	return out
}

// Proof builds an inclusion proof for txHashes[index] in a regtest block
// followed by confirmations mined regtest headers.
func Proof(txHashes []chainhash.Hash, index uint32, confirmations int) *spv.Proof {
	levels := spv.BuildMerkleTree(txHashes)
	root := levels[len(levels)-1][0]
	return &spv.Proof{
		MerkleProof:    spv.MerkleBranch(txHashes, index),
		TxIndexInBlock: index,
		BitcoinHeaders: Chain(root, Repeat(RegtestBits, confirmations+1), true),
	}
}

// SingleTxProof builds a proof for a block holding only txHash, with enough
// confirmations for spv.DefaultDifficultyFactor.
func SingleTxProof(txHash chainhash.Hash) *spv.Proof {
	return Proof([]chainhash.Hash{txHash}, 0, spv.DefaultDifficultyFactor)
}
