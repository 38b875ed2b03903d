package spv

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genesisHeaderBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, chaincfg.MainNetParams.GenesisBlock.Header.Serialize(&buf))
	return buf.Bytes()
}

// --- Header codec tests ---

func TestDeserializeHeader_Genesis(t *testing.T) {
	raw := genesisHeaderBytes(t)
	require.Len(t, raw, BlockHeaderSize)

	h, err := DeserializeHeader(raw)
	require.NoError(t, err)

	assert.Equal(t, *chaincfg.MainNetParams.GenesisHash, h.Hash)
	assert.Equal(t, "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f", h.Hash.String())
	assert.Equal(t, uint32(0x1d00ffff), h.Bits)
	assert.Equal(t, chainhash.Hash{}, h.PrevBlock)
	var buf bytes.Buffer
	require.NoError(t, h.BlockHeader.Serialize(&buf))
	assert.Equal(t, raw, buf.Bytes())

	require.NoError(t, VerifyPoW(h))
}

func TestDeserializeHeader_BadLength(t *testing.T) {
	for _, n := range []int{0, 79, 81} {
		_, err := DeserializeHeader(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidHeader)
	}
}

func TestParseHeaderChain(t *testing.T) {
	raw := genesisHeaderBytes(t)

	headers, err := ParseHeaderChain(append(bytes.Clone(raw), raw...))
	require.NoError(t, err)
	assert.Len(t, headers, 2)

	_, err = ParseHeaderChain(nil)
	assert.ErrorIs(t, err, ErrInvalidHeaderChainLength)

	_, err = ParseHeaderChain(raw[:40])
	assert.ErrorIs(t, err, ErrInvalidHeaderChainLength)
}

// --- Difficulty and work tests ---

func TestVerifyPoW_Fails(t *testing.T) {
	h, err := DeserializeHeader(genesisHeaderBytes(t))
	require.NoError(t, err)

	h.Nonce++
	h.Hash = h.BlockHash()
	assert.ErrorIs(t, VerifyPoW(h), ErrInsufficientWork)

	// Negative targets never validate.
	h.Bits = 0x1d80ffff
	assert.ErrorIs(t, VerifyPoW(h), ErrInsufficientWork)

	assert.ErrorIs(t, VerifyPoW(nil), ErrNilParam)
}

func TestDifficultyForBits(t *testing.T) {
	tests := []struct {
		bits uint32
		want uint64
	}{
		{0x1d00ffff, 1},
		{0x1c7fffff, 1},
		{0x1c7fff80, 2},
		{0x207fffff, 0},
		{0x1b0404cb, 16307},
		{0x1d80ffff, 0},
	}
	for _, tt := range tests {
		got := DifficultyForBits(tt.bits)
		require.True(t, got.IsUint64())
		assert.Equal(t, tt.want, got.Uint64(), "bits 0x%08x", tt.bits)
	}
}

func TestWorkForBits(t *testing.T) {
	assert.Equal(t, big.NewInt(2), WorkForBits(0x207fffff))
	assert.Equal(t, big.NewInt(256), WorkForBits(0x2000ffff))
	assert.Equal(t, int64(0), WorkForBits(0x1d80ffff).Int64())

	// Genesis difficulty is 2^32 hashes, give or take rounding.
	genesis := WorkForBits(0x1d00ffff)
	assert.Equal(t, "4295032833", genesis.String())
}

// --- Chain tests ---

func linkedHeaders(t *testing.T, n int) []*BlockHeader {
	t.Helper()
	headers := make([]*BlockHeader, n)
	var prev chainhash.Hash
	for i := range headers {
		wh := wire.BlockHeader{Version: 1, PrevBlock: prev, Bits: 0x207fffff, Nonce: 0}
		for {
			hash := wh.BlockHash()
			h := &BlockHeader{BlockHeader: wh, Hash: hash}
			if VerifyPoW(h) == nil {
				headers[i] = h
				break
			}
			wh.Nonce++
		}
		prev = headers[i].Hash
	}
	return headers
}

func TestVerifyHeaderChain(t *testing.T) {
	headers := linkedHeaders(t, 4)

	work, err := VerifyHeaderChain(headers)
	require.NoError(t, err)
	require.Len(t, work, 4)
	for _, w := range work {
		assert.Equal(t, int64(2), w.Int64())
	}

	headers[2].PrevBlock[0] ^= 0xff
	_, err = VerifyHeaderChain(headers)
	assert.ErrorIs(t, err, ErrBrokenHeaderChain)

	_, err = VerifyHeaderChain([]*BlockHeader{nil})
	assert.ErrorIs(t, err, ErrNilParam)
}
