package tx

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTx(t *testing.T, msg *wire.MsgTx) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, msg.SerializeNoWitness(&buf))
	return buf.Bytes()
}

func testMsgTx(nIn, nOut int) *wire.MsgTx {
	msg := wire.NewMsgTx(1)
	for i := 0; i < nIn; i++ {
		prev := chainhash.Hash{byte(i + 1)}
		msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, uint32(i)), []byte{0x51}, nil))
	}
	for i := 0; i < nOut; i++ {
		msg.AddTxOut(wire.NewTxOut(int64(1000*(i+1)), bytes.Repeat([]byte{0x6a}, i+1)))
	}
	return msg
}

// --- Codec tests ---

func TestParseTransaction_Genesis(t *testing.T) {
	genesis := chaincfg.MainNetParams.GenesisBlock
	raw := rawTx(t, genesis.Transactions[0])

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	assert.Equal(t, genesis.Header.MerkleRoot, parsed.Hash())
	assert.Equal(t, "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b", parsed.Hash().String())
	assert.Len(t, parsed.Inputs(), 1)
	assert.Len(t, parsed.Outputs(), 1)
	assert.Equal(t, uint64(50_0000_0000), parsed.Outputs()[0].Value)
	assert.Equal(t, raw, parsed.Serialize())
}

func TestParseTransaction_Fields(t *testing.T) {
	msg := testMsgTx(2, 3)
	msg.LockTime = 777
	raw := rawTx(t, msg)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	assert.Equal(t, int32(1), parsed.Version)
	assert.Equal(t, uint32(777), parsed.LockTime)
	require.Len(t, parsed.Inputs(), 2)
	require.Len(t, parsed.Outputs(), 3)

	h, idx := parsed.Outpoint(1)
	assert.Equal(t, chainhash.Hash{2}, h)
	assert.Equal(t, uint32(1), idx)

	out, err := parsed.Output(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), out.Value)
	assert.Equal(t, []byte{0x6a, 0x6a, 0x6a}, out.Script)

	_, err = parsed.Output(3)
	assert.ErrorIs(t, err, ErrOutputIndex)

	want := msg.TxHash()
	assert.Equal(t, want, parsed.Hash())

	viaHelper, err := TransactionHash(raw)
	require.NoError(t, err)
	assert.Equal(t, want, viaHelper)
}

func TestNewTransaction(t *testing.T) {
	msg := testMsgTx(1, 1)
	parsed, err := NewTransaction(msg)
	require.NoError(t, err)
	assert.Equal(t, msg.TxHash(), parsed.Hash())

	_, err = NewTransaction(nil)
	assert.ErrorIs(t, err, ErrMalformedTransaction)
}

func TestParseTransaction_Malformed(t *testing.T) {
	valid := rawTx(t, testMsgTx(1, 2))

	noInputs := rawTx(t, testMsgTx(0, 1))
	noOutputs := rawTx(t, testMsgTx(1, 0))

	// Output count claims 3 while only 2 outputs follow.
	badCount := bytes.Clone(valid)
	outCountPos := 4 + 1 + 32 + 4 + 1 + 1 + 4
	require.Equal(t, byte(2), badCount[outCountPos])
	badCount[outCountPos] = 3

	// Non-canonical varint for the input count.
	nonCanonical := append([]byte{}, valid[:4]...)
	nonCanonical = append(nonCanonical, 0xfd, 0x01, 0x00)
	nonCanonical = append(nonCanonical, valid[5:]...)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-1]},
		{"trailing bytes", append(bytes.Clone(valid), 0x00)},
		{"empty input vector", noInputs},
		{"empty output vector", noOutputs},
		{"count mismatch", badCount},
		{"non-canonical varint", nonCanonical},
		{"version only", valid[:4]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransaction(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedTransaction)
		})
	}
}

// --- UTXO tests ---

func TestUTXOHash(t *testing.T) {
	u := UTXO{TxHash: chainhash.Hash{0xaa}, TxOutputIndex: 1, TxOutputValue: 18_500}

	var buf []byte
	buf = append(buf, u.TxHash[:]...)
	buf = append(buf, 0, 0, 0, 1)
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0x48, 0x44)
	assert.Equal(t, Keccak256(buf), u.Hash())

	other := u
	other.TxOutputValue++
	assert.NotEqual(t, u.Hash(), other.Hash())

	assert.True(t, UTXO{}.IsZero())
	assert.False(t, u.IsZero())
	assert.True(t, u.SpentBy(Input{PrevTxHash: u.TxHash, PrevOutputIndex: 1}))
	assert.False(t, u.SpentBy(Input{PrevTxHash: u.TxHash, PrevOutputIndex: 0}))
}

func TestOutpointKey(t *testing.T) {
	h := chainhash.Hash{0x01, 0x02}
	assert.Equal(t, Keccak256(h[:], []byte{0, 0, 0, 5}), OutpointKey(h, 5))
	assert.NotEqual(t, OutpointKey(h, 5), OutpointKey(h, 6))
}

func TestKeccak256_Empty(t *testing.T) {
	got := Keccak256()
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", hex.EncodeToString(got[:]))
}

// --- Script tests ---

func TestExtractHash(t *testing.T) {
	pkh := [20]byte{0x11, 0x22}
	p2pkh, p2wpkh := PubKeyHashScripts(pkh)

	p2sh := append([]byte{0xa9, 0x14}, bytes.Repeat([]byte{0x33}, 20)...)
	p2sh = append(p2sh, 0x87)
	p2wsh := append([]byte{0x00, 0x20}, bytes.Repeat([]byte{0x44}, 32)...)

	tests := []struct {
		name   string
		script []byte
		kind   ScriptKind
		hash   []byte
	}{
		{"p2pkh", p2pkh, P2PKH, pkh[:]},
		{"p2wpkh", p2wpkh, P2WPKH, pkh[:]},
		{"p2sh", p2sh, P2SH, bytes.Repeat([]byte{0x33}, 20)},
		{"p2wsh", p2wsh, P2WSH, bytes.Repeat([]byte{0x44}, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, h, err := ExtractHash(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.hash, h)
			assert.True(t, IsStandardOutputScript(tt.script))
		})
	}
}

func TestExtractHash_Unsupported(t *testing.T) {
	for _, script := range [][]byte{
		nil,
		{0x6a, 0x01, 0x00}, // OP_RETURN
		append([]byte{0x00, 0x13}, make([]byte, 19)...),
		{0x51},
	} {
		kind, h, err := ExtractHash(script)
		assert.ErrorIs(t, err, ErrUnsupportedScript)
		assert.Equal(t, Unrecognized, kind)
		assert.Nil(t, h)
		assert.False(t, IsStandardOutputScript(script))
	}
}

func TestExtractPubKeyHash(t *testing.T) {
	pkh := [20]byte{0x99}
	p2pkh, p2wpkh := PubKeyHashScripts(pkh)

	got, err := ExtractPubKeyHash(p2pkh)
	require.NoError(t, err)
	assert.Equal(t, pkh, got)

	got, err = ExtractPubKeyHash(p2wpkh)
	require.NoError(t, err)
	assert.Equal(t, pkh, got)

	p2sh := append([]byte{0xa9, 0x14}, make([]byte, 20)...)
	p2sh = append(p2sh, 0x87)
	_, err = ExtractPubKeyHash(p2sh)
	assert.ErrorIs(t, err, ErrUnsupportedScript)
}

func TestScriptKindString(t *testing.T) {
	assert.Equal(t, "p2pkh", P2PKH.String())
	assert.Equal(t, "p2wpkh", P2WPKH.String())
	assert.Equal(t, "p2sh", P2SH.String())
	assert.Equal(t, "p2wsh", P2WSH.String())
	assert.Equal(t, "unrecognized", Unrecognized.String())
}

// --- Deposit script tests ---

func testDepositParams() DepositScriptParams {
	return DepositScriptParams{
		Depositor:        common.HexToAddress("0x934b98637ca318a4d6e7ca6ffd1690b8e77df637"),
		BlindingFactor:   [8]byte{0xf9, 0xf0, 0xc9, 0x0d, 0x00, 0x03, 0x95, 0x23},
		WalletPubKeyHash: [20]byte{0x8d, 0xb5, 0x0e, 0xb5},
		RefundPubKeyHash: [20]byte{0x28, 0xe0, 0x81, 0xf2},
		RefundLocktime:   [4]byte{0x60, 0xbc, 0xea, 0x61},
	}
}

func TestDepositScript_Layout(t *testing.T) {
	p := testDepositParams()
	script, err := DepositScript(p)
	require.NoError(t, err)

	want := "14" + hex.EncodeToString(p.Depositor[:]) + "75" +
		"08" + hex.EncodeToString(p.BlindingFactor[:]) + "75" +
		"76a914" + hex.EncodeToString(p.WalletPubKeyHash[:]) + "87" +
		"63ac67" +
		"76a914" + hex.EncodeToString(p.RefundPubKeyHash[:]) + "88" +
		"04" + hex.EncodeToString(p.RefundLocktime[:]) + "b175ac68"
	assert.Equal(t, want, hex.EncodeToString(script))
	assert.Len(t, script, 92)
}

func TestExpectedDepositScriptHash(t *testing.T) {
	p := testDepositParams()
	script, err := DepositScript(p)
	require.NoError(t, err)

	h, err := ExpectedDepositScriptHash(P2SH, p)
	require.NoError(t, err)
	assert.Equal(t, Hash160(script), h)
	assert.Len(t, h, 20)

	h, err = ExpectedDepositScriptHash(P2WSH, p)
	require.NoError(t, err)
	assert.Equal(t, chainhash.HashB(script), h)
	assert.Len(t, h, 32)

	for _, kind := range []ScriptKind{P2PKH, P2WPKH, Unrecognized} {
		_, err = ExpectedDepositScriptHash(kind, p)
		assert.ErrorIs(t, err, ErrUnsupportedScript)
	}

	// Any parameter change moves the commitment.
	q := p
	q.BlindingFactor[7] ^= 1
	hq, err := ExpectedDepositScriptHash(P2WSH, q)
	require.NoError(t, err)
	assert.NotEqual(t, h, hq)
}

func TestDepositOutputScript(t *testing.T) {
	p := testDepositParams()
	for _, kind := range []ScriptKind{P2SH, P2WSH} {
		script, err := DepositOutputScript(kind, p)
		require.NoError(t, err)

		gotKind, h, err := ExtractHash(script)
		require.NoError(t, err)
		assert.Equal(t, kind, gotKind)

		want, err := ExpectedDepositScriptHash(kind, p)
		require.NoError(t, err)
		assert.Equal(t, want, h)
	}
}
