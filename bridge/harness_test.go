package bridge

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/spv/spvtest"
	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

var (
	testTreasury = common.BytesToAddress([]byte{0x7e, 0xa5})
	testVault    = common.BytesToAddress([]byte{0x5a, 0x1e})
	alice        = common.BytesToAddress([]byte{0xa1, 0x1c, 0xe0})
	bob          = common.BytesToAddress([]byte{0xb0, 0xb0})
	carol        = common.BytesToAddress([]byte{0xca, 0x20, 0x10})
)

type fakeRelay struct {
	mtx       sync.Mutex
	cur, prev uint64
	err       error
}

func (r *fakeRelay) CurrentEpochDifficulty() (uint64, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.cur, r.err
}

func (r *fakeRelay) PrevEpochDifficulty() (uint64, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.prev, r.err
}

type testClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

func testParams() Params {
	p := DefaultParams()
	p.DepositDustThreshold = 10_000
	p.DepositTxMaxFee = 10_000
	p.RedemptionDustThreshold = 50_000
	p.RedemptionTxMaxFee = 5_000
	p.RedemptionTxMaxTotalFee = 20_000
	p.MovingFundsDustThreshold = 20_000
	p.WalletMaxBtcTransfer = 400_000
	p.Treasury = testTreasury
	return p
}

type harness struct {
	t      *testing.T
	b      *Bridge
	store  Store
	relay  *fakeRelay
	clock  *testClock
	vaults *TrustedVaults
	groups *SignerGroups

	mtx   sync.Mutex
	nonce uint32
}

func newHarness(t *testing.T, mods ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		relay:  &fakeRelay{},
		clock:  &testClock{now: time.Unix(1_700_000_000, 0).UTC()},
		vaults: NewTrustedVaults(testVault),
		groups: NewSignerGroups(),
	}
	cfg := &Config{
		Store:   NewMemStore(),
		Relay:   h.relay,
		Vaults:  h.vaults,
		Wallets: h.groups,
		Params:  testParams(),
		Clock:   h.clock.Now,
	}
	for _, mod := range mods {
		mod(cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	h.b = b
	h.store = b.store
	t.Cleanup(func() { _ = b.Close() })
	return h
}

func (h *harness) next() uint32 {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.nonce++
	return h.nonce
}

// rawTx serializes a transaction. Without inputs it spends a fresh outpoint.
func (h *harness) rawTx(ins []wire.OutPoint, outs ...*wire.TxOut) ([]byte, chainhash.Hash) {
	h.t.Helper()
	msg := wire.NewMsgTx(2)
	if len(ins) == 0 {
		var prev chainhash.Hash
		binary.BigEndian.PutUint32(prev[:], h.next())
		prev[31] = 0xfe
		ins = []wire.OutPoint{{Hash: prev, Index: 0}}
	}
	for i := range ins {
		msg.AddTxIn(wire.NewTxIn(&ins[i], nil, nil))
	}
	for _, out := range outs {
		msg.AddTxOut(out)
	}
	parsed, err := tx.NewTransaction(msg)
	require.NoError(h.t, err)
	return parsed.Serialize(), parsed.Hash()
}

// proof places txHash second in a three-transaction block.
func (h *harness) proof(txHash chainhash.Hash) *spv.Proof {
	block := []chainhash.Hash{
		chainhash.HashH([]byte{0xc0, byte(h.next())}),
		txHash,
		chainhash.HashH([]byte{0xd0, byte(h.next())}),
	}
	return spvtest.Proof(block, 1, spv.DefaultDifficultyFactor)
}

func pkhOf(n byte) [20]byte {
	return [20]byte{n, 0x77, 0x77, n}
}

func p2wpkh(pkh [20]byte) []byte {
	_, script := tx.PubKeyHashScripts(pkh)
	return script
}

func p2pkh(pkh [20]byte) []byte {
	script, _ := tx.PubKeyHashScripts(pkh)
	return script
}

func ecdsaIDOf(pkh [20]byte) [32]byte {
	return tx.Keccak256(pkh[:])
}

func (h *harness) registerWallet(pkh [20]byte) {
	h.t.Helper()
	require.NoError(h.t, h.b.RegisterWallet(pkh, ecdsaIDOf(pkh)))
	h.groups.SetMembers(ecdsaIDOf(pkh), []common.Address{alice, bob, carol})
}

type revealed struct {
	key      DepositKey
	outpoint wire.OutPoint
	amount   uint64
	info     RevealInfo
	raw      []byte
}

func (h *harness) revealInfo(walletPKH [20]byte, depositor common.Address, vault common.Address) RevealInfo {
	var blinding [8]byte
	binary.BigEndian.PutUint32(blinding[4:], h.next())
	var locktime [4]byte
	binary.LittleEndian.PutUint32(locktime[:], uint32(h.clock.Now().Add(30*24*time.Hour).Unix()))
	return RevealInfo{
		FundingOutputIndex: 1,
		Depositor:          depositor,
		BlindingFactor:     blinding,
		WalletPubKeyHash:   walletPKH,
		RefundPubKeyHash:   pkhOf(0xee),
		RefundLocktime:     locktime,
		Vault:              vault,
	}
}

// fundingTx pays change at output 0 and the deposit at output 1.
func (h *harness) fundingTx(info *RevealInfo, kind tx.ScriptKind, amount uint64) ([]byte, chainhash.Hash) {
	h.t.Helper()
	script, err := tx.DepositOutputScript(kind, info.scriptParams())
	require.NoError(h.t, err)
	return h.rawTx(nil,
		wire.NewTxOut(12_345, p2pkh(pkhOf(0xcc))),
		wire.NewTxOut(int64(amount), script),
	)
}

func (h *harness) reveal(walletPKH [20]byte, depositor common.Address, amount uint64, kind tx.ScriptKind, vault common.Address) revealed {
	h.t.Helper()
	info := h.revealInfo(walletPKH, depositor, vault)
	raw, hash := h.fundingTx(&info, kind, amount)
	key, err := h.b.RevealDeposit(raw, &info)
	require.NoError(h.t, err)
	require.Equal(h.t, DepositKeyOf(hash, 1), key)
	return revealed{
		key:      key,
		outpoint: wire.OutPoint{Hash: hash, Index: 1},
		amount:   amount,
		info:     info,
		raw:      raw,
	}
}

func outpoints(ds ...revealed) []wire.OutPoint {
	out := make([]wire.OutPoint, len(ds))
	for i, d := range ds {
		out[i] = d.outpoint
	}
	return out
}

// sweepRaw builds a sweep of ins into one P2WPKH output to walletPKH.
func (h *harness) sweepRaw(walletPKH [20]byte, ins []wire.OutPoint, value uint64) ([]byte, chainhash.Hash) {
	return h.rawTx(ins, wire.NewTxOut(int64(value), p2wpkh(walletPKH)))
}

func (h *harness) sweep(walletPKH [20]byte, ins []wire.OutPoint, value uint64, mainUtxo tx.UTXO, vault common.Address) (*SweepResult, error) {
	raw, hash := h.sweepRaw(walletPKH, ins, value)
	return h.b.SubmitDepositSweepProof(raw, h.proof(hash), mainUtxo, vault)
}

// fundWallet registers walletPKH and sweeps one deposit of amount from
// depositor into it, returning the wallet's main UTXO.
func (h *harness) fundWallet(walletPKH [20]byte, depositor common.Address, amount, fee uint64) tx.UTXO {
	h.t.Helper()
	h.registerWallet(walletPKH)
	d := h.reveal(walletPKH, depositor, amount, tx.P2WSH, common.Address{})
	res, err := h.sweep(walletPKH, outpoints(d), amount-fee, tx.UTXO{}, common.Address{})
	require.NoError(h.t, err)
	return res.MainUtxo
}

func (h *harness) wallet(pkh [20]byte) *wallet.Wallet {
	h.t.Helper()
	w, err := h.b.Wallet(pkh)
	require.NoError(h.t, err)
	return w
}

func (h *harness) balance(account common.Address) uint64 {
	h.t.Helper()
	bal, err := h.b.Balance(account)
	require.NoError(h.t, err)
	return bal
}
