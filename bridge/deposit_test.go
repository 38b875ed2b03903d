package bridge

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

// --- RevealDeposit tests ---

func TestRevealDeposit(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	for _, kind := range []tx.ScriptKind{tx.P2SH, tx.P2WSH} {
		t.Run(kind.String(), func(t *testing.T) {
			d := h.reveal(w, alice, 20_000, kind, common.Address{})

			got, err := h.b.Deposit(d.key)
			require.NoError(t, err)
			assert.Equal(t, alice, got.Depositor)
			assert.Equal(t, uint64(20_000), got.Amount)
			assert.Equal(t, h.clock.Now(), got.RevealedAt)
			assert.False(t, got.Swept())
			assert.Equal(t, common.Address{}, got.Vault)
			assert.Equal(t, d.outpoint.Hash, got.FundingTxHash)
			assert.Equal(t, uint32(1), got.FundingOutputIndex)
			assert.Equal(t, w, got.WalletPubKeyHash)
			assert.Zero(t, got.TreasuryFee)
		})
	}
}

func TestRevealDeposit_TreasuryFee(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Params.DepositTreasuryFeeDivisor = 2000 })
	w := pkhOf(1)
	h.registerWallet(w)

	d := h.reveal(w, alice, 1_000_000, tx.P2WSH, common.Address{})
	got, err := h.b.Deposit(d.key)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), got.TreasuryFee)
}

func TestRevealDeposit_Twice(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	d := h.reveal(w, alice, 20_000, tx.P2SH, common.Address{})

	_, err := h.b.RevealDeposit(d.raw, &d.info)
	assert.ErrorIs(t, err, ErrAlreadyRevealed)
	assert.True(t, IsStateConflict(err))
}

func TestRevealDeposit_ReplayAfterWalletAndLocktimeChange(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)
	d := h.reveal(w, alice, 20_000, tx.P2SH, common.Address{})

	// Neither a refund locktime that is now too close nor a wallet that
	// left Live hides the earlier reveal.
	h.clock.Advance(30 * 24 * time.Hour)
	_, err := h.b.RevealDeposit(d.raw, &d.info)
	assert.ErrorIs(t, err, ErrAlreadyRevealed)

	state, err := h.b.BeginMovingFunds(w)
	require.NoError(t, err)
	require.Equal(t, wallet.Closing, state)
	_, err = h.b.RevealDeposit(d.raw, &d.info)
	assert.ErrorIs(t, err, ErrAlreadyRevealed)
}

func TestRevealDeposit_Failures(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	tests := []struct {
		name    string
		prepare func(info *RevealInfo) []byte
		wantErr error
	}{
		{
			name: "malformed funding tx",
			prepare: func(info *RevealInfo) []byte {
				return []byte{0x01, 0x00}
			},
			wantErr: tx.ErrMalformedTransaction,
		},
		{
			name: "output index out of range",
			prepare: func(info *RevealInfo) []byte {
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				info.FundingOutputIndex = 2
				return raw
			},
			wantErr: tx.ErrOutputIndex,
		},
		{
			name: "blinding factor differs",
			prepare: func(info *RevealInfo) []byte {
				raw, _ := h.fundingTx(info, tx.P2WSH, 20_000)
				info.BlindingFactor[0] ^= 1
				return raw
			},
			wantErr: ErrScriptHashMismatch,
		},
		{
			name: "depositor differs",
			prepare: func(info *RevealInfo) []byte {
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				info.Depositor = bob
				return raw
			},
			wantErr: ErrScriptHashMismatch,
		},
		{
			name: "funding output is p2pkh",
			prepare: func(info *RevealInfo) []byte {
				info.FundingOutputIndex = 0
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				return raw
			},
			wantErr: ErrScriptHashMismatch,
		},
		{
			name: "wallet not registered",
			prepare: func(info *RevealInfo) []byte {
				info.WalletPubKeyHash = pkhOf(99)
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				return raw
			},
			wantErr: wallet.ErrInvalidWalletState,
		},
		{
			name: "below dust",
			prepare: func(info *RevealInfo) []byte {
				raw, _ := h.fundingTx(info, tx.P2SH, 9_999)
				return raw
			},
			wantErr: ErrDepositBelowDust,
		},
		{
			name: "locktime is a block height",
			prepare: func(info *RevealInfo) []byte {
				binary.LittleEndian.PutUint32(info.RefundLocktime[:], 800_000)
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				return raw
			},
			wantErr: ErrInvalidRefundLocktime,
		},
		{
			name: "locktime inside reveal ahead period",
			prepare: func(info *RevealInfo) []byte {
				lt := h.clock.Now().Add(10 * 24 * time.Hour).Unix()
				binary.LittleEndian.PutUint32(info.RefundLocktime[:], uint32(lt))
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				return raw
			},
			wantErr: ErrInvalidRefundLocktime,
		},
		{
			name: "untrusted vault",
			prepare: func(info *RevealInfo) []byte {
				info.Vault = common.BytesToAddress([]byte{0xba, 0xd0})
				raw, _ := h.fundingTx(info, tx.P2SH, 20_000)
				return raw
			},
			wantErr: ErrUntrustedVault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := h.revealInfo(w, alice, common.Address{})
			raw := tt.prepare(&info)
			_, err := h.b.RevealDeposit(raw, &info)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := h.b.RevealDeposit(nil, nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestRevealDeposit_WalletMustBeLive(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	// No main UTXO, so the wallet goes straight on to Closing.
	state, err := h.b.BeginMovingFunds(w)
	require.NoError(t, err)
	require.Equal(t, wallet.Closing, state)

	info := h.revealInfo(w, alice, common.Address{})
	raw, _ := h.fundingTx(&info, tx.P2SH, 20_000)
	_, err = h.b.RevealDeposit(raw, &info)
	assert.ErrorIs(t, err, wallet.ErrInvalidWalletState)
}

func TestRevealDeposit_TrustedVault(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	d := h.reveal(w, alice, 20_000, tx.P2SH, testVault)
	got, err := h.b.Deposit(d.key)
	require.NoError(t, err)
	assert.Equal(t, testVault, got.Vault)

	h.vaults.SetVaultStatus(testVault, false)
	info := h.revealInfo(w, alice, testVault)
	raw, _ := h.fundingTx(&info, tx.P2SH, 20_000)
	_, err = h.b.RevealDeposit(raw, &info)
	assert.ErrorIs(t, err, ErrUntrustedVault)
	assert.True(t, IsPolicyError(err))
}

func TestRevealDeposit_ConcurrentSameDeposit(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	info := h.revealInfo(w, alice, common.Address{})
	raw, _ := h.fundingTx(&info, tx.P2WSH, 20_000)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.b.RevealDeposit(raw, &info)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRevealed)
	}
	assert.Equal(t, 1, ok)
}

func TestRevealDeposit_ConcurrentDistinctDeposits(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)

	const workers = 8
	infos := make([]RevealInfo, workers)
	raws := make([][]byte, workers)
	for i := range infos {
		infos[i] = h.revealInfo(w, alice, common.Address{})
		raws[i], _ = h.fundingTx(&infos[i], tx.P2SH, 20_000)
	}

	var wg sync.WaitGroup
	keys := make([]DepositKey, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = h.b.RevealDeposit(raws[i], &infos[i])
		}(i)
	}
	wg.Wait()

	for i := range keys {
		require.NoError(t, errs[i])
		_, err := h.b.Deposit(keys[i])
		assert.NoError(t, err)
	}
}

// --- Registry primitive tests ---

func TestMarkDepositSwept(t *testing.T) {
	h := newHarness(t)
	w := pkhOf(1)
	h.registerWallet(w)
	d := h.reveal(w, alice, 20_000, tx.P2SH, common.Address{})

	at := h.clock.Now().Add(time.Hour)
	err := h.store.Update(func(st *Tx) error {
		_, err := st.MarkDepositSwept(d.key, at)
		return err
	})
	require.NoError(t, err)

	got, err := h.b.Deposit(d.key)
	require.NoError(t, err)
	assert.Equal(t, at, got.SweptAt)

	err = h.store.Update(func(st *Tx) error {
		_, err := st.MarkDepositSwept(d.key, at)
		return err
	})
	assert.ErrorIs(t, err, ErrAlreadySwept)

	err = h.store.Update(func(st *Tx) error {
		_, err := st.MarkDepositSwept(DepositKey{0x01}, at)
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownDeposit)

	_, err = h.b.Deposit(DepositKey{0x02})
	assert.ErrorIs(t, err, ErrUnknownDeposit)
}

func TestDepositKeyOf(t *testing.T) {
	d := wire.OutPoint{Index: 7}
	d.Hash[0] = 0xab
	key := DepositKeyOf(d.Hash, d.Index)
	assert.Equal(t, DepositKey(tx.Keccak256(d.Hash[:], []byte{0, 0, 0, 7})), key)
	assert.Len(t, key.String(), 64)
}
