package bridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

// minRefundLocktime is the smallest locktime interpreted as a unix timestamp
// rather than a block height.
const minRefundLocktime = 500_000_000

// RevealDeposit records the deposit funded by output reveal.FundingOutputIndex
// of fundingTx. The output must commit to the deposit script built from
// reveal, the target wallet must be Live and the deposit must not have been
// revealed before.
func (b *Bridge) RevealDeposit(fundingTx []byte, reveal *RevealInfo) (DepositKey, error) {
	if reveal == nil {
		return DepositKey{}, fmt.Errorf("%w: reveal info", ErrNilParam)
	}

	t, err := tx.ParseTransaction(fundingTx)
	if err != nil {
		b.log.Debugf("reveal rejected: %v", err)
		return DepositKey{}, err
	}
	out, err := t.Output(reveal.FundingOutputIndex)
	if err != nil {
		b.log.Debugf("reveal rejected: %v", err)
		return DepositKey{}, err
	}
	if err := checkDepositScript(out.Script, reveal); err != nil {
		b.log.Debugf("reveal rejected: %v", err)
		return DepositKey{}, err
	}

	key := DepositKeyOf(t.Hash(), reveal.FundingOutputIndex)
	now := b.now()

	err = b.update("reveal", func(st *Tx) error {
		if st.HasDeposit(key) {
			return fmt.Errorf("%w: %s:%d", ErrAlreadyRevealed, t.Hash(), reveal.FundingOutputIndex)
		}
		w, err := st.Wallet(reveal.WalletPubKeyHash)
		if err != nil {
			return err
		}
		if err := w.Require(wallet.Live); err != nil {
			return err
		}
		if out.Value < b.params.DepositDustThreshold {
			return fmt.Errorf("%w: %d < %d", ErrDepositBelowDust, out.Value, b.params.DepositDustThreshold)
		}
		if err := b.checkRefundLocktime(reveal.RefundLocktime, now); err != nil {
			return err
		}
		if reveal.Vault != zeroAddress && (b.vaults == nil || !b.vaults.IsVaultTrusted(reveal.Vault)) {
			return fmt.Errorf("%w: %s", ErrUntrustedVault, reveal.Vault)
		}

		return st.PutDeposit(key, &Deposit{
			Depositor:          reveal.Depositor,
			Amount:             out.Value,
			RevealedAt:         now,
			Vault:              reveal.Vault,
			TreasuryFee:        treasuryFee(out.Value, b.params.DepositTreasuryFeeDivisor),
			FundingTxHash:      t.Hash(),
			FundingOutputIndex: reveal.FundingOutputIndex,
			WalletPubKeyHash:   reveal.WalletPubKeyHash,
		})
	})
	if err != nil {
		return DepositKey{}, err
	}

	b.log.Infof("Deposit %s revealed: %d sat from %s to wallet %x",
		key, out.Value, reveal.Depositor, reveal.WalletPubKeyHash)
	return key, nil
}

// checkDepositScript compares the hash carried by a funding output with the
// hash of the deposit script reveal describes.
func checkDepositScript(script []byte, reveal *RevealInfo) error {
	kind, got, err := tx.ExtractHash(script)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScriptHashMismatch, err)
	}
	want, err := tx.ExpectedDepositScriptHash(kind, reveal.scriptParams())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScriptHashMismatch, err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%w: %s output commits to %x, expected %x", ErrScriptHashMismatch, kind, got, want)
	}
	return nil
}

// checkRefundLocktime requires a timestamp locktime far enough in the future
// that the wallet has the reveal-ahead period to sweep before the depositor
// can refund.
func (b *Bridge) checkRefundLocktime(raw [4]byte, now time.Time) error {
	locktime := binary.LittleEndian.Uint32(raw[:])
	if locktime < minRefundLocktime {
		return fmt.Errorf("%w: %d is a block height", ErrInvalidRefundLocktime, locktime)
	}
	deadline := time.Unix(int64(locktime), 0).Add(-b.params.DepositRevealAheadPeriod)
	if !deadline.After(now) {
		return fmt.Errorf("%w: %d leaves no time to sweep", ErrInvalidRefundLocktime, locktime)
	}
	return nil
}

// MarkDepositSwept marks the deposit under key as swept at sweptAt. It fails
// ErrUnknownDeposit for a key never revealed and ErrAlreadySwept for one
// already swept.
func (t *Tx) MarkDepositSwept(key DepositKey, sweptAt time.Time) (*Deposit, error) {
	d, err := t.Deposit(key)
	if err != nil {
		return nil, err
	}
	if d.Swept() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySwept, key)
	}
	d.SweptAt = sweptAt
	if err := t.PutDeposit(key, d); err != nil {
		return nil, err
	}
	return d, nil
}
