package bridge

import (
	"fmt"
	"time"

	"github.com/bitfsorg/btcbridge-go/wallet"
)

// RegisterWallet registers a new Live wallet. It is called when the wallet
// registry finishes creating a signer group.
func (b *Bridge) RegisterWallet(walletPKH [20]byte, ecdsaWalletID [32]byte) error {
	now := b.now()
	err := b.update("wallet registration", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if w.State != wallet.Unknown {
			return fmt.Errorf("%w: %x is %s", ErrWalletAlreadyRegistered, walletPKH, w.State)
		}
		w, err = wallet.New(walletPKH, ecdsaWalletID, now)
		if err != nil {
			return err
		}
		return st.PutWallet(w)
	})
	if err != nil {
		return err
	}

	b.log.Infof("Wallet %x registered", walletPKH)
	return nil
}

// BeginMovingFunds starts moving the funds of a Live wallet with no pending
// redemptions. A wallet without a main UTXO and without moved funds waiting
// to be swept has nothing to move and goes on to Closing.
func (b *Bridge) BeginMovingFunds(walletPKH [20]byte) (wallet.State, error) {
	now := b.now()
	var state wallet.State
	err := b.update("begin moving funds", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.Require(wallet.Live); err != nil {
			return err
		}
		if w.PendingRedemptionsValue != 0 {
			return fmt.Errorf("%w: %d sat", ErrPendingRedemptions, w.PendingRedemptionsValue)
		}
		if err := b.beginMovingFunds(w, now); err != nil {
			return err
		}
		state = w.State
		return st.PutWallet(w)
	})
	if err != nil {
		return wallet.Unknown, err
	}

	b.log.Infof("Wallet %x is now %s", walletPKH, state)
	return state, nil
}

// beginMovingFunds moves w from Live to MovingFunds, and on to Closing when
// it holds no funds. Pending moved-funds sweeps keep it in MovingFunds so it
// can still sweep them.
func (b *Bridge) beginMovingFunds(w *wallet.Wallet, now time.Time) error {
	if err := w.Transition(wallet.MovingFunds, now); err != nil {
		return err
	}
	if !w.HasMainUtxo() && w.PendingMovedFundsSweepRequestsCount == 0 {
		return w.Transition(wallet.Closing, now)
	}
	return nil
}

// NotifyWalletClosingPeriodElapsed closes a wallet that has been Closing for
// at least the wallet closing period.
func (b *Bridge) NotifyWalletClosingPeriodElapsed(walletPKH [20]byte) error {
	now := b.now()
	err := b.update("wallet closing", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.Require(wallet.Closing); err != nil {
			return err
		}
		if deadline := w.ClosingStartedAt.Add(b.params.WalletClosingPeriod); now.Before(deadline) {
			return fmt.Errorf("%w: closes at %s", ErrClosingPeriodNotElapsed, deadline.UTC())
		}
		if w.HasMainUtxo() {
			return fmt.Errorf("%w: %x", ErrWalletHasFunds, walletPKH)
		}
		if err := w.Transition(wallet.Closed, now); err != nil {
			return err
		}
		return st.PutWallet(w)
	})
	if err != nil {
		return err
	}

	b.log.Infof("Wallet %x closed", walletPKH)
	return nil
}
