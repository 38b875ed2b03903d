package wallet

import (
	"fmt"
	"time"
)

// Wallet is the bridge's record of one custodial wallet, keyed by the
// 20-byte HASH160 of its public key.
type Wallet struct {
	PubKeyHash    [20]byte
	EcdsaWalletID [32]byte

	// MainUtxoHash is the hash of the wallet's single consolidated UTXO.
	// Zero when the wallet holds none.
	MainUtxoHash [32]byte

	// PendingRedemptionsValue is the sum of requested amounts minus treasury
	// fees over all pending redemption requests.
	PendingRedemptionsValue uint64

	CreatedAt              time.Time
	MovingFundsRequestedAt time.Time
	ClosingStartedAt       time.Time

	PendingMovedFundsSweepRequestsCount uint32

	State State

	// MovingFundsTargetWalletsCommitmentHash is keccak256 of the target
	// wallet list submitted while moving funds. Zero until submitted.
	MovingFundsTargetWalletsCommitmentHash [32]byte
}

// New returns a Live wallet registered at now.
func New(pubKeyHash [20]byte, ecdsaWalletID [32]byte, now time.Time) (*Wallet, error) {
	w := &Wallet{PubKeyHash: pubKeyHash, EcdsaWalletID: ecdsaWalletID}
	if err := w.Transition(Live, now); err != nil {
		return nil, err
	}
	return w, nil
}

// Transition moves the wallet along one lifecycle edge and stamps the time
// the new state was entered.
func (w *Wallet) Transition(to State, at time.Time) error {
	if !CanTransition(w.State, to) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, w.State, to)
	}
	switch to {
	case Live:
		w.CreatedAt = at
	case MovingFunds:
		w.MovingFundsRequestedAt = at
	case Closing:
		w.ClosingStartedAt = at
	}
	w.State = to
	return nil
}

// Require fails with ErrInvalidWalletState unless the wallet is in one of
// states.
func (w *Wallet) Require(states ...State) error {
	for _, s := range states {
		if w.State == s {
			return nil
		}
	}
	return fmt.Errorf("%w: wallet %x is %s", ErrInvalidWalletState, w.PubKeyHash, w.State)
}

// HasMainUtxo reports whether the wallet holds a main UTXO.
func (w *Wallet) HasMainUtxo() bool {
	return w.MainUtxoHash != [32]byte{}
}

// AcceptsSweep reports whether deposit and moved-funds sweeps may land.
func (w *Wallet) AcceptsSweep() error {
	return w.Require(Live, MovingFunds)
}

// AcceptsRedemptionRequest reports whether new redemptions may be requested.
func (w *Wallet) AcceptsRedemptionRequest() error {
	return w.Require(Live)
}

// AcceptsRedemptionProof reports whether a redemption transaction may be
// proven.
func (w *Wallet) AcceptsRedemptionProof() error {
	return w.Require(Live, MovingFunds)
}

// AcceptsMovingFunds reports whether moving-funds commitments and proofs may
// be submitted.
func (w *Wallet) AcceptsMovingFunds() error {
	return w.Require(MovingFunds)
}
