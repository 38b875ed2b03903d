package bridge

import (
	"errors"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("bridge: required parameter is nil")

	// ErrInvalidParams indicates a bridge parameter is out of range.
	ErrInvalidParams = errors.New("bridge: invalid parameters")

	// ErrStore indicates the backing store failed.
	ErrStore = errors.New("bridge: store failure")

	// ErrRelay indicates the difficulty relay could not be queried.
	ErrRelay = errors.New("bridge: relay unavailable")

	errReadOnly = errors.New("bridge: write in read-only transaction")
)

// Deposit registry errors.
var (
	ErrScriptHashMismatch    = errors.New("bridge: funding output script hash mismatch")
	ErrAlreadyRevealed       = errors.New("bridge: deposit already revealed")
	ErrUntrustedVault        = errors.New("bridge: vault is not trusted")
	ErrDepositBelowDust      = errors.New("bridge: deposit amount below dust threshold")
	ErrInvalidRefundLocktime = errors.New("bridge: invalid refund locktime")
	ErrUnknownDeposit        = errors.New("bridge: deposit not revealed")
	ErrAlreadySwept          = errors.New("bridge: deposit already swept")
)

// Sweep errors.
var (
	ErrMultipleOutputsNotAllowed  = errors.New("bridge: sweep transaction must have a single output")
	ErrWrongPubKeyHashLength      = errors.New("bridge: output does not pay a 20-byte public key hash")
	ErrUnknownInputType           = errors.New("bridge: unknown input type")
	ErrNoDepositsInSweep          = errors.New("bridge: sweep transaction spends no revealed deposits")
	ErrVaultMismatch              = errors.New("bridge: deposit vault does not match sweep vault")
	ErrInvalidPreviousSweepData   = errors.New("bridge: invalid previous sweep data")
	ErrPreviousSweepNotReferenced = errors.New("bridge: previous sweep output not referenced")
	ErrOutputExceedsInputs        = errors.New("bridge: outputs exceed inputs")
	ErrFeeTooHigh                 = errors.New("bridge: transaction fee too high")
)

// Redemption errors.
var (
	ErrInvalidMainUtxo             = errors.New("bridge: invalid main UTXO data")
	ErrNoMainUtxo                  = errors.New("bridge: wallet has no main UTXO")
	ErrInvalidRedeemerOutputScript = errors.New("bridge: redeemer output script must be a standard type")
	ErrRedeemerScriptIsWallet      = errors.New("bridge: redeemer output script cannot pay the wallet")
	ErrRedemptionBelowDust         = errors.New("bridge: redemption amount below dust threshold")
	ErrRedemptionAlreadyRequested  = errors.New("bridge: redemption already requested")
	ErrInsufficientWalletFunds     = errors.New("bridge: insufficient wallet funds")
	ErrInsufficientBalance         = errors.New("bridge: insufficient balance")
	ErrMainUtxoNotSpent            = errors.New("bridge: transaction must spend exactly the main UTXO")
	ErrMultipleChangeOutputs       = errors.New("bridge: multiple change outputs")
	ErrUnexpectedRedemptionOutput  = errors.New("bridge: output matches no pending or timed out redemption")
	ErrRedemptionOutputValue       = errors.New("bridge: redemption output value out of range")
	ErrNoRedemptionOutputs         = errors.New("bridge: transaction fulfils no redemption")
	ErrUnknownRedemption           = errors.New("bridge: redemption request not found")
	ErrRedemptionNotTimedOut       = errors.New("bridge: redemption request not timed out yet")
	ErrPendingRedemptions          = errors.New("bridge: wallet has pending redemptions")
)

// Wallet and moving funds errors.
var (
	ErrWalletAlreadyRegistered      = errors.New("bridge: wallet already registered")
	ErrCommitmentAlreadySubmitted   = errors.New("bridge: target wallets commitment already submitted")
	ErrNoCommitment                 = errors.New("bridge: target wallets commitment not submitted")
	ErrPendingMovedFundsSweeps      = errors.New("bridge: wallet has pending moved funds sweeps")
	ErrNotWalletMember              = errors.New("bridge: caller is not a wallet member")
	ErrNoLiveWallets                = errors.New("bridge: no live wallets to move funds to")
	ErrUnexpectedTargetWalletsCount = errors.New("bridge: unexpected target wallets count")
	ErrTargetWalletsNotSorted       = errors.New("bridge: target wallets must be strictly ascending")
	ErrTargetWalletIsSource         = errors.New("bridge: target wallet is the source wallet")
	ErrTargetWalletNotLive          = errors.New("bridge: target wallet is not live")
	ErrTargetWalletsMismatch        = errors.New("bridge: target wallets do not match commitment")
	ErrUnevenDistribution           = errors.New("bridge: funds are not split evenly across target wallets")
	ErrMainUtxoNotBelowDust         = errors.New("bridge: main UTXO value not below dust threshold")
	ErrUnknownMovedFundsSweep       = errors.New("bridge: moved funds sweep request not found")
	ErrClosingPeriodNotElapsed      = errors.New("bridge: closing period has not elapsed")
	ErrWalletHasFunds               = errors.New("bridge: wallet still holds a main UTXO")
)

var (
	malformedErrors = []error{
		tx.ErrMalformedTransaction,
		tx.ErrOutputIndex,
		spv.ErrInvalidHeader,
		spv.ErrInvalidHeaderChainLength,
		ErrNilParam,
		ErrMultipleOutputsNotAllowed,
		ErrWrongPubKeyHashLength,
		ErrOutputExceedsInputs,
		ErrInvalidRedeemerOutputScript,
	}

	proofErrors = []error{
		spv.ErrBrokenHeaderChain,
		spv.ErrInsufficientWork,
		spv.ErrInsufficientAccumulatedDifficulty,
		spv.ErrUnexpectedDifficulty,
		spv.ErrInvalidMerkleProof,
	}

	stateConflictErrors = []error{
		ErrAlreadyRevealed,
		ErrAlreadySwept,
		ErrUnknownDeposit,
		ErrUnknownInputType,
		ErrNoDepositsInSweep,
		ErrInvalidPreviousSweepData,
		ErrPreviousSweepNotReferenced,
		ErrInvalidMainUtxo,
		ErrNoMainUtxo,
		ErrRedemptionAlreadyRequested,
		ErrInsufficientWalletFunds,
		ErrInsufficientBalance,
		ErrMainUtxoNotSpent,
		ErrMultipleChangeOutputs,
		ErrUnexpectedRedemptionOutput,
		ErrNoRedemptionOutputs,
		ErrUnknownRedemption,
		ErrRedemptionNotTimedOut,
		ErrPendingRedemptions,
		ErrWalletAlreadyRegistered,
		ErrCommitmentAlreadySubmitted,
		ErrNoCommitment,
		ErrPendingMovedFundsSweeps,
		ErrMainUtxoNotBelowDust,
		ErrUnknownMovedFundsSweep,
		ErrClosingPeriodNotElapsed,
		ErrWalletHasFunds,
		wallet.ErrInvalidWalletState,
		wallet.ErrInvalidTransition,
	}

	policyErrors = []error{
		ErrScriptHashMismatch,
		ErrUntrustedVault,
		ErrDepositBelowDust,
		ErrInvalidRefundLocktime,
		ErrVaultMismatch,
		ErrFeeTooHigh,
		ErrRedeemerScriptIsWallet,
		ErrRedemptionBelowDust,
		ErrRedemptionOutputValue,
		ErrNotWalletMember,
		ErrNoLiveWallets,
		ErrUnexpectedTargetWalletsCount,
		ErrTargetWalletsNotSorted,
		ErrTargetWalletIsSource,
		ErrTargetWalletNotLive,
		ErrTargetWalletsMismatch,
		ErrUnevenDistribution,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsMalformed reports whether err was caused by a bad byte layout.
func IsMalformed(err error) bool { return isAny(err, malformedErrors) }

// IsProofError reports whether err is an SPV proof validation failure.
func IsProofError(err error) bool { return isAny(err, proofErrors) }

// IsStateConflict reports whether err is an idempotency or state guard.
func IsStateConflict(err error) bool { return isAny(err, stateConflictErrors) }

// IsPolicyError reports whether err needs a governance or commitment change
// to resolve.
func IsPolicyError(err error) bool { return isAny(err, policyErrors) }
