package bridge

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

// RedemptionRequestParams are the arguments of RequestRedemption.
type RedemptionRequestParams struct {
	Redeemer             common.Address
	WalletPubKeyHash     [20]byte
	MainUtxo             tx.UTXO
	RedeemerOutputScript []byte
	Amount               uint64
}

// RequestRedemption debits amount from the redeemer and records a request
// for the wallet to pay amount less the treasury fee, less the Bitcoin fee,
// to the redeemer's output script.
func (b *Bridge) RequestRedemption(req *RedemptionRequestParams) (RedemptionKey, error) {
	if req == nil {
		return RedemptionKey{}, fmt.Errorf("%w: redemption request", ErrNilParam)
	}
	if !tx.IsStandardOutputScript(req.RedeemerOutputScript) {
		b.log.Debugf("redemption request rejected: script %x", req.RedeemerOutputScript)
		return RedemptionKey{}, fmt.Errorf("%w: %x", ErrInvalidRedeemerOutputScript, req.RedeemerOutputScript)
	}

	key := RedemptionKeyOf(req.WalletPubKeyHash, req.RedeemerOutputScript)
	now := b.now()

	var request *RedemptionRequest
	err := b.update("redemption request", func(st *Tx) error {
		w, err := st.Wallet(req.WalletPubKeyHash)
		if err != nil {
			return err
		}
		if err := w.AcceptsRedemptionRequest(); err != nil {
			return err
		}
		if err := checkMainUtxo(w, req.MainUtxo); err != nil {
			return err
		}
		if isWalletScript(req.RedeemerOutputScript, req.WalletPubKeyHash) {
			return ErrRedeemerScriptIsWallet
		}
		if req.Amount < b.params.RedemptionDustThreshold {
			return fmt.Errorf("%w: %d < %d", ErrRedemptionBelowDust, req.Amount, b.params.RedemptionDustThreshold)
		}

		pending, err := st.PendingRedemption(key)
		if err != nil {
			return err
		}
		timedOut, err := st.TimedOutRedemption(key)
		if err != nil {
			return err
		}
		if pending != nil || timedOut != nil {
			return fmt.Errorf("%w: %s", ErrRedemptionAlreadyRequested, key)
		}

		fee := treasuryFee(req.Amount, b.params.RedemptionTreasuryFeeDivisor)
		redeemable := req.Amount - fee
		if w.PendingRedemptionsValue+redeemable > req.MainUtxo.TxOutputValue {
			return fmt.Errorf("%w: pending %d + %d > %d", ErrInsufficientWalletFunds,
				w.PendingRedemptionsValue, redeemable, req.MainUtxo.TxOutputValue)
		}
		if err := st.Debit(req.Redeemer, req.Amount); err != nil {
			return err
		}

		request = &RedemptionRequest{
			Redeemer:             req.Redeemer,
			RequestedAmount:      req.Amount,
			TreasuryFee:          fee,
			TxMaxFee:             b.params.RedemptionTxMaxFee,
			RequestedAt:          now,
			WalletPubKeyHash:     req.WalletPubKeyHash,
			RedeemerOutputScript: append([]byte(nil), req.RedeemerOutputScript...),
		}
		if err := st.PutPendingRedemption(key, request); err != nil {
			return err
		}
		w.PendingRedemptionsValue += redeemable
		return st.PutWallet(w)
	})
	if err != nil {
		return RedemptionKey{}, err
	}

	b.log.Infof("Redemption %s requested: %d sat by %s from wallet %x",
		key, req.Amount, req.Redeemer, req.WalletPubKeyHash)
	return key, nil
}

// SubmitRedemptionProof accounts for a proven redemption transaction. The
// transaction must spend only the wallet's main UTXO. Each output is either
// the single change output back to the wallet or pays one pending or timed
// out request within its fee allowance.
func (b *Bridge) SubmitRedemptionProof(redemptionTx []byte, proof *spv.Proof, mainUtxo tx.UTXO, walletPKH [20]byte) (*RedemptionResult, error) {
	t, _, err := b.parseAndProve("redemption", redemptionTx, proof)
	if err != nil {
		return nil, err
	}

	res := &RedemptionResult{TxHash: t.Hash(), WalletPubKeyHash: walletPKH}

	err = b.update("redemption", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.AcceptsRedemptionProof(); err != nil {
			return err
		}
		if err := checkMainUtxo(w, mainUtxo); err != nil {
			return err
		}
		if err := spendsOnlyMainUtxo(t, mainUtxo); err != nil {
			return err
		}

		var change *tx.UTXO
		var fulfilledValue uint64
		for i, out := range t.Outputs() {
			if isWalletScript(out.Script, walletPKH) {
				if change != nil {
					return fmt.Errorf("%w: outputs %d and %d", ErrMultipleChangeOutputs, change.TxOutputIndex, i)
				}
				if out.Value == 0 {
					return fmt.Errorf("%w: change output %d has no value", ErrUnexpectedRedemptionOutput, i)
				}
				change = &tx.UTXO{TxHash: t.Hash(), TxOutputIndex: uint32(i), TxOutputValue: out.Value}
				continue
			}

			key := RedemptionKeyOf(walletPKH, out.Script)
			redeemed, err := b.resolveRedemptionOutput(st, t.Hash(), key, uint32(i), out.Value, res)
			if err != nil {
				return err
			}
			fulfilledValue += redeemed
		}
		if len(res.Fulfilled)+len(res.TimedOutResolved) == 0 {
			return ErrNoRedemptionOutputs
		}

		fee, err := txFee(t.Hash(), mainUtxo.TxOutputValue, outputsTotal(t))
		if err != nil {
			return err
		}
		if fee > b.params.RedemptionTxMaxTotalFee {
			return fmt.Errorf("%w: %d, max %d", ErrFeeTooHigh, fee, b.params.RedemptionTxMaxTotalFee)
		}
		res.TotalFee = fee

		if err := st.Credit(b.params.Treasury, res.TreasuryFee); err != nil {
			return err
		}
		w.PendingRedemptionsValue -= fulfilledValue
		if change != nil {
			res.MainUtxo = *change
			w.MainUtxoHash = change.Hash()
		} else {
			w.MainUtxoHash = [32]byte{}
		}
		return st.PutWallet(w)
	})
	if err != nil {
		return nil, err
	}

	b.log.Infof("Redemption %s committed: %d fulfilled, %d timed out resolved, fee %d, wallet %x",
		res.TxHash, len(res.Fulfilled), len(res.TimedOutResolved), res.TotalFee, walletPKH)
	return res, nil
}

// resolveRedemptionOutput matches one non-change output against the pending
// and timed out requests. It returns the redeemable value removed from the
// wallet's pending total.
func (b *Bridge) resolveRedemptionOutput(st *Tx, txHash chainhash.Hash, key RedemptionKey,
	index uint32, value uint64, res *RedemptionResult) (uint64, error) {

	checkValue := func(r *RedemptionRequest) error {
		redeemable := r.Redeemable()
		var lo uint64
		if redeemable > r.TxMaxFee {
			lo = redeemable - r.TxMaxFee
		}
		if value < lo || value > redeemable {
			return fmt.Errorf("%w: output %d pays %d, want [%d, %d]", ErrRedemptionOutputValue, index, value, lo, redeemable)
		}
		return nil
	}

	pending, err := st.PendingRedemption(key)
	if err != nil {
		return 0, err
	}
	if pending != nil {
		if err := checkValue(pending); err != nil {
			return 0, err
		}
		if err := st.DeletePendingRedemption(key); err != nil {
			return 0, err
		}
		res.Fulfilled = append(res.Fulfilled, key)
		res.TreasuryFee += pending.TreasuryFee
		return pending.Redeemable(), nil
	}

	timedOut, err := st.TimedOutRedemption(key)
	if err != nil {
		return 0, err
	}
	if timedOut != nil {
		if err := checkValue(timedOut); err != nil {
			return 0, err
		}
		if err := st.DeleteTimedOutRedemption(key); err != nil {
			return 0, err
		}
		res.TimedOutResolved = append(res.TimedOutResolved, key)
		return 0, nil
	}

	return 0, fmt.Errorf("%w: tx %s output %d", ErrUnexpectedRedemptionOutput, txHash, index)
}

// NotifyRedemptionTimeout moves a pending request older than the redemption
// timeout to the timed out set and refunds the redeemer. A Live wallet that
// failed to redeem in time is made to move its funds.
func (b *Bridge) NotifyRedemptionTimeout(walletPKH [20]byte, redeemerOutputScript []byte) error {
	key := RedemptionKeyOf(walletPKH, redeemerOutputScript)
	now := b.now()

	var request *RedemptionRequest
	var moved bool
	err := b.update("redemption timeout", func(st *Tx) error {
		var err error
		request, err = st.PendingRedemption(key)
		if err != nil {
			return err
		}
		if request == nil {
			return fmt.Errorf("%w: %s", ErrUnknownRedemption, key)
		}
		if deadline := request.RequestedAt.Add(b.params.RedemptionTimeout); now.Before(deadline) {
			return fmt.Errorf("%w: times out at %s", ErrRedemptionNotTimedOut, deadline.UTC())
		}

		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.Require(wallet.Live, wallet.MovingFunds, wallet.Closing); err != nil {
			return err
		}

		if err := st.DeletePendingRedemption(key); err != nil {
			return err
		}
		if err := st.PutTimedOutRedemption(key, request); err != nil {
			return err
		}
		if err := st.Credit(request.Redeemer, request.RequestedAmount); err != nil {
			return err
		}

		w.PendingRedemptionsValue -= request.Redeemable()
		if w.State == wallet.Live {
			if err := b.beginMovingFunds(w, now); err != nil {
				return err
			}
			moved = true
		}
		return st.PutWallet(w)
	})
	if err != nil {
		return err
	}

	b.log.Infof("Redemption %s timed out: refunded %d sat to %s", key, request.RequestedAmount, request.Redeemer)
	if moved {
		b.log.Infof("Wallet %x moving funds after redemption timeout", walletPKH)
	}
	return nil
}
