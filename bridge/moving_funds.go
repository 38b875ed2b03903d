package bridge

import (
	"bytes"
	"fmt"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

// SubmitMovingFundsCommitment records the target wallets a MovingFunds
// wallet will transfer its main UTXO to. The submitter must be a member of
// the wallet's signer group. The number of targets is the number of
// WalletMaxBtcTransfer chunks in the main UTXO, capped by the number of Live
// wallets.
func (b *Bridge) SubmitMovingFundsCommitment(c *MovingFundsCommitment) error {
	if c == nil {
		return fmt.Errorf("%w: commitment", ErrNilParam)
	}
	err := b.update("moving funds commitment", func(st *Tx) error {
		w, err := st.Wallet(c.WalletPubKeyHash)
		if err != nil {
			return err
		}
		if err := w.AcceptsMovingFunds(); err != nil {
			return err
		}
		if err := checkMainUtxo(w, c.MainUtxo); err != nil {
			return err
		}
		if w.PendingRedemptionsValue != 0 {
			return fmt.Errorf("%w: %d sat", ErrPendingRedemptions, w.PendingRedemptionsValue)
		}
		if w.MovingFundsTargetWalletsCommitmentHash != [32]byte{} {
			return ErrCommitmentAlreadySubmitted
		}
		if w.PendingMovedFundsSweepRequestsCount != 0 {
			return fmt.Errorf("%w: %d", ErrPendingMovedFundsSweeps, w.PendingMovedFundsSweepRequestsCount)
		}
		if b.wallets == nil || !b.wallets.IsWalletMember(w.EcdsaWalletID, c.WalletMembersIDs, c.Submitter, c.MemberIndex) {
			return fmt.Errorf("%w: %s at index %d", ErrNotWalletMember, c.Submitter, c.MemberIndex)
		}

		live, err := st.LiveWalletsCount()
		if err != nil {
			return err
		}
		if live == 0 {
			return ErrNoLiveWallets
		}
		chunks := (c.MainUtxo.TxOutputValue + b.params.WalletMaxBtcTransfer - 1) / b.params.WalletMaxBtcTransfer
		expected := uint64(live)
		if chunks < expected {
			expected = chunks
		}
		if uint64(len(c.TargetWallets)) != expected {
			return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedTargetWalletsCount, len(c.TargetWallets), expected)
		}

		for i, target := range c.TargetWallets {
			if target == c.WalletPubKeyHash {
				return fmt.Errorf("%w: index %d", ErrTargetWalletIsSource, i)
			}
			if i > 0 && bytes.Compare(c.TargetWallets[i-1][:], target[:]) >= 0 {
				return fmt.Errorf("%w: index %d", ErrTargetWalletsNotSorted, i)
			}
			tw, err := st.Wallet(target)
			if err != nil {
				return err
			}
			if tw.State != wallet.Live {
				return fmt.Errorf("%w: %x is %s", ErrTargetWalletNotLive, target, tw.State)
			}
		}

		w.MovingFundsTargetWalletsCommitmentHash = TargetWalletsCommitment(c.TargetWallets)
		return st.PutWallet(w)
	})
	if err != nil {
		return err
	}

	b.log.Infof("Moving funds commitment for wallet %x: %d target wallets", c.WalletPubKeyHash, len(c.TargetWallets))
	return nil
}

// SubmitMovingFundsProof accounts for a proven moving-funds transaction. It
// must spend only the source wallet's main UTXO and pay the committed target
// wallets, in commitment order, evenly split shares of the transferred
// amount. Each output becomes a moved-funds sweep request for its target and
// the source wallet starts closing.
func (b *Bridge) SubmitMovingFundsProof(movingFundsTx []byte, proof *spv.Proof, mainUtxo tx.UTXO, walletPKH [20]byte) (*MovingFundsResult, error) {
	t, _, err := b.parseAndProve("moving funds", movingFundsTx, proof)
	if err != nil {
		return nil, err
	}

	outs := t.Outputs()
	targets := make([][20]byte, len(outs))
	for i, out := range outs {
		pkh, err := tx.ExtractPubKeyHash(out.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: output %d: %w", ErrWrongPubKeyHashLength, i, err)
		}
		targets[i] = pkh
	}
	outputsValue := outputsTotal(t)
	shares := SplitEvenly(outputsValue, len(outs))
	for i, out := range outs {
		if out.Value != shares[i] {
			return nil, fmt.Errorf("%w: output %d pays %d, want %d", ErrUnevenDistribution, i, out.Value, shares[i])
		}
	}

	now := b.now()
	res := &MovingFundsResult{TxHash: t.Hash(), WalletPubKeyHash: walletPKH}

	err = b.update("moving funds", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.AcceptsMovingFunds(); err != nil {
			return err
		}
		if w.MovingFundsTargetWalletsCommitmentHash == [32]byte{} {
			return ErrNoCommitment
		}
		if err := checkMainUtxo(w, mainUtxo); err != nil {
			return err
		}
		if w.PendingRedemptionsValue != 0 {
			return fmt.Errorf("%w: %d sat", ErrPendingRedemptions, w.PendingRedemptionsValue)
		}
		if err := spendsOnlyMainUtxo(t, mainUtxo); err != nil {
			return err
		}
		if TargetWalletsCommitment(targets) != w.MovingFundsTargetWalletsCommitmentHash {
			return ErrTargetWalletsMismatch
		}

		fee, err := txFee(t.Hash(), mainUtxo.TxOutputValue, outputsValue)
		if err != nil {
			return err
		}
		if fee > b.params.MovingFundsTxMaxTotalFee {
			return fmt.Errorf("%w: %d, max %d", ErrFeeTooHigh, fee, b.params.MovingFundsTxMaxTotalFee)
		}
		res.TotalFee = fee

		for i, target := range targets {
			tw, err := st.Wallet(target)
			if err != nil {
				return err
			}
			if tw.State != wallet.Live {
				return fmt.Errorf("%w: %x is %s", ErrTargetWalletNotLive, target, tw.State)
			}
			tw.PendingMovedFundsSweepRequestsCount++
			if err := st.PutWallet(tw); err != nil {
				return err
			}

			req := MovedFundsSweepRequest{
				WalletPubKeyHash: target,
				TxHash:           t.Hash(),
				TxOutputIndex:    uint32(i),
				Value:            outs[i].Value,
				CreatedAt:        now,
				State:            MovedFundsSweepPending,
			}
			if err := st.PutMovedFundsSweep(tx.OutpointKey(t.Hash(), uint32(i)), &req); err != nil {
				return err
			}
			res.Requests = append(res.Requests, req)
		}

		w.MainUtxoHash = [32]byte{}
		if err := w.Transition(wallet.Closing, now); err != nil {
			return err
		}
		return st.PutWallet(w)
	})
	if err != nil {
		return nil, err
	}

	b.log.Infof("Moving funds %s committed: wallet %x moved %d sat to %d wallets, fee %d",
		res.TxHash, walletPKH, outputsValue, len(targets), res.TotalFee)
	return res, nil
}

// NotifyMovingFundsBelowDust lets a MovingFunds wallet whose main UTXO is too
// small to split skip the transfer and start closing.
func (b *Bridge) NotifyMovingFundsBelowDust(walletPKH [20]byte, mainUtxo tx.UTXO) error {
	now := b.now()
	err := b.update("moving funds below dust", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.AcceptsMovingFunds(); err != nil {
			return err
		}
		if err := checkMainUtxo(w, mainUtxo); err != nil {
			return err
		}
		if mainUtxo.TxOutputValue >= b.params.MovingFundsDustThreshold {
			return fmt.Errorf("%w: %d >= %d", ErrMainUtxoNotBelowDust, mainUtxo.TxOutputValue, b.params.MovingFundsDustThreshold)
		}
		if w.PendingRedemptionsValue != 0 {
			return fmt.Errorf("%w: %d sat", ErrPendingRedemptions, w.PendingRedemptionsValue)
		}
		if w.PendingMovedFundsSweepRequestsCount != 0 {
			return fmt.Errorf("%w: %d", ErrPendingMovedFundsSweeps, w.PendingMovedFundsSweepRequestsCount)
		}
		w.MainUtxoHash = [32]byte{}
		if err := w.Transition(wallet.Closing, now); err != nil {
			return err
		}
		return st.PutWallet(w)
	})
	if err != nil {
		return err
	}

	b.log.Infof("Wallet %x main UTXO below moving funds dust, closing", walletPKH)
	return nil
}

// SubmitMovedFundsSweepProof accounts for a proven transaction in which a
// wallet sweeps a UTXO received through moving funds, together with its main
// UTXO when it has one, into a single output paying itself.
func (b *Bridge) SubmitMovedFundsSweepProof(sweepTx []byte, proof *spv.Proof, mainUtxo tx.UTXO) (*tx.UTXO, error) {
	t, _, err := b.parseAndProve("moved funds sweep", sweepTx, proof)
	if err != nil {
		return nil, err
	}

	outs := t.Outputs()
	if len(outs) != 1 {
		return nil, fmt.Errorf("%w: %d outputs", ErrMultipleOutputsNotAllowed, len(outs))
	}
	walletPKH, err := tx.ExtractPubKeyHash(outs[0].Script)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrongPubKeyHashLength, err)
	}

	newMain := tx.UTXO{TxHash: t.Hash(), TxOutputIndex: 0, TxOutputValue: outs[0].Value}

	err = b.update("moved funds sweep", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.AcceptsSweep(); err != nil {
			return err
		}

		var moved *MovedFundsSweepRequest
		var movedKey [32]byte
		var mainSpent bool
		for i, in := range t.Inputs() {
			key := tx.OutpointKey(in.PrevTxHash, in.PrevOutputIndex)
			req, err := st.MovedFundsSweep(key)
			if err != nil {
				return err
			}
			switch {
			case req != nil && moved == nil:
				if req.WalletPubKeyHash != walletPKH {
					return fmt.Errorf("%w: input %d belongs to wallet %x", ErrUnknownMovedFundsSweep, i, req.WalletPubKeyHash)
				}
				if req.State == MovedFundsSweepProcessed {
					return fmt.Errorf("%w: moved funds %s:%d", ErrAlreadySwept, in.PrevTxHash, in.PrevOutputIndex)
				}
				moved, movedKey = req, key
			case !mainSpent && !mainUtxo.IsZero() && mainUtxo.SpentBy(in):
				mainSpent = true
			default:
				return fmt.Errorf("%w: input %d spends %s:%d", ErrUnknownInputType, i, in.PrevTxHash, in.PrevOutputIndex)
			}
		}
		if moved == nil {
			return ErrUnknownMovedFundsSweep
		}

		inputsValue := moved.Value
		switch {
		case mainSpent && mainUtxo.Hash() != w.MainUtxoHash:
			return fmt.Errorf("%w: declared main UTXO does not match wallet %x", ErrInvalidPreviousSweepData, walletPKH)
		case mainSpent:
			inputsValue += mainUtxo.TxOutputValue
		case w.HasMainUtxo():
			return fmt.Errorf("%w: wallet %x", ErrPreviousSweepNotReferenced, walletPKH)
		}

		fee, err := txFee(t.Hash(), inputsValue, newMain.TxOutputValue)
		if err != nil {
			return err
		}
		if fee > b.params.MovedFundsSweepTxMaxTotalFee {
			return fmt.Errorf("%w: %d, max %d", ErrFeeTooHigh, fee, b.params.MovedFundsSweepTxMaxTotalFee)
		}

		moved.State = MovedFundsSweepProcessed
		if err := st.PutMovedFundsSweep(movedKey, moved); err != nil {
			return err
		}
		if w.PendingMovedFundsSweepRequestsCount > 0 {
			w.PendingMovedFundsSweepRequestsCount--
		}
		w.MainUtxoHash = newMain.Hash()
		return st.PutWallet(w)
	})
	if err != nil {
		return nil, err
	}

	b.log.Infof("Moved funds sweep %s committed: wallet %x main UTXO value %d", newMain.TxHash, walletPKH, newMain.TxOutputValue)
	return &newMain, nil
}
