package bridge

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/tx"
)

// sweepInput is a deposit spent by a sweep transaction, in input order.
type sweepInput struct {
	key     DepositKey
	deposit *Deposit
}

// SubmitDepositSweepProof accounts for a proven sweep transaction that
// consolidates revealed deposits, and optionally the wallet's main UTXO, into
// a single output paying the wallet. Each depositor is credited its deposit
// less the treasury fee and an even share of the Bitcoin fee, and the sweep
// output becomes the wallet's new main UTXO.
//
// mainUtxo is the wallet's current main UTXO, zero when it has none. vault
// must equal the vault every swept deposit was revealed with.
func (b *Bridge) SubmitDepositSweepProof(sweepTx []byte, proof *spv.Proof, mainUtxo tx.UTXO, vault common.Address) (*SweepResult, error) {
	t, _, err := b.parseAndProve("deposit sweep", sweepTx, proof)
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
	outputValue := outs[0].Value

	now := b.now()
	res := &SweepResult{TxHash: t.Hash(), WalletPubKeyHash: walletPKH}

	err = b.update("deposit sweep", func(st *Tx) error {
		w, err := st.Wallet(walletPKH)
		if err != nil {
			return err
		}
		if err := w.AcceptsSweep(); err != nil {
			return err
		}

		// Classify inputs before looking at the main UTXO so a replayed
		// sweep reports its deposits as already swept.
		var deposits []sweepInput
		var mainSpent bool
		for i, in := range t.Inputs() {
			key := DepositKeyOf(in.PrevTxHash, in.PrevOutputIndex)
			if st.HasDeposit(key) {
				d, err := st.Deposit(key)
				if err != nil {
					return err
				}
				if d.Swept() {
					return fmt.Errorf("%w: %s", ErrAlreadySwept, key)
				}
				if d.WalletPubKeyHash != walletPKH {
					return fmt.Errorf("%w: input %d is a deposit to wallet %x", ErrUnknownInputType, i, d.WalletPubKeyHash)
				}
				if d.Vault != vault {
					return fmt.Errorf("%w: deposit %s targets %s, sweep targets %s", ErrVaultMismatch, key, d.Vault, vault)
				}
				deposits = append(deposits, sweepInput{key: key, deposit: d})
				continue
			}
			if !mainSpent && !mainUtxo.IsZero() && mainUtxo.SpentBy(in) {
				mainSpent = true
				continue
			}
			return fmt.Errorf("%w: input %d spends %s:%d", ErrUnknownInputType, i, in.PrevTxHash, in.PrevOutputIndex)
		}
		if len(deposits) == 0 {
			return ErrNoDepositsInSweep
		}

		var mainValue uint64
		switch {
		case mainSpent && mainUtxo.Hash() != w.MainUtxoHash:
			return fmt.Errorf("%w: declared main UTXO does not match wallet %x", ErrInvalidPreviousSweepData, walletPKH)
		case mainSpent:
			mainValue = mainUtxo.TxOutputValue
		case w.HasMainUtxo():
			return fmt.Errorf("%w: wallet %x", ErrPreviousSweepNotReferenced, walletPKH)
		}

		inputsTotal := mainValue
		for _, in := range deposits {
			inputsTotal += in.deposit.Amount
		}
		fee, err := txFee(t.Hash(), inputsTotal, outputValue)
		if err != nil {
			return err
		}
		shares := SplitEvenly(fee, len(deposits))
		if shares[0] > b.params.DepositTxMaxFee {
			return fmt.Errorf("%w: %d per deposit, max %d", ErrFeeTooHigh, shares[0], b.params.DepositTxMaxFee)
		}

		var treasuryTotal uint64
		res.Deposits = make([]SweptDeposit, len(deposits))
		for i, in := range deposits {
			d := in.deposit
			if d.TreasuryFee+shares[i] > d.Amount {
				return fmt.Errorf("%w: fees exceed deposit %s", ErrFeeTooHigh, in.key)
			}
			credited := d.Amount - d.TreasuryFee - shares[i]
			if _, err := st.MarkDepositSwept(in.key, now); err != nil {
				return err
			}
			if err := st.Credit(d.Depositor, credited); err != nil {
				return err
			}
			treasuryTotal += d.TreasuryFee
			res.Deposits[i] = SweptDeposit{
				Key:         in.key,
				Depositor:   d.Depositor,
				Amount:      d.Amount,
				TreasuryFee: d.TreasuryFee,
				TxFee:       shares[i],
				Credited:    credited,
			}
		}
		if err := st.Credit(b.params.Treasury, treasuryTotal); err != nil {
			return err
		}

		res.TotalFee = fee
		res.MainUtxo = tx.UTXO{TxHash: t.Hash(), TxOutputIndex: 0, TxOutputValue: outputValue}
		w.MainUtxoHash = res.MainUtxo.Hash()
		return st.PutWallet(w)
	})
	if err != nil {
		return nil, err
	}

	b.log.Infof("Deposit sweep %s committed: %d deposits, fee %d, wallet %x main UTXO value %d",
		res.TxHash, len(res.Deposits), res.TotalFee, walletPKH, outputValue)
	return res, nil
}
