package bridge

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/spv"
)

// SatoshisPerBitcoin is the number of satoshis in one bitcoin.
const SatoshisPerBitcoin = 100_000_000

// Params are the governable bridge parameters. All amounts are satoshis.
type Params struct {
	TxProofDifficultyFactor uint64

	DepositDustThreshold      uint64
	DepositTreasuryFeeDivisor uint64 // 0 disables the fee
	DepositTxMaxFee           uint64
	DepositRevealAheadPeriod  time.Duration

	RedemptionDustThreshold      uint64
	RedemptionTreasuryFeeDivisor uint64 // 0 disables the fee
	RedemptionTxMaxFee           uint64
	RedemptionTxMaxTotalFee      uint64
	RedemptionTimeout            time.Duration

	MovingFundsTxMaxTotalFee     uint64
	MovingFundsDustThreshold     uint64
	MovedFundsSweepTxMaxTotalFee uint64
	WalletMaxBtcTransfer         uint64
	WalletClosingPeriod          time.Duration

	// Treasury is the account credited with treasury fees.
	Treasury common.Address
}

// DefaultParams returns the mainnet parameter set.
func DefaultParams() Params {
	return Params{
		TxProofDifficultyFactor: spv.DefaultDifficultyFactor,

		DepositDustThreshold:      1_000_000,
		DepositTreasuryFeeDivisor: 0,
		DepositTxMaxFee:           100_000,
		DepositRevealAheadPeriod:  15 * 24 * time.Hour,

		RedemptionDustThreshold:      1_000_000,
		RedemptionTreasuryFeeDivisor: 2000,
		RedemptionTxMaxFee:           100_000,
		RedemptionTxMaxTotalFee:      1_000_000,
		RedemptionTimeout:            5 * 24 * time.Hour,

		MovingFundsTxMaxTotalFee:     100_000,
		MovingFundsDustThreshold:     20_000,
		MovedFundsSweepTxMaxTotalFee: 100_000,
		WalletMaxBtcTransfer:         10 * SatoshisPerBitcoin,
		WalletClosingPeriod:          40 * 24 * time.Hour,
	}
}

// Validate checks the parameters for internal consistency.
func (p *Params) Validate() error {
	if p.TxProofDifficultyFactor == 0 {
		return fmt.Errorf("%w: tx proof difficulty factor must be positive", ErrInvalidParams)
	}
	if p.DepositTxMaxFee == 0 {
		return fmt.Errorf("%w: deposit tx max fee must be positive", ErrInvalidParams)
	}
	if p.RedemptionTxMaxFee == 0 {
		return fmt.Errorf("%w: redemption tx max fee must be positive", ErrInvalidParams)
	}
	if p.RedemptionTxMaxTotalFee < p.RedemptionTxMaxFee {
		return fmt.Errorf("%w: redemption tx max total fee %d below per-request max %d",
			ErrInvalidParams, p.RedemptionTxMaxTotalFee, p.RedemptionTxMaxFee)
	}
	if p.RedemptionDustThreshold <= p.RedemptionTxMaxFee {
		return fmt.Errorf("%w: redemption dust threshold %d must exceed redemption tx max fee %d",
			ErrInvalidParams, p.RedemptionDustThreshold, p.RedemptionTxMaxFee)
	}
	if p.RedemptionTimeout <= 0 {
		return fmt.Errorf("%w: redemption timeout must be positive", ErrInvalidParams)
	}
	if p.WalletMaxBtcTransfer == 0 {
		return fmt.Errorf("%w: wallet max btc transfer must be positive", ErrInvalidParams)
	}
	if p.DepositRevealAheadPeriod < 0 || p.WalletClosingPeriod < 0 {
		return fmt.Errorf("%w: periods must not be negative", ErrInvalidParams)
	}
	return nil
}

// treasuryFee returns amount/divisor, or zero when the fee is disabled.
func treasuryFee(amount, divisor uint64) uint64 {
	if divisor == 0 {
		return 0
	}
	return amount / divisor
}
