package bridge

import (
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/tx"
)

// DepositKey identifies a deposit: keccak256(fundingTxHash | uint32be(index)).
type DepositKey [32]byte

// DepositKeyOf returns the key of the deposit funded by output index of the
// transaction with hash txHash.
func DepositKeyOf(txHash chainhash.Hash, index uint32) DepositKey {
	return DepositKey(tx.OutpointKey(txHash, index))
}

// String returns the hex encoding of k.
func (k DepositKey) String() string { return hex.EncodeToString(k[:]) }

// RevealInfo carries the deposit script parameters the depositor reveals
// alongside the funding transaction.
type RevealInfo struct {
	FundingOutputIndex uint32
	Depositor          common.Address
	BlindingFactor     [8]byte
	WalletPubKeyHash   [20]byte
	RefundPubKeyHash   [20]byte
	RefundLocktime     [4]byte
	Vault              common.Address // zero for none
}

func (r *RevealInfo) scriptParams() tx.DepositScriptParams {
	return tx.DepositScriptParams{
		Depositor:        r.Depositor,
		BlindingFactor:   r.BlindingFactor,
		WalletPubKeyHash: r.WalletPubKeyHash,
		RefundPubKeyHash: r.RefundPubKeyHash,
		RefundLocktime:   r.RefundLocktime,
	}
}

// Deposit is a revealed deposit.
type Deposit struct {
	Depositor          common.Address
	Amount             uint64
	RevealedAt         time.Time
	Vault              common.Address // zero for none
	TreasuryFee        uint64
	SweptAt            time.Time // zero until swept
	FundingTxHash      chainhash.Hash
	FundingOutputIndex uint32
	WalletPubKeyHash   [20]byte
}

// Swept reports whether the deposit has been swept.
func (d *Deposit) Swept() bool { return !d.SweptAt.IsZero() }

// SweptDeposit is the accounting of one deposit in a sweep.
type SweptDeposit struct {
	Key         DepositKey
	Depositor   common.Address
	Amount      uint64
	TreasuryFee uint64
	TxFee       uint64
	Credited    uint64
}

// SweepResult describes a committed deposit sweep.
type SweepResult struct {
	TxHash           chainhash.Hash
	WalletPubKeyHash [20]byte
	Deposits         []SweptDeposit
	TotalFee         uint64
	MainUtxo         tx.UTXO
}

// RedemptionKey identifies a redemption request:
// keccak256(keccak256(redeemerOutputScript) | walletPubKeyHash).
type RedemptionKey [32]byte

// RedemptionKeyOf returns the key of a redemption to script from walletPKH.
func RedemptionKeyOf(walletPKH [20]byte, script []byte) RedemptionKey {
	scriptHash := tx.Keccak256(script)
	return RedemptionKey(tx.Keccak256(scriptHash[:], walletPKH[:]))
}

// String returns the hex encoding of k.
func (k RedemptionKey) String() string { return hex.EncodeToString(k[:]) }

// RedemptionRequest is a pending or timed out redemption.
type RedemptionRequest struct {
	Redeemer             common.Address
	RequestedAmount      uint64
	TreasuryFee          uint64
	TxMaxFee             uint64
	RequestedAt          time.Time
	WalletPubKeyHash     [20]byte
	RedeemerOutputScript []byte
}

// Redeemable returns the amount the redeemer receives before Bitcoin fees.
func (r *RedemptionRequest) Redeemable() uint64 {
	return r.RequestedAmount - r.TreasuryFee
}

// RedemptionResult describes a committed redemption proof.
type RedemptionResult struct {
	TxHash           chainhash.Hash
	WalletPubKeyHash [20]byte
	Fulfilled        []RedemptionKey
	TimedOutResolved []RedemptionKey
	TreasuryFee      uint64
	TotalFee         uint64
	MainUtxo         tx.UTXO // zero when no change was returned
}

// MovedFundsSweepState is the state of a moved-funds sweep request.
type MovedFundsSweepState uint8

const (
	MovedFundsSweepUnknown MovedFundsSweepState = iota
	MovedFundsSweepPending
	MovedFundsSweepProcessed
)

// String returns the state name.
func (s MovedFundsSweepState) String() string {
	switch s {
	case MovedFundsSweepPending:
		return "pending"
	case MovedFundsSweepProcessed:
		return "processed"
	default:
		return "unknown"
	}
}

// MovedFundsSweepRequest tracks one output of a moving-funds transaction that
// the receiving wallet must sweep into its main UTXO.
type MovedFundsSweepRequest struct {
	WalletPubKeyHash [20]byte
	TxHash           chainhash.Hash
	TxOutputIndex    uint32
	Value            uint64
	CreatedAt        time.Time
	State            MovedFundsSweepState
}

// MovingFundsCommitment is a signer's proposal of target wallets for a wallet
// that is moving funds.
type MovingFundsCommitment struct {
	WalletPubKeyHash [20]byte
	MainUtxo         tx.UTXO
	WalletMembersIDs []uint32
	MemberIndex      int
	Submitter        common.Address
	TargetWallets    [][20]byte // strictly ascending
}

// TargetWalletsCommitment returns keccak256 over the target wallets, each
// right-padded to 32 bytes.
func TargetWalletsCommitment(targets [][20]byte) [32]byte {
	parts := make([][]byte, len(targets))
	for i, t := range targets {
		var word [32]byte
		copy(word[:], t[:])
		parts[i] = word[:]
	}
	return tx.Keccak256(parts...)
}

// MovingFundsResult describes a committed moving-funds proof.
type MovingFundsResult struct {
	TxHash           chainhash.Hash
	WalletPubKeyHash [20]byte
	Requests         []MovedFundsSweepRequest
	TotalFee         uint64
}
