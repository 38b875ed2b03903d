package bridge

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/wallet"
)

var (
	bucketDeposits            = []byte("deposits")
	bucketWallets             = []byte("wallets")
	bucketRedemptions         = []byte("pending_redemptions")
	bucketTimedOutRedemptions = []byte("timed_out_redemptions")
	bucketMovedFundsSweeps    = []byte("moved_funds_sweeps")
	bucketBalances            = []byte("balances")
)

var allBuckets = [][]byte{
	bucketDeposits,
	bucketWallets,
	bucketRedemptions,
	bucketTimedOutRedemptions,
	bucketMovedFundsSweeps,
	bucketBalances,
}

// Store persists custody state. Update runs fn in a read-write transaction
// whose writes become visible only if fn returns nil.
type Store interface {
	View(fn func(*Tx) error) error
	Update(fn func(*Tx) error) error
	Close() error
}

// kv is the bucketed key-value view a store transaction exposes.
type kv interface {
	get(bucket, key []byte) []byte
	put(bucket, key, value []byte) error
	forEach(bucket []byte, fn func(k, v []byte) error) error
}

// Tx is a typed view over one store transaction.
type Tx struct {
	kv kv
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (t *Tx) getRecord(bucket, key []byte, v interface{}) (bool, error) {
	data := t.kv.get(bucket, key)
	if data == nil {
		return false, nil
	}
	if err := decodeGob(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s record: %w", ErrStore, bucket, err)
	}
	return true, nil
}

func (t *Tx) putRecord(bucket, key []byte, v interface{}) error {
	data, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s record: %w", ErrStore, bucket, err)
	}
	if err := t.kv.put(bucket, key, data); err != nil {
		return fmt.Errorf("%w: put %s record: %w", ErrStore, bucket, err)
	}
	return nil
}

func (t *Tx) delete(bucket, key []byte) error {
	if err := t.kv.put(bucket, key, nil); err != nil {
		return fmt.Errorf("%w: delete %s record: %w", ErrStore, bucket, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Deposits
// ---------------------------------------------------------------------------

// Deposit returns the deposit stored under key, failing ErrUnknownDeposit.
func (t *Tx) Deposit(key DepositKey) (*Deposit, error) {
	var d Deposit
	found, err := t.getRecord(bucketDeposits, key[:], &d)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeposit, key)
	}
	return &d, nil
}

// HasDeposit reports whether key was revealed.
func (t *Tx) HasDeposit(key DepositKey) bool {
	return t.kv.get(bucketDeposits, key[:]) != nil
}

// PutDeposit stores d under key.
func (t *Tx) PutDeposit(key DepositKey, d *Deposit) error {
	return t.putRecord(bucketDeposits, key[:], d)
}

// ---------------------------------------------------------------------------
// Wallets
// ---------------------------------------------------------------------------

// Wallet returns the wallet keyed by pkh. An unregistered wallet is returned
// in the Unknown state.
func (t *Tx) Wallet(pkh [20]byte) (*wallet.Wallet, error) {
	w := &wallet.Wallet{PubKeyHash: pkh}
	if _, err := t.getRecord(bucketWallets, pkh[:], w); err != nil {
		return nil, err
	}
	return w, nil
}

// PutWallet stores w.
func (t *Tx) PutWallet(w *wallet.Wallet) error {
	return t.putRecord(bucketWallets, w.PubKeyHash[:], w)
}

// Wallets calls fn for every registered wallet in key order.
func (t *Tx) Wallets(fn func(*wallet.Wallet) error) error {
	return t.kv.forEach(bucketWallets, func(_, v []byte) error {
		var w wallet.Wallet
		if err := decodeGob(v, &w); err != nil {
			return fmt.Errorf("%w: decode wallet: %w", ErrStore, err)
		}
		return fn(&w)
	})
}

// LiveWalletsCount returns the number of wallets in the Live state.
func (t *Tx) LiveWalletsCount() (int, error) {
	var n int
	err := t.Wallets(func(w *wallet.Wallet) error {
		if w.State == wallet.Live {
			n++
		}
		return nil
	})
	return n, err
}

// ---------------------------------------------------------------------------
// Redemptions
// ---------------------------------------------------------------------------

// PendingRedemption returns the pending request under key, or nil.
func (t *Tx) PendingRedemption(key RedemptionKey) (*RedemptionRequest, error) {
	return t.redemption(bucketRedemptions, key)
}

// TimedOutRedemption returns the timed out request under key, or nil.
func (t *Tx) TimedOutRedemption(key RedemptionKey) (*RedemptionRequest, error) {
	return t.redemption(bucketTimedOutRedemptions, key)
}

func (t *Tx) redemption(bucket []byte, key RedemptionKey) (*RedemptionRequest, error) {
	var r RedemptionRequest
	found, err := t.getRecord(bucket, key[:], &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// PutPendingRedemption stores a pending request.
func (t *Tx) PutPendingRedemption(key RedemptionKey, r *RedemptionRequest) error {
	return t.putRecord(bucketRedemptions, key[:], r)
}

// DeletePendingRedemption removes a pending request.
func (t *Tx) DeletePendingRedemption(key RedemptionKey) error {
	return t.delete(bucketRedemptions, key[:])
}

// PutTimedOutRedemption stores a timed out request.
func (t *Tx) PutTimedOutRedemption(key RedemptionKey, r *RedemptionRequest) error {
	return t.putRecord(bucketTimedOutRedemptions, key[:], r)
}

// DeleteTimedOutRedemption removes a timed out request.
func (t *Tx) DeleteTimedOutRedemption(key RedemptionKey) error {
	return t.delete(bucketTimedOutRedemptions, key[:])
}

// ---------------------------------------------------------------------------
// Moved funds sweeps
// ---------------------------------------------------------------------------

// MovedFundsSweep returns the request under key, or nil.
func (t *Tx) MovedFundsSweep(key [32]byte) (*MovedFundsSweepRequest, error) {
	var r MovedFundsSweepRequest
	found, err := t.getRecord(bucketMovedFundsSweeps, key[:], &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// PutMovedFundsSweep stores r under key.
func (t *Tx) PutMovedFundsSweep(key [32]byte, r *MovedFundsSweepRequest) error {
	return t.putRecord(bucketMovedFundsSweeps, key[:], r)
}

// ---------------------------------------------------------------------------
// Balances
// ---------------------------------------------------------------------------

// Balance returns the balance of account.
func (t *Tx) Balance(account common.Address) uint64 {
	v := t.kv.get(bucketBalances, account[:])
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func (t *Tx) setBalance(account common.Address, amount uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], amount)
	if err := t.kv.put(bucketBalances, account[:], v[:]); err != nil {
		return fmt.Errorf("%w: put balance: %w", ErrStore, err)
	}
	return nil
}

// Credit increases the balance of account.
func (t *Tx) Credit(account common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return t.setBalance(account, t.Balance(account)+amount)
}

// Debit decreases the balance of account, failing ErrInsufficientBalance.
func (t *Tx) Debit(account common.Address, amount uint64) error {
	bal := t.Balance(account)
	if bal < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, account, bal, amount)
	}
	return t.setBalance(account, bal-amount)
}
