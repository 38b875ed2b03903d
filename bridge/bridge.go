package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/spv"
	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

var zeroAddress common.Address

// Config configures a Bridge.
type Config struct {
	// Store holds custody state. Defaults to a fresh MemStore.
	Store Store
	// Relay supplies epoch difficulties for SPV proofs. Required.
	Relay Relay
	// Vaults decides vault trust. Nil trusts no vault.
	Vaults VaultRegistry
	// Wallets answers signer-group membership. Nil rejects every member.
	Wallets WalletRegistry
	Params  Params
	Logger  slog.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Bridge is the custody accounting core: it records deposits, verifies SPV
// proofs of wallet transactions and keeps wallet main UTXOs, redemption
// requests and account balances consistent.
//
// Proofs are parsed and verified without holding any lock. State checks and
// mutations of one operation then run under a single writer lock inside one
// store transaction, so an operation either commits completely or not at all.
type Bridge struct {
	store    Store
	relay    Relay
	vaults   VaultRegistry
	wallets  WalletRegistry
	params   Params
	verifier *spv.Verifier
	log      slog.Logger
	now      func() time.Time

	mtx sync.Mutex
}

// New creates a Bridge.
func New(cfg *Config) (*Bridge, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config", ErrNilParam)
	}
	if cfg.Relay == nil {
		return nil, fmt.Errorf("%w: relay", ErrNilParam)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{
		store:    cfg.Store,
		relay:    cfg.Relay,
		vaults:   cfg.Vaults,
		wallets:  cfg.Wallets,
		params:   cfg.Params,
		verifier: spv.NewVerifier(cfg.Params.TxProofDifficultyFactor),
		log:      cfg.Logger,
		now:      cfg.Clock,
	}
	if b.store == nil {
		b.store = NewMemStore()
	}
	if b.log == nil {
		b.log = slog.Disabled
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// Params returns the bridge parameters.
func (b *Bridge) Params() Params { return b.params }

// Close closes the backing store.
func (b *Bridge) Close() error { return b.store.Close() }

// update runs fn under the writer lock in one store transaction. Failures
// are logged at debug level with the operation name.
func (b *Bridge) update(op string, fn func(*Tx) error) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if err := b.store.Update(fn); err != nil {
		b.log.Debugf("%s rejected: %v", op, err)
		return err
	}
	return nil
}

// view runs fn in a read-only store transaction.
func (b *Bridge) view(fn func(*Tx) error) error {
	return b.store.View(fn)
}

// parseAndProve parses rawTx and checks its SPV proof against the relay.
func (b *Bridge) parseAndProve(op string, rawTx []byte, proof *spv.Proof) (*tx.Transaction, *spv.BlockInfo, error) {
	t, err := tx.ParseTransaction(rawTx)
	if err != nil {
		b.log.Debugf("%s rejected: %v", op, err)
		return nil, nil, err
	}

	cur, err := b.relay.CurrentEpochDifficulty()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: current epoch difficulty: %w", ErrRelay, err)
	}
	prev, err := b.relay.PrevEpochDifficulty()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: previous epoch difficulty: %w", ErrRelay, err)
	}

	info, err := b.verifier.VerifyInclusion(t.Hash(), proof, cur, prev)
	if err != nil {
		b.log.Debugf("%s rejected: tx %s: %v", op, t.Hash(), err)
		return nil, nil, err
	}
	b.log.Tracef("%s: tx %s proven in block %s", op, t.Hash(), info.BlockHash)
	return t, info, nil
}

// checkMainUtxo verifies that the caller's main UTXO matches the wallet's
// stored hash and that the wallet has one.
func checkMainUtxo(w *wallet.Wallet, mainUtxo tx.UTXO) error {
	if !w.HasMainUtxo() {
		return fmt.Errorf("%w: %x", ErrNoMainUtxo, w.PubKeyHash)
	}
	if mainUtxo.Hash() != w.MainUtxoHash {
		return fmt.Errorf("%w: wallet %x", ErrInvalidMainUtxo, w.PubKeyHash)
	}
	return nil
}

// spendsOnlyMainUtxo checks that t has a single input spending mainUtxo.
func spendsOnlyMainUtxo(t *tx.Transaction, mainUtxo tx.UTXO) error {
	ins := t.Inputs()
	if len(ins) != 1 || !mainUtxo.SpentBy(ins[0]) {
		return fmt.Errorf("%w: %d inputs", ErrMainUtxoNotSpent, len(ins))
	}
	return nil
}

// isWalletScript reports whether script pays pkh via P2PKH or P2WPKH.
func isWalletScript(script []byte, pkh [20]byte) bool {
	got, err := tx.ExtractPubKeyHash(script)
	return err == nil && got == pkh
}

// outputsTotal sums the output values of t.
func outputsTotal(t *tx.Transaction) uint64 {
	var total uint64
	for _, out := range t.Outputs() {
		total += out.Value
	}
	return total
}

// txFee returns inputs - outputs, failing when outputs exceed inputs.
func txFee(txHash chainhash.Hash, inputs, outputs uint64) (uint64, error) {
	if outputs > inputs {
		return 0, fmt.Errorf("%w: tx %s spends %d, pays %d", ErrOutputExceedsInputs, txHash, inputs, outputs)
	}
	return inputs - outputs, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Deposit returns the deposit stored under key.
func (b *Bridge) Deposit(key DepositKey) (*Deposit, error) {
	var d *Deposit
	err := b.view(func(t *Tx) error {
		var err error
		d, err = t.Deposit(key)
		return err
	})
	return d, err
}

// Wallet returns the wallet keyed by pkh; Unknown when never registered.
func (b *Bridge) Wallet(pkh [20]byte) (*wallet.Wallet, error) {
	var w *wallet.Wallet
	err := b.view(func(t *Tx) error {
		var err error
		w, err = t.Wallet(pkh)
		return err
	})
	return w, err
}

// Balance returns the balance of account.
func (b *Bridge) Balance(account common.Address) (uint64, error) {
	var bal uint64
	err := b.view(func(t *Tx) error {
		bal = t.Balance(account)
		return nil
	})
	return bal, err
}

// PendingRedemption returns the pending redemption under key.
func (b *Bridge) PendingRedemption(key RedemptionKey) (*RedemptionRequest, error) {
	return b.redemptionQuery(key, (*Tx).PendingRedemption)
}

// TimedOutRedemption returns the timed out redemption under key.
func (b *Bridge) TimedOutRedemption(key RedemptionKey) (*RedemptionRequest, error) {
	return b.redemptionQuery(key, (*Tx).TimedOutRedemption)
}

func (b *Bridge) redemptionQuery(key RedemptionKey, get func(*Tx, RedemptionKey) (*RedemptionRequest, error)) (*RedemptionRequest, error) {
	var r *RedemptionRequest
	err := b.view(func(t *Tx) error {
		var err error
		r, err = get(t, key)
		if err == nil && r == nil {
			err = fmt.Errorf("%w: %s", ErrUnknownRedemption, key)
		}
		return err
	})
	return r, err
}

// MovedFundsSweep returns the moved-funds sweep request for the given
// moving-funds output.
func (b *Bridge) MovedFundsSweep(txHash chainhash.Hash, index uint32) (*MovedFundsSweepRequest, error) {
	var r *MovedFundsSweepRequest
	err := b.view(func(t *Tx) error {
		var err error
		r, err = t.MovedFundsSweep(tx.OutpointKey(txHash, index))
		if err == nil && r == nil {
			err = fmt.Errorf("%w: %s:%d", ErrUnknownMovedFundsSweep, txHash, index)
		}
		return err
	})
	return r, err
}
