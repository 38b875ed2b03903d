package relay

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/slog"

	"github.com/bitfsorg/btcbridge-go/spv"
)

// EpochLength is the number of blocks between difficulty retargets.
const EpochLength = 2016

// chainNode is the subset of node RPCs the relay needs. In practice it is
// satisfied by *rpcclient.Client. For testing it can be a stub.
type chainNode interface {
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockHeader(blockHash *chainhash.Hash) (*wire.BlockHeader, error)
}

// RPCRelay derives epoch difficulties from a Bitcoin node: the difficulty of
// an epoch is read from the header of its first block. Epoch difficulties
// never change once mined, so they are cached by epoch start height.
type RPCRelay struct {
	client *rpcclient.Client
	node   chainNode
	log    slog.Logger

	mtx   sync.Mutex
	cache map[int64]uint64
}

// NewRPCRelay connects to the node described by cfg using HTTP POST mode.
func NewRPCRelay(cfg *RPCConfig, log slog.Logger) (*RPCRelay, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		HTTPPostMode: true,
		DisableTLS:   true,
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Password,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	r := newRPCRelay(client, log)
	r.client = client
	return r, nil
}

func newRPCRelay(node chainNode, log slog.Logger) *RPCRelay {
	if log == nil {
		log = slog.Disabled
	}
	return &RPCRelay{
		node:  node,
		log:   log,
		cache: make(map[int64]uint64),
	}
}

// Close shuts down the RPC client.
func (r *RPCRelay) Close() {
	if r.client != nil {
		r.client.Shutdown()
		r.client.WaitForShutdown()
	}
}

// CurrentEpochDifficulty returns the difficulty of the epoch containing the
// chain tip.
func (r *RPCRelay) CurrentEpochDifficulty() (uint64, error) {
	start, err := r.tipEpochStart()
	if err != nil {
		return 0, err
	}
	return r.epochDifficulty(start)
}

// PrevEpochDifficulty returns the difficulty of the epoch before the one
// containing the chain tip.
func (r *RPCRelay) PrevEpochDifficulty() (uint64, error) {
	start, err := r.tipEpochStart()
	if err != nil {
		return 0, err
	}
	if start < EpochLength {
		return 0, ErrNoPreviousEpoch
	}
	return r.epochDifficulty(start - EpochLength)
}

func (r *RPCRelay) tipEpochStart() (int64, error) {
	height, err := r.node.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("%w: getblockcount: %w", ErrConnectionFailed, err)
	}
	if height < 0 {
		return 0, fmt.Errorf("%w: negative block count %d", ErrInvalidResponse, height)
	}
	return height - height%EpochLength, nil
}

func (r *RPCRelay) epochDifficulty(start int64) (uint64, error) {
	r.mtx.Lock()
	d, ok := r.cache[start]
	r.mtx.Unlock()
	if ok {
		return d, nil
	}

	hash, err := r.node.GetBlockHash(start)
	if err != nil {
		return 0, fmt.Errorf("%w: getblockhash %d: %w", ErrConnectionFailed, start, err)
	}
	header, err := r.node.GetBlockHeader(hash)
	if err != nil {
		return 0, fmt.Errorf("%w: getblockheader %s: %w", ErrConnectionFailed, hash, err)
	}
	if got := header.BlockHash(); got != *hash {
		return 0, fmt.Errorf("%w: header at %d hashes to %s, want %s", ErrInvalidResponse, start, got, hash)
	}

	diff := spv.DifficultyForBits(header.Bits)
	if !diff.IsUint64() {
		return 0, fmt.Errorf("%w: difficulty of bits %08x out of range", ErrInvalidResponse, header.Bits)
	}
	d = diff.Uint64()

	r.mtx.Lock()
	r.cache[start] = d
	r.mtx.Unlock()
	r.log.Debugf("Epoch at height %d: bits %08x, difficulty %d", start, header.Bits, d)
	return d, nil
}
