package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/bridge"
	"github.com/bitfsorg/btcbridge-go/config"
	"github.com/bitfsorg/btcbridge-go/relay"
)

const (
	dbFilename  = "bridge.db"
	logFilename = "bridgectl.log"
)

// options are the global command line options. Set options override the
// configuration file in the data directory.
type options struct {
	DataDir    string   `short:"d" long:"datadir" description:"Directory holding the config file, database and logs"`
	Network    string   `short:"n" long:"network" description:"Bitcoin network: mainnet, testnet, signet or regtest"`
	LogLevel   string   `long:"loglevel" description:"Logging level: trace, debug, info, warn, error, critical or off"`
	RPCHost    string   `long:"rpchost" description:"Bitcoin node RPC host:port"`
	RPCUser    string   `long:"rpcuser" description:"Bitcoin node RPC username"`
	RPCPass    string   `long:"rpcpass" default-mask:"-" description:"Bitcoin node RPC password"`
	StaticDiff string   `long:"staticdiff" description:"Use fixed epoch difficulties \"current,previous\" instead of a node"`
	Vaults     []string `long:"vault" description:"Trusted vault address (repeatable)"`
	Signers    string   `long:"signers" description:"JSON file mapping ECDSA wallet IDs to ordered signer addresses"`
}

var opts options

// loadConfig merges the configuration file with the global options.
func loadConfig() (*config.Config, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	switch {
	case err == nil:
	case errors.Is(err, config.ErrConfigNotFound):
		cfg = config.DefaultConfig()
	default:
		return nil, err
	}
	cfg.DataDir = dataDir

	if opts.Network != "" {
		cfg.Network = opts.Network
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.RPCHost != "" {
		cfg.RPCHost = opts.RPCHost
	}
	if opts.RPCUser != "" {
		cfg.RPCUser = opts.RPCUser
	}
	if opts.RPCPass != "" {
		cfg.RPCPass = opts.RPCPass
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseStaticDiff parses "current,previous".
func parseStaticDiff(s string) (uint64, uint64, error) {
	cur, prev, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("static difficulty %q: want \"current,previous\"", s)
	}
	c, err := strconv.ParseUint(strings.TrimSpace(cur), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("static difficulty %q: %w", s, err)
	}
	p, err := strconv.ParseUint(strings.TrimSpace(prev), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("static difficulty %q: %w", s, err)
	}
	return c, p, nil
}

// environ returns the relay environment variables that are set.
func environ() map[string]string {
	env := make(map[string]string)
	for _, k := range []string{relay.EnvRPCHost, relay.EnvRPCUser, relay.EnvRPCPass} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

// loadSigners reads a {"<ecdsa wallet id hex>": ["0xaddr", ...]} file.
func loadSigners(path string) (*bridge.SignerGroups, error) {
	groups := bridge.NewSignerGroups()
	if path == "" {
		return groups, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signers: %w", err)
	}
	var raw map[string][]common.Address
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode signers: %w", err)
	}
	for id, members := range raw {
		walletID, err := decodeFixed(id, 32)
		if err != nil {
			return nil, fmt.Errorf("signers: wallet id %q: %w", id, err)
		}
		groups.SetMembers([32]byte(walletID), members)
	}
	return groups, nil
}

// app is an opened bridge with its collaborators.
type app struct {
	cfg    *config.Config
	bridge *bridge.Bridge
	rpc    *relay.RPCRelay
}

// openApp loads configuration, sets up logging and opens the bridge.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(cfg.DataDir, "logs", logFilename)
	}
	if err := initLogRotator(logFile); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	if err := a.open(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// open sets up everything after the log rotator. The caller closes a on
// failure.
func (a *app) open() error {
	cfg := a.cfg
	if err := setLogLevels(cfg.LogLevel); err != nil {
		return err
	}

	params, err := cfg.BridgeParams()
	if err != nil {
		return err
	}

	var rl bridge.Relay
	if opts.StaticDiff != "" {
		cur, prev, err := parseStaticDiff(opts.StaticDiff)
		if err != nil {
			return err
		}
		rl = relay.NewStaticRelay(cur, prev)
		log.Infof("Using static epoch difficulties %d and %d", cur, prev)
	} else {
		rpcCfg, err := relay.ResolveConfig(&relay.RPCConfig{
			Host:     cfg.RPCHost,
			User:     cfg.RPCUser,
			Password: cfg.RPCPass,
		}, environ(), cfg.Network)
		if err != nil {
			return err
		}
		a.rpc, err = relay.NewRPCRelay(rpcCfg, rlayLog)
		if err != nil {
			return err
		}
		rl = a.rpc
		log.Infof("Using %s node at %s", cfg.Network, rpcCfg.Host)
	}

	vaults := bridge.NewTrustedVaults()
	for _, v := range opts.Vaults {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("invalid vault address %q", v)
		}
		vaults.SetVaultStatus(common.HexToAddress(v), true)
	}
	signers, err := loadSigners(opts.Signers)
	if err != nil {
		return err
	}

	store, err := bridge.OpenBoltStore(filepath.Join(cfg.DataDir, dbFilename))
	if err != nil {
		return err
	}
	a.bridge, err = bridge.New(&bridge.Config{
		Store:   store,
		Relay:   rl,
		Vaults:  vaults,
		Wallets: signers,
		Params:  params,
		Logger:  brdgLog,
	})
	if err != nil {
		_ = store.Close()
		return err
	}
	return nil
}

func (a *app) close() {
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			log.Errorf("Closing store: %v", err)
		}
	}
	if a.rpc != nil {
		a.rpc.Close()
	}
	closeLogRotator()
}
