// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bitfsorg/btcbridge-go/bridge"
)

// Config is the bridgectl configuration. Zero parameter overrides keep the
// bridge defaults.
type Config struct {
	DataDir  string
	Network  string
	LogLevel string
	LogFile  string

	RPCHost string
	RPCUser string
	RPCPass string

	Treasury string

	DifficultyFactor             uint64
	DepositDustThreshold         uint64
	DepositTreasuryFeeDivisor    uint64
	DepositTxMaxFee              uint64
	DepositRevealAheadPeriod     time.Duration
	RedemptionDustThreshold      uint64
	RedemptionTreasuryFeeDivisor uint64
	RedemptionTxMaxFee           uint64
	RedemptionTxMaxTotalFee      uint64
	RedemptionTimeout            time.Duration
	MovingFundsTxMaxTotalFee     uint64
	MovingFundsDustThreshold     uint64
	MovedFundsSweepTxMaxTotalFee uint64
	WalletMaxBtcTransfer         uint64
	WalletClosingPeriod          time.Duration
}

// DefaultDataDir returns the per-user application data directory.
func DefaultDataDir() string {
	return btcutil.AppDataDir("bridgectl", false)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Network:  "mainnet",
		LogLevel: "info",
	}
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// field binds a configuration key to a Config member.
type field struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
}

func stringField(key string, p func(*Config) *string) field {
	return field{
		key: key,
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func uintField(key string, p func(*Config) *uint64) field {
	return field{
		key: key,
		get: func(c *Config) string { return strconv.FormatUint(*p(c), 10) },
		set: func(c *Config, v string) error {
			if v == "" {
				*p(c) = 0
				return nil
			}
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func durationField(key string, p func(*Config) *time.Duration) field {
	return field{
		key: key,
		get: func(c *Config) string { return p(c).String() },
		set: func(c *Config, v string) error {
			if v == "" {
				*p(c) = 0
				return nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*p(c) = d
			return nil
		},
	}
}

var fields = []field{
	stringField("datadir", func(c *Config) *string { return &c.DataDir }),
	stringField("network", func(c *Config) *string { return &c.Network }),
	stringField("loglevel", func(c *Config) *string { return &c.LogLevel }),
	stringField("logfile", func(c *Config) *string { return &c.LogFile }),
	stringField("rpchost", func(c *Config) *string { return &c.RPCHost }),
	stringField("rpcuser", func(c *Config) *string { return &c.RPCUser }),
	stringField("rpcpass", func(c *Config) *string { return &c.RPCPass }),
	stringField("treasury", func(c *Config) *string { return &c.Treasury }),
	uintField("difficultyfactor", func(c *Config) *uint64 { return &c.DifficultyFactor }),
	uintField("depositdust", func(c *Config) *uint64 { return &c.DepositDustThreshold }),
	uintField("deposittreasurydivisor", func(c *Config) *uint64 { return &c.DepositTreasuryFeeDivisor }),
	uintField("deposittxmaxfee", func(c *Config) *uint64 { return &c.DepositTxMaxFee }),
	durationField("depositrevealahead", func(c *Config) *time.Duration { return &c.DepositRevealAheadPeriod }),
	uintField("redemptiondust", func(c *Config) *uint64 { return &c.RedemptionDustThreshold }),
	uintField("redemptiontreasurydivisor", func(c *Config) *uint64 { return &c.RedemptionTreasuryFeeDivisor }),
	uintField("redemptiontxmaxfee", func(c *Config) *uint64 { return &c.RedemptionTxMaxFee }),
	uintField("redemptiontxmaxtotalfee", func(c *Config) *uint64 { return &c.RedemptionTxMaxTotalFee }),
	durationField("redemptiontimeout", func(c *Config) *time.Duration { return &c.RedemptionTimeout }),
	uintField("movingfundstxmaxtotalfee", func(c *Config) *uint64 { return &c.MovingFundsTxMaxTotalFee }),
	uintField("movingfundsdust", func(c *Config) *uint64 { return &c.MovingFundsDustThreshold }),
	uintField("movedfundssweeptxmaxtotalfee", func(c *Config) *uint64 { return &c.MovedFundsSweepTxMaxTotalFee }),
	uintField("walletmaxbtctransfer", func(c *Config) *uint64 { return &c.WalletMaxBtcTransfer }),
	durationField("walletclosingperiod", func(c *Config) *time.Duration { return &c.WalletClosingPeriod }),
}

func lookupField(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// parseKeyValue splits a "key = value" line on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// LoadConfig reads a key = value configuration file on top of DefaultConfig.
// Blank lines and lines starting with '#' are skipped. Unknown keys are
// ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		fld, known := lookupField(key)
		if !known {
			continue
		}
		if err := fld.set(&cfg, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %s: %w", ErrInvalidValue, lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Bridge Configuration\n")
	b.WriteString("# Zero parameter values keep the built-in defaults.\n\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s = %s\n", f.key, f.get(&cfg))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// NetParams returns the chain parameters of the configured network.
func (c *Config) NetParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, c.Network)
}

// BridgeParams applies the configured overrides to the default bridge
// parameters and validates the result.
func (c *Config) BridgeParams() (bridge.Params, error) {
	p := bridge.DefaultParams()

	override := func(dst *uint64, v uint64) {
		if v != 0 {
			*dst = v
		}
	}
	overrideDuration := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}
	override(&p.TxProofDifficultyFactor, c.DifficultyFactor)
	override(&p.DepositDustThreshold, c.DepositDustThreshold)
	override(&p.DepositTreasuryFeeDivisor, c.DepositTreasuryFeeDivisor)
	override(&p.DepositTxMaxFee, c.DepositTxMaxFee)
	overrideDuration(&p.DepositRevealAheadPeriod, c.DepositRevealAheadPeriod)
	override(&p.RedemptionDustThreshold, c.RedemptionDustThreshold)
	override(&p.RedemptionTreasuryFeeDivisor, c.RedemptionTreasuryFeeDivisor)
	override(&p.RedemptionTxMaxFee, c.RedemptionTxMaxFee)
	override(&p.RedemptionTxMaxTotalFee, c.RedemptionTxMaxTotalFee)
	overrideDuration(&p.RedemptionTimeout, c.RedemptionTimeout)
	override(&p.MovingFundsTxMaxTotalFee, c.MovingFundsTxMaxTotalFee)
	override(&p.MovingFundsDustThreshold, c.MovingFundsDustThreshold)
	override(&p.MovedFundsSweepTxMaxTotalFee, c.MovedFundsSweepTxMaxTotalFee)
	override(&p.WalletMaxBtcTransfer, c.WalletMaxBtcTransfer)
	overrideDuration(&p.WalletClosingPeriod, c.WalletClosingPeriod)

	if c.Treasury != "" {
		if !common.IsHexAddress(c.Treasury) {
			return p, fmt.Errorf("%w: %q", ErrInvalidTreasury, c.Treasury)
		}
		p.Treasury = common.HexToAddress(c.Treasury)
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
