// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
)

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. Bridge
// parameter consistency is checked by BridgeParams.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if _, err := cfg.NetParams(); err != nil {
		return err
	}

	if cfg.RPCHost != "" {
		if err := validateAddr(cfg.RPCHost); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRPCHost, err)
		}
	}

	if _, ok := slog.LevelFromString(strings.ToLower(cfg.LogLevel)); !ok {
		return ErrInvalidLogLevel
	}

	if cfg.Treasury != "" && !common.IsHexAddress(cfg.Treasury) {
		return ErrInvalidTreasury
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
