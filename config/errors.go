// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", \"signet\", or \"regtest\")")

	// ErrInvalidRPCHost indicates the RPC host is not a host:port address.
	ErrInvalidRPCHost = errors.New("config: invalid RPC host")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"trace\", \"debug\", \"info\", \"warn\", \"error\", \"critical\", or \"off\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidTreasury indicates the treasury is not a hex account address.
	ErrInvalidTreasury = errors.New("config: invalid treasury address")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidValue indicates a numeric or duration value failed to parse.
	ErrInvalidValue = errors.New("config: invalid value")
)
