package relay

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("relay: connection failed")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("relay: invalid response")

	// ErrNoPreviousEpoch indicates the chain tip is still in the first difficulty epoch.
	ErrNoPreviousEpoch = errors.New("relay: no previous difficulty epoch")

	// ErrMissingConfig indicates the RPC endpoint could not be resolved.
	ErrMissingConfig = errors.New("relay: missing RPC configuration")
)
