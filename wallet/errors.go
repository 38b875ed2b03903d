package wallet

import "errors"

var (
	// ErrInvalidTransition indicates a lifecycle edge the state machine does
	// not have.
	ErrInvalidTransition = errors.New("wallet: invalid state transition")

	// ErrInvalidWalletState indicates the wallet is not in a state that
	// admits the requested operation.
	ErrInvalidWalletState = errors.New("wallet: invalid wallet state")
)
