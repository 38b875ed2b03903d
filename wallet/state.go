package wallet

// State is a wallet lifecycle state.
type State uint8

const (
	Unknown State = iota
	Live
	MovingFunds
	Closing
	Closed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Live:
		return "live"
	case MovingFunds:
		return "moving_funds"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// CanTransition reports whether from -> to is an edge of the lifecycle:
//
//	Unknown -> Live -> MovingFunds -> Closing -> Closed
func CanTransition(from, to State) bool {
	switch from {
	case Unknown:
		return to == Live
	case Live:
		return to == MovingFunds
	case MovingFunds:
		return to == Closing
	case Closing:
		return to == Closed
	default:
		return false
	}
}
