package connection

// State is the lifecycle position of one streaming connection.
// Closed --dial--> Connecting --open--> Open --close|error--> Closing --> Closed.
// A connection never leaves Closed; a fresh one is created instead.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether a connection in this state must be replaced.
func (s State) Terminal() bool { return s == StateClosing || s == StateClosed }
