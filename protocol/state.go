// Package protocol holds the vocabulary shared by the session, the registry
// and the dispatcher: connection states, opcodes and the state machine that
// decides which opcodes are legal in which state.
package protocol

// State is the protocol progress of one session.
type State uint8

const (
	Connected     State = iota // Accepted; cipher disabled
	KeyExchanged               // Cipher enabled, key transmitted
	Authenticated              // Account verified
	InGame                     // World interaction permitted
	Closed                     // Terminal; no further reads or writes
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Connected:
		return "Connected"
	case KeyExchanged:
		return "KeyExchanged"
	case Authenticated:
		return "Authenticated"
	case InGame:
		return "InGame"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}
