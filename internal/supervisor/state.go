// Package supervisor keeps a WHEP session connected, reconnecting with
// exponential backoff when the peer connection goes away.
package supervisor

// State represents the current state of a supervised session.
type State int

const (
	// StateCreated is the initial state before the first connection attempt.
	StateCreated State = iota

	// StateRunning indicates a session is connected or connecting.
	StateRunning

	// StateBackoff indicates the supervisor is waiting before reconnecting.
	StateBackoff

	// StateStopped indicates the supervisor has permanently stopped.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true while a session runs or is about to be retried.
func (s State) IsActive() bool {
	return s == StateRunning || s == StateBackoff
}

// IsTerminal returns true if the state is a terminal state (stopped).
func (s State) IsTerminal() bool {
	return s == StateStopped
}
