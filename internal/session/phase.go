package session

// Phase is the lifecycle state of the session manager.
type Phase int

// Manager phases.
const (
	// PhaseIdle is the state before the first provider resolution. It is
	// never re-entered.
	PhaseIdle Phase = iota

	// PhaseAwaitingHostReady means construction is deferred until the host
	// finishes loading.
	PhaseAwaitingHostReady

	// PhaseDisconnected means an adapter exists (or construction failed) and
	// no connect has been confirmed.
	PhaseDisconnected

	// PhaseConnected means the active adapter completed its handshake.
	PhaseConnected

	// PhaseRetiring is transient while the active adapter is torn down.
	PhaseRetiring

	// PhaseClosed is terminal after Close.
	PhaseClosed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingHostReady:
		return "awaiting_host_ready"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnected:
		return "connected"
	case PhaseRetiring:
		return "retiring"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
