package channel

// State is the Connection Manager's view of the channel. Only the Manager
// changes it; everyone else observes it.
type State int

const (
	// Disconnected means no channel is open and none is being opened
	Disconnected State = iota

	// Connecting means a dial is in progress
	Connecting

	// Connected means the channel is open and handlers are registered
	Connected

	// Reconnecting means the channel dropped unexpectedly and a retry is
	// scheduled
	Reconnecting

	// Failed means reconnection attempts were exhausted; only an explicit
	// Connect leaves this state
	Failed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
