package session

// State is the lifecycle position of a session. States only move forward;
// Disconnecting is reachable from every state and is terminal.
type State int32

// Session states.
const (
	Connecting State = iota
	AwaitingServices
	Ready
	Identified
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case AwaitingServices:
		return "awaiting-services"
	case Ready:
		return "ready"
	case Identified:
		return "identified"
	case Disconnecting:
		return "disconnecting"
	}
	return "invalid"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Disconnecting
}
