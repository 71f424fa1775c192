package projector

import "fmt"

// State is where a batch ended up, or where it was when it failed.
type State int

const (
	Idle State = iota
	ResolvingFork
	Applying
	Committed
	Duplicate
	Discarded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ResolvingFork:
		return "resolving_fork"
	case Applying:
		return "applying"
	case Committed:
		return "committed"
	case Duplicate:
		return "duplicate"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
