package crawler

// State is the lifecycle state of an Orchestrator.
type State int

const (
	// StateIdle is the state before Run.
	StateIdle State = iota
	// StateRunning is the state while the loop executes.
	StateRunning
	// StateCompleted is reached when the loop ends, including on stop.
	StateCompleted
	// StateFailed is reached when the crawl could not start.
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
