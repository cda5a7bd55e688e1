package sync

// DocState is the sync engine's per-document state.
type DocState int

const (
	// StateUnsynced means no remote activity has happened yet.
	StateUnsynced DocState = iota
	// StateAwaitingRemote means the subscription is open but no snapshot
	// has been received.
	StateAwaitingRemote
	// StateSynced means local and remote logical timestamps are equal.
	StateSynced
	// StateDiverged is the transient state while a reconciliation or
	// publish is in flight.
	StateDiverged
)

// String implements fmt.Stringer for log and status output.
func (s DocState) String() string {
	switch s {
	case StateUnsynced:
		return "unsynced"
	case StateAwaitingRemote:
		return "awaiting-remote"
	case StateSynced:
		return "synced"
	case StateDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the engine for CLI display.
type Status struct {
	State          DocState
	LastUpdated    int64
	PendingPublish bool
}
