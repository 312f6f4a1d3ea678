package scheduler

type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateSuccess   State = "SUCCESS"
	StateFailed    State = "FAILED"
	StateCleanup   State = "CLEANUP"
	StateScheduled State = "SCHEDULED"
)

// Status is a point-in-time copy of the scheduler bookkeeping.
type Status struct {
	State     State
	Iteration int
	LastError string
}
