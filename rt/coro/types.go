package coro

import "fmt"

// Phase identifies an update pass (for example a tick group). Each phase is drained by its own
// UpdateOn call.
//
// Phases are a caller-defined enumeration of consecutive values starting at 0; the count is set
// with WithPhases. The preset values below fit the default count.
type Phase int

const (
	// PhaseUpdate is the default phase.
	PhaseUpdate Phase = iota
	PhaseLateUpdate
	PhaseFixedUpdate
)

// DefaultPhaseCount is the number of phases when WithPhases is not used.
const DefaultPhaseCount = 3

func (p Phase) String() string {
	switch p {
	case PhaseUpdate:
		return "update"
	case PhaseLateUpdate:
		return "late-update"
	case PhaseFixedUpdate:
		return "fixed-update"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Domain identifies a clock (for example real time vs. simulation time).
//
// Domains are a caller-defined enumeration of consecutive values starting at 0; the count is set
// with WithDomains.
type Domain int

const (
	// DomainRealtime is the default domain.
	DomainRealtime Domain = iota
	DomainGame
)

// DefaultDomainCount is the number of domains when WithDomains is not used.
const DefaultDomainCount = 2

func (d Domain) String() string {
	switch d {
	case DomainRealtime:
		return "realtime"
	case DomainGame:
		return "game"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

// State is the lifecycle state of a started task.
type State int

const (
	StateRunning State = iota
	// StateSucceeded: the body returned a nil error.
	StateSucceeded
	// StateFailed: the body returned an error or panicked.
	StateFailed
	// StateStopped: the task was torn down by Stop or Scheduler.Close before completing.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Down reports whether s is a final state.
func (s State) Down() bool { return s != StateRunning }

// Tag is a key/value pair attached to a task for reports, hooks, and snapshots.
// Tags are kept as a slice to preserve insertion order for stable output.
type Tag struct {
	Key   string
	Value string
}

// Slot is one element of an Any result set.
type Slot[T any] struct {
	Value T
	// Valid is true only for the task that finished first.
	Valid bool
}

// Status is a point-in-time view of one started task.
type Status struct {
	ID   uint64
	Name string
	Tags []Tag

	State State
	// Released is true once the task's Handle was released (explicitly or by being dropped).
	Released bool
	// Resumes counts how many times the task body was resumed, including the initial run.
	Resumes uint64

	// StartedAt and FinishedAt are readings of the realtime domain clock, in seconds.
	// FinishedAt is zero while running.
	StartedAt  float64
	FinishedAt float64

	// Err is the failure message for StateFailed.
	Err string
}

// QueueStatus reports the number of pending waits for one (phase, domain) pair.
type QueueStatus struct {
	Phase   Phase
	Domain  Domain
	Pending int
}

// Snapshot is a point-in-time view of a scheduler.
type Snapshot struct {
	// Tasks lists started tasks still held by the registry, ordered by ID.
	Tasks []Status
	// Queues has one entry per (phase, domain) pair, phase-major.
	Queues []QueueStatus
	// SubTasks counts live tasks run by Await/All/Any that have not finished.
	SubTasks int
	// TakenAt is the realtime domain reading when the snapshot was taken.
	TakenAt float64
}

// Get finds a task status by ID.
func (s Snapshot) Get(id uint64) (Status, bool) {
	for _, st := range s.Tasks {
		if st.ID == id {
			return st, true
		}
	}
	return Status{}, false
}

// Named returns the statuses of all tasks with the given name, in ID order.
func (s Snapshot) Named(name string) []Status {
	var out []Status
	for _, st := range s.Tasks {
		if st.Name == name {
			out = append(out, st)
		}
	}
	return out
}

// StartInfo is passed to OnTaskStart hooks.
type StartInfo struct {
	ID   uint64
	Name string
	Tags []Tag

	StartedAt float64
}

// FinishInfo is passed to OnTaskFinish hooks.
type FinishInfo struct {
	ID   uint64
	Name string
	Tags []Tag

	State   State
	Resumes uint64

	StartedAt  float64
	FinishedAt float64

	// Err is the failure for StateFailed; nil otherwise.
	Err      error
	Panicked bool
}

// PanicHandler is called when a task body panics.
type PanicHandler func(info PanicInfo)

// PanicInfo describes a recovered panic.
type PanicInfo struct {
	// ID is the registry ID, or 0 for a task run by Await/All/Any.
	ID    uint64
	Name  string
	Tags  []Tag
	Value any
	Stack []byte
}
