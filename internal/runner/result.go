package runner

import "time"

// State is a step in the lifecycle of a single script invocation.
type State string

const (
	StateIdle          State = "idle"
	StateSpawning      State = "spawning"
	StateWritingInput  State = "writing_input"
	StateReadingOutput State = "reading_output"
	StateReadingError  State = "reading_error"
	StateTerminated    State = "terminated"
	StateFaulted       State = "faulted"
)

// Invocation tracks one script submitted to a shell. It is owned by the
// goroutine that calls Runner.Run and is never shared.
type Invocation struct {
	Command      string
	StartedAt    time.Time
	ExitObserved bool

	states []State
}

// NewInvocation returns an idle invocation for command.
func NewInvocation(command string) *Invocation {
	return &Invocation{
		Command: command,
		states:  []State{StateIdle},
	}
}

// State returns the current state.
func (inv *Invocation) State() State {
	return inv.states[len(inv.states)-1]
}

// Transitions returns every state the invocation has been in, oldest first.
func (inv *Invocation) Transitions() []State {
	return append([]State(nil), inv.states...)
}

// Enter moves the invocation to s. Terminal states are sticky.
func (inv *Invocation) Enter(s State) {
	switch inv.State() {
	case StateTerminated, StateFaulted:
		return
	}
	if s == StateSpawning && inv.StartedAt.IsZero() {
		inv.StartedAt = time.Now()
	}
	if s == StateTerminated {
		inv.ExitObserved = true
	}
	inv.states = append(inv.states, s)
}

// Result holds the output of a script execution.
type Result struct {
	RunID     string        // unique identifier for this run
	Shell     string        // backend description, e.g. "pwsh" or "virtual"
	ExitCode  int           // shell exit code
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Truncated bool          // true if either stream exceeded the size cap
	Completed bool          // the shell was observed to exit
	StartedAt time.Time     // when the shell was started
	Duration  time.Duration // wall time from start to reap
}

// Combined returns stdout followed by stderr with no separator.
func (r *Result) Combined() string {
	return string(r.Stdout) + string(r.Stderr)
}
