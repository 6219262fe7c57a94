// Package progress tracks the step-by-step state of a pipeline run and fans
// every transition out to subscribers, such as a streaming HTTP client.
package progress

import "time"

// Status is the lifecycle state of one step
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StepDef declares a step before the run starts
type StepDef struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Step is the live state of one step
type Step struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Duration of the step, zero until it has both timestamps
func (s Step) Duration() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}

// State is a snapshot of a whole run. Version increases with every mutation.
type State struct {
	SessionID    string `json:"sessionId"`
	Steps        []Step `json:"steps"`
	CurrentIndex int    `json:"currentIndex"`
	IsComplete   bool   `json:"isComplete"`
	HasError     bool   `json:"hasError"`
	Version      uint64 `json:"version"`
}

// Current returns the step at CurrentIndex
func (s State) Current() (Step, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[s.CurrentIndex], true
}

// Step looks up a step by id
func (s State) Step(id string) (Step, bool) {
	for _, st := range s.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// Done reports whether the run has reached a final outcome
func (s State) Done() bool {
	return s.IsComplete || s.HasError
}

func (s State) clone() State {
	out := s
	out.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		out.Steps[i] = st
		if st.StartedAt != nil {
			t := *st.StartedAt
			out.Steps[i].StartedAt = &t
		}
		if st.EndedAt != nil {
			t := *st.EndedAt
			out.Steps[i].EndedAt = &t
		}
	}
	return out
}

// Listener receives state snapshots. Listeners run synchronously on the
// goroutine that mutated the state and must not block for long. A listener
// may drive the session it observes; snapshots produced from inside it are
// delivered to it after it returns.
type Listener func(State)
