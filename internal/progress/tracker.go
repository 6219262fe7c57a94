package progress

import "sync"

// Tracker drives the steps of one session. All methods are no-ops once the
// session has been cleaned up or replaced by a later Create with the same id,
// and for step ids that were never declared.
type Tracker struct {
	registry  *Registry
	sessionID string
	session   *session
	cleanup   sync.Once
}

// SessionID returns the id the tracker was created with
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// State returns a snapshot of the session
func (t *Tracker) State() (State, bool) {
	r := t.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[t.sessionID] != t.session {
		return State{}, false
	}
	return t.session.state.clone(), true
}

// StartStep marks id in-progress and makes it the current step
func (t *Tracker) StartStep(id string) {
	now := t.registry.now()
	t.registry.mutate(t.sessionID, t.session, func(st *State) bool {
		i := indexOf(st.Steps, id)
		if i < 0 || st.Steps[i].Status.IsTerminal() {
			return false
		}
		st.Steps[i].Status = StatusInProgress
		st.Steps[i].StartedAt = &now
		st.CurrentIndex = i
		return true
	})
}

// CompleteStep marks id completed
func (t *Tracker) CompleteStep(id string) {
	now := t.registry.now()
	t.registry.mutate(t.sessionID, t.session, func(st *State) bool {
		i := indexOf(st.Steps, id)
		if i < 0 || st.Steps[i].Status.IsTerminal() {
			return false
		}
		st.Steps[i].Status = StatusCompleted
		if st.Steps[i].StartedAt == nil {
			st.Steps[i].StartedAt = &now
		}
		st.Steps[i].EndedAt = &now
		st.IsComplete = allCompleted(st.Steps)
		return true
	})
}

// ErrorStep marks id failed with message. Later steps are left alone.
func (t *Tracker) ErrorStep(id, message string) {
	now := t.registry.now()
	t.registry.mutate(t.sessionID, t.session, func(st *State) bool {
		i := indexOf(st.Steps, id)
		if i < 0 || st.Steps[i].Status.IsTerminal() {
			return false
		}
		st.Steps[i].Status = StatusError
		if st.Steps[i].StartedAt == nil {
			st.Steps[i].StartedAt = &now
		}
		st.Steps[i].EndedAt = &now
		st.Steps[i].Error = message
		st.HasError = true
		return true
	})
}

// FailActive marks the in-progress step, if there is one, as failed.
// It reports whether a step was failed.
func (t *Tracker) FailActive(message string) bool {
	st, ok := t.State()
	if !ok {
		return false
	}
	for _, step := range st.Steps {
		if step.Status == StatusInProgress {
			t.ErrorStep(step.ID, message)
			return true
		}
	}
	return false
}

// Subscribe attaches fn to this tracker. fn immediately receives the current state.
func (t *Tracker) Subscribe(fn Listener) (unsubscribe func()) {
	r := t.registry
	r.mu.Lock()
	s := t.session
	if r.sessions[t.sessionID] != s {
		r.mu.Unlock()
		return func() {}
	}
	r.nextID++
	sub := &subscriber{id: r.nextID, fn: fn}
	s.subs = append(s.subs, sub)
	snapshot := s.state.clone()
	r.mu.Unlock()

	sub.deliver(snapshot)

	return func() {
		sub.close()
		r.mu.Lock()
		defer r.mu.Unlock()
		s.subs = removeSubscriber(s.subs, sub)
	}
}

// Cleanup removes the session state, drops instance subscribers and signals
// the end of the run to registry subscribers. Calling it more than once is
// harmless, and a tracker whose session was replaced leaves the new one alone.
func (t *Tracker) Cleanup() {
	t.cleanup.Do(func() {
		t.registry.remove(t.sessionID, t.session)
	})
}

func indexOf(steps []Step, id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func allCompleted(steps []Step) bool {
	for _, s := range steps {
		if s.Status != StatusCompleted {
			return false
		}
	}
	return len(steps) > 0
}
