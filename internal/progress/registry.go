package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/retry"
)

// DefaultSubscribePolicy bounds the wait for a session that does not exist yet
var DefaultSubscribePolicy = retry.Policy{MaxAttempts: 20, Interval: 100 * time.Millisecond}

// Config configures a Registry
type Config struct {
	Clock           retry.Clock
	SubscribePolicy retry.Policy
	Logger          *zap.Logger
}

// Registry owns the progress state of every live session and the
// cross-session subscribers attached to them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	watchers map[string][]*subscriber
	nextID   uint64
	// version is shared by all sessions so a re-created session id never
	// reuses a version a subscriber has already seen
	version uint64

	clock  retry.Clock
	policy retry.Policy
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type session struct {
	state State
	subs  []*subscriber
}

// subscriber delivers snapshots in version order; an older snapshot than the
// last one delivered is dropped. Calls to fn never overlap: a snapshot that
// arrives while fn is running is handed to the running delivery, which calls
// fn again with the newest one once it returns.
type subscriber struct {
	id    uint64
	fn    Listener
	ended func()

	closed atomic.Bool

	mu          sync.Mutex
	delivered   bool
	lastVersion uint64
	busy        bool
	pending     *State
}

func (s *subscriber) deliver(st State) bool {
	s.mu.Lock()
	if s.closed.Load() || (s.delivered && st.Version <= s.lastVersion) {
		s.mu.Unlock()
		return false
	}
	s.delivered = true
	s.lastVersion = st.Version
	if s.busy {
		s.pending = &st
		s.mu.Unlock()
		return true
	}
	s.busy = true
	for {
		s.mu.Unlock()
		s.fn(st)
		s.mu.Lock()
		if s.pending == nil || s.closed.Load() {
			s.busy = false
			s.pending = nil
			s.mu.Unlock()
			return true
		}
		st = *s.pending
		s.pending = nil
	}
}

func (s *subscriber) hasDelivered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// close may be called from inside the subscriber's own listener
func (s *subscriber) close() {
	s.closed.Store(true)
}

func (s *subscriber) end() {
	if s.ended != nil && !s.closed.Load() {
		s.ended()
	}
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = retry.RealClock
	}
	if cfg.SubscribePolicy == (retry.Policy{}) {
		cfg.SubscribePolicy = DefaultSubscribePolicy
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		sessions: make(map[string]*session),
		watchers: make(map[string][]*subscriber),
		clock:    cfg.Clock,
		policy:   cfg.SubscribePolicy,
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create starts tracking sessionID with every step pending. An existing
// session with the same id is replaced; trackers of the replaced session
// become no-ops and can no longer clean up the new one.
func (r *Registry) Create(sessionID string, defs []StepDef) *Tracker {
	steps := make([]Step, len(defs))
	for i, d := range defs {
		steps[i] = Step{ID: d.ID, Label: d.Label, Description: d.Description, Status: StatusPending}
	}

	r.mu.Lock()
	if _, exists := r.sessions[sessionID]; exists {
		r.logger.Warn("replacing live progress session", zap.String("session_id", sessionID))
	}
	r.version++
	s := &session{state: State{
		SessionID:    sessionID,
		Steps:        steps,
		CurrentIndex: -1,
		Version:      r.version,
	}}
	r.sessions[sessionID] = s
	r.mu.Unlock()

	r.emit(sessionID)
	return &Tracker{registry: r, sessionID: sessionID, session: s}
}

// Get returns a snapshot of the session state
func (r *Registry) Get(sessionID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return State{}, false
	}
	return s.state.clone(), true
}

// Sessions lists the ids of live sessions
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Subscribe attaches fn to sessionID across tracker instances. fn receives
// the current state immediately when the session exists. Otherwise a bounded
// poll waits for the session to appear and gives up silently.
func (r *Registry) Subscribe(sessionID string, fn Listener) (unsubscribe func()) {
	return r.subscribe(sessionID, fn, nil)
}

// SubscribeUntilEnd is Subscribe plus ended, which is called each time a
// session with this id is cleaned up, after its last snapshot was delivered.
// Streaming transports use it to close as soon as a run is over, whether it
// completed or failed.
func (r *Registry) SubscribeUntilEnd(sessionID string, fn Listener, ended func()) (unsubscribe func()) {
	return r.subscribe(sessionID, fn, ended)
}

func (r *Registry) subscribe(sessionID string, fn Listener, ended func()) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	sub := &subscriber{id: r.nextID, fn: fn, ended: ended}
	r.watchers[sessionID] = append(r.watchers[sessionID], sub)
	s, exists := r.sessions[sessionID]
	var snapshot State
	if exists {
		snapshot = s.state.clone()
	}
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(r.ctx)
	unsubscribe = func() {
		cancel()
		sub.close()
		r.mu.Lock()
		r.watchers[sessionID] = removeSubscriber(r.watchers[sessionID], sub)
		if len(r.watchers[sessionID]) == 0 {
			delete(r.watchers, sessionID)
		}
		r.mu.Unlock()
	}

	if exists {
		sub.deliver(snapshot)
		cancel()
		return unsubscribe
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		err := retry.Poll(ctx, r.clock, r.policy, func(ctx context.Context, attempt int) (bool, error) {
			if sub.hasDelivered() {
				return true, nil
			}
			st, ok := r.Get(sessionID)
			if !ok {
				return false, nil
			}
			sub.deliver(st)
			return true, nil
		})
		if err != nil {
			r.logger.Debug("gave up waiting for progress session",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
	return unsubscribe
}

// Close stops pending subscription polls and waits for them to exit
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

// mutate applies fn to the session state under the lock. When fn reports a
// change the version is bumped and the new state is fanned out. Nothing
// happens when s is no longer the live session for sessionID.
func (r *Registry) mutate(sessionID string, s *session, fn func(st *State) bool) {
	r.mu.Lock()
	if r.sessions[sessionID] != s || !fn(&s.state) {
		r.mu.Unlock()
		return
	}
	r.version++
	s.state.Version = r.version
	r.mu.Unlock()

	r.emit(sessionID)
}

// remove deletes s if it is still the live session for sessionID and tells
// the session's registry subscribers that it ended.
func (r *Registry) remove(sessionID string, s *session) {
	r.mu.Lock()
	if r.sessions[sessionID] != s {
		r.mu.Unlock()
		return
	}
	for _, sub := range s.subs {
		sub.close()
	}
	delete(r.sessions, sessionID)
	watchers := append([]*subscriber(nil), r.watchers[sessionID]...)
	r.mu.Unlock()

	for _, sub := range watchers {
		sub.end()
	}
}

// emit delivers a snapshot to instance subscribers, then to cross-session
// subscribers, each in registration order.
func (r *Registry) emit(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	snapshot := s.state.clone()
	targets := make([]*subscriber, 0, len(s.subs)+len(r.watchers[sessionID]))
	targets = append(targets, s.subs...)
	targets = append(targets, r.watchers[sessionID]...)
	r.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(snapshot)
	}
}

func (r *Registry) now() time.Time {
	return r.clock.Now()
}

func removeSubscriber(subs []*subscriber, target *subscriber) []*subscriber {
	for i, s := range subs {
		if s == target {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
