// Package storage holds the in-memory mock of the control plane and the
// preconditions of every mutation.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// DefaultTransitionDelay is how long an instance stays in a transitional
// run state (starting, stopping, rebooting) before reaching the final one.
const DefaultTransitionDelay = 2 * time.Second

// Store is the mock control-plane state. Every operation runs to completion
// under mu, so requests see a single logical writer. Values returned from
// Store methods are copies.
type Store struct {
	mu      sync.Mutex
	initial *InitialState
	db      *state

	// gen is bumped on Reset so timers scheduled before it become no-ops.
	gen uint64
	// timers holds the pending run-state step of each instance.
	timers map[string]*time.Timer

	transitionDelay time.Duration
	now             func() time.Time
	newID           func() string
}

// Option configures a Store.
type Option func(*Store)

// WithTransitionDelay sets the delay between instance run-state steps.
// Zero applies the final state immediately.
func WithTransitionDelay(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.transitionDelay = d
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new record identifiers are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New builds a Store from a deep copy of initial.
func New(initial *InitialState, opts ...Option) *Store {
	if initial == nil {
		initial = &InitialState{}
	}
	s := &Store{
		initial:         initial,
		timers:          make(map[string]*time.Timer),
		transitionDelay: DefaultTransitionDelay,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.db = newState(initial)
	return s
}

// Reset discards all changes and restores the initial state.
// Pending run-state transitions are cancelled.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	s.db = newState(s.initial)
}

// Close cancels pending run-state transitions.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	return nil
}

func (s *Store) stopTimersLocked() {
	s.gen++
	for _, t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
}

// Export returns a deep copy of the current state.
func (s *Store) Export(ctx context.Context) *InitialState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.export()
}

// Counts returns the number of live records in each collection.
func (s *Store) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.counts()
}

func (s *Store) identity(name, description string) domain.Identity {
	now := s.now()
	return domain.Identity{
		ID:           s.newID(),
		Name:         name,
		Description:  description,
		TimeCreated:  now,
		TimeModified: now,
	}
}

func (s *Store) touch(id *domain.Identity) { id.TimeModified = s.now() }

// rename applies the optional name and description of an update.
func (s *Store) rename(id *domain.Identity, name, description *string) {
	if name != nil {
		id.Name = *name
	}
	if description != nil {
		id.Description = *description
	}
	s.touch(id)
}

// setRunState moves an instance through steps, one per transition delay.
// Each step only applies if the instance is still in the state the previous
// step left it in. Must be called with mu held.
func (s *Store) setRunState(inst *domain.Instance, steps ...domain.InstanceState) {
	if len(steps) == 0 {
		return
	}
	if t, ok := s.timers[inst.ID]; ok {
		t.Stop()
		delete(s.timers, inst.ID)
	}
	inst.RunState = steps[0]
	inst.TimeRunStateUpdated = s.now()
	if s.transitionDelay == 0 {
		for _, st := range steps[1:] {
			inst.RunState = st
		}
		return
	}
	s.scheduleStep(inst.ID, steps, 1)
}

func (s *Store) scheduleStep(id string, steps []domain.InstanceState, i int) {
	if i >= len(steps) {
		return
	}
	gen := s.gen
	var t *time.Timer
	t = time.AfterFunc(s.transitionDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		if s.timers[id] == t {
			delete(s.timers, id)
		}
		inst, err := lookupByID(s.db.Instances, id, "instance")
		if err != nil || inst.RunState != steps[i-1] {
			return
		}
		inst.RunState = steps[i]
		inst.TimeRunStateUpdated = s.now()
		s.scheduleStep(id, steps, i+1)
	})
	s.timers[id] = t
}
