package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsethi/vitalrelay/internal/model"
)

// ErrNotFound is returned by Update when no session exists for the
// connection, typically because a disconnect was processed first. Callers
// treat this as a silently dropped update, not a client-visible error.
var ErrNotFound = errors.New("session not found")

// Filter selects which sessions a snapshot includes. A nil filter
// matches every session.
type Filter func(*model.Session) bool

// AssignedTo returns a filter matching sessions assigned to doctorID.
func AssignedTo(doctorID string) Filter {
	return func(s *model.Session) bool {
		return s.AssignedDoctorID == doctorID
	}
}

// Registry holds active patient sessions keyed by connection handle.
// The zero value is not usable; use New.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*model.Session
	order    []uuid.UUID // insertion order, for stable snapshots

	now func() time.Time // injectable clock for tests
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*model.Session),
		now:      time.Now,
	}
}

// Register inserts or replaces the session for its connection handle and
// returns the previous session if one existed. A replace is an idempotent
// re-join from the same connection; insertion order is kept from the
// original registration.
func (r *Registry) Register(s model.Session) (prev *model.Session, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.LastUpdate.IsZero() {
		s.LastUpdate = r.now()
	}

	old, ok := r.sessions[s.ConnID]
	if !ok {
		r.order = append(r.order, s.ConnID)
	}

	sCopy := s
	r.sessions[s.ConnID] = &sCopy

	if !ok {
		return nil, false
	}
	oldCopy := *old
	return &oldCopy, true
}

// Update merges vitals into the session for connID and bumps LastUpdate,
// which strictly advances even under coarse clocks. Returns ErrNotFound
// if no session exists for connID.
func (r *Registry) Update(connID uuid.UUID, vitals model.Vitals) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return model.Session{}, ErrNotFound
	}

	v := vitals
	s.Vitals = &v

	ts := r.now()
	if !ts.After(s.LastUpdate) {
		ts = s.LastUpdate.Add(time.Nanosecond)
	}
	s.LastUpdate = ts

	return cloneSession(s), nil
}

// Remove deletes the session for connID and returns it. Removing an
// absent session is a no-op, making disconnect handling idempotent.
func (r *Registry) Remove(connID uuid.UUID) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return model.Session{}, false
	}
	delete(r.sessions, connID)

	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return cloneSession(s), true
}

// Snapshot returns a point-in-time copy of all sessions matching filter,
// in insertion order.
func (r *Registry) Snapshot(filter Filter) []model.SessionView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]model.SessionView, 0, len(r.order))
	for _, id := range r.order {
		s, ok := r.sessions[id]
		if !ok {
			continue
		}
		if filter != nil && !filter(s) {
			continue
		}
		views = append(views, s.View())
	}
	return views
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func cloneSession(s *model.Session) model.Session {
	out := *s
	if s.Vitals != nil {
		v := *s.Vitals
		out.Vitals = &v
	}
	return out
}
