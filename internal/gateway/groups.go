package gateway

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Groups tracks logical sets of observer connections. Memberships are
// created on join and destroyed on disconnect; observers hold no other
// server-side state.
type Groups struct {
	mu     sync.RWMutex
	groups map[string]map[uuid.UUID]struct{}
}

// NewGroups creates an empty group table.
func NewGroups() *Groups {
	return &Groups{groups: make(map[string]map[uuid.UUID]struct{})}
}

// Join adds connID to the named group.
func (g *Groups) Join(name string, connID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.groups[name]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		g.groups[name] = members
	}
	members[connID] = struct{}{}
}

// Leave removes connID from the named group, dropping the group once
// empty. Leaving a group the connection is not in is a no-op.
func (g *Groups) Leave(name string, connID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if members, ok := g.groups[name]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(g.groups, name)
		}
	}
}

// LeaveAll removes connID from every group.
func (g *Groups) LeaveAll(connID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, members := range g.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(g.groups, name)
		}
	}
}

// Members returns a copy of the named group's membership.
func (g *Groups) Members(name string) []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := g.groups[name]
	out := make([]uuid.UUID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// WithPrefix returns the names of all non-empty groups sharing prefix.
func (g *Groups) WithPrefix(prefix string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var names []string
	for name := range g.groups {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

// Contains reports whether connID is a member of the named group.
func (g *Groups) Contains(name string, connID uuid.UUID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.groups[name][connID]
	return ok
}
