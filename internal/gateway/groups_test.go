package gateway

import (
	"testing"

	"github.com/google/uuid"
)

func TestGroups_JoinLeave(t *testing.T) {
	g := NewGroups()
	a, b := uuid.New(), uuid.New()

	g.Join(GroupAdmin, a)
	g.Join(GroupAdmin, b)

	if got := len(g.Members(GroupAdmin)); got != 2 {
		t.Errorf("Members = %d, want 2", got)
	}
	if !g.Contains(GroupAdmin, a) {
		t.Error("Contains(a) = false, want true")
	}

	g.Leave(GroupAdmin, a)
	if g.Contains(GroupAdmin, a) {
		t.Error("Contains(a) = true after Leave")
	}
	if got := len(g.Members(GroupAdmin)); got != 1 {
		t.Errorf("Members = %d after Leave, want 1", got)
	}

	// Leaving a group you are not in is a no-op.
	g.Leave(GroupAdmin, a)
	g.Leave("nonexistent", a)
}

func TestGroups_JoinIdempotent(t *testing.T) {
	g := NewGroups()
	a := uuid.New()

	g.Join(GroupAdmin, a)
	g.Join(GroupAdmin, a)

	if got := len(g.Members(GroupAdmin)); got != 1 {
		t.Errorf("Members = %d after duplicate Join, want 1", got)
	}
}

func TestGroups_LeaveAll(t *testing.T) {
	g := NewGroups()
	a, b := uuid.New(), uuid.New()

	g.Join(GroupAdmin, a)
	g.Join(DoctorGroup("D7"), a)
	g.Join(DoctorGroup("D7"), b)

	g.LeaveAll(a)

	if g.Contains(GroupAdmin, a) || g.Contains(DoctorGroup("D7"), a) {
		t.Error("LeaveAll left memberships behind")
	}
	if !g.Contains(DoctorGroup("D7"), b) {
		t.Error("LeaveAll removed another connection's membership")
	}
}

func TestGroups_WithPrefix(t *testing.T) {
	g := NewGroups()
	a := uuid.New()

	g.Join(GroupAdmin, a)
	g.Join(DoctorGroup("D7"), a)
	g.Join(DoctorGroup("D9"), a)

	names := g.WithPrefix(DoctorGroupPrefix)
	if len(names) != 2 {
		t.Fatalf("WithPrefix = %v, want 2 doctor groups", names)
	}
	for _, name := range names {
		if got := DoctorIDFromGroup(name); got != "D7" && got != "D9" {
			t.Errorf("DoctorIDFromGroup(%q) = %q", name, got)
		}
	}

	// Empty groups disappear.
	g.LeaveAll(a)
	if names := g.WithPrefix(DoctorGroupPrefix); len(names) != 0 {
		t.Errorf("WithPrefix = %v after LeaveAll, want none", names)
	}
}

func TestDoctorIDFromGroup(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{DoctorGroup("D7"), "D7"},
		{"doctor:", ""},
		{"admin", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DoctorIDFromGroup(tt.group); got != tt.want {
			t.Errorf("DoctorIDFromGroup(%q) = %q, want %q", tt.group, got, tt.want)
		}
	}
}
