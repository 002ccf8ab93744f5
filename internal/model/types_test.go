package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoleValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RolePatient, true},
		{RoleDoctor, true},
		{RoleAdmin, true},
		{Role("nurse"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestRoleObserver(t *testing.T) {
	if RolePatient.Observer() {
		t.Error("patient should not be an observer")
	}
	if !RoleDoctor.Observer() || !RoleAdmin.Observer() {
		t.Error("doctor and admin should be observers")
	}
}

func TestSessionView(t *testing.T) {
	ts := time.Date(2026, 8, 14, 10, 30, 0, 123456789, time.UTC)
	s := Session{
		PatientID:        "P1",
		DisplayName:      "Alice",
		ContactPhone:     "555-0100",
		AssignedDoctorID: "D7",
		Vitals:           &Vitals{HeartRate: 72, SpO2: 98, Pressure: 120},
		LastUpdate:       ts,
	}

	v := s.View()

	if v.PatientID != "P1" || v.DisplayName != "Alice" {
		t.Errorf("view = %+v, want P1/Alice", v)
	}
	if v.LastUpdate != ts.Format(time.RFC3339Nano) {
		t.Errorf("LastUpdate = %q, want %q", v.LastUpdate, ts.Format(time.RFC3339Nano))
	}
	if v.Vitals == nil || v.Vitals.HeartRate != 72 {
		t.Errorf("Vitals = %+v, want heart rate 72", v.Vitals)
	}

	// The view must not alias the session's vitals.
	s.Vitals.HeartRate = 140
	if v.Vitals.HeartRate != 72 {
		t.Errorf("view vitals mutated through session, HeartRate = %v", v.Vitals.HeartRate)
	}
}

func TestSessionViewWithoutVitals(t *testing.T) {
	s := Session{PatientID: "P1", DisplayName: "Alice", LastUpdate: time.Now()}

	v := s.View()
	if v.Vitals != nil {
		t.Errorf("Vitals = %+v, want nil before first reading", v.Vitals)
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) == "" {
		t.Fatal("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, present := decoded["vitals"]; present {
		t.Error("nil vitals should be omitted from the payload")
	}
	if _, present := decoded["contactPhone"]; present {
		t.Error("empty contact phone should be omitted from the payload")
	}
}
