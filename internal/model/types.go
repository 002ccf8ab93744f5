package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what kind of client a connection represents.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// Observer reports whether r receives scoped snapshots rather than
// holding a registry entry.
func (r Role) Observer() bool {
	return r == RoleDoctor || r == RoleAdmin
}

// Vitals is the latest reading reported by a patient device.
// Status is supplied by an external classifier (normal/warning/critical)
// and carried through unmodified; routing never depends on it.
type Vitals struct {
	HeartRate float64 `json:"heartRate"`
	SpO2      float64 `json:"spO2"`
	Pressure  float64 `json:"pressure"`
	Status    string  `json:"status,omitempty"`
}

// Session is one connected patient's current identity and latest vitals.
// Doctor and admin connections are observers and never become sessions.
type Session struct {
	ConnID           uuid.UUID
	Role             Role
	PatientID        string // stable account identifier, from verified identity
	DisplayName      string
	ContactPhone     string
	AssignedDoctorID string
	Vitals           *Vitals // nil until the first vital_update
	LastUpdate       time.Time
}

// View converts a session to its wire form.
func (s *Session) View() SessionView {
	v := SessionView{
		PatientID:        s.PatientID,
		DisplayName:      s.DisplayName,
		ContactPhone:     s.ContactPhone,
		AssignedDoctorID: s.AssignedDoctorID,
		LastUpdate:       s.LastUpdate.UTC().Format(time.RFC3339Nano),
	}
	if s.Vitals != nil {
		vitals := *s.Vitals
		v.Vitals = &vitals
	}
	return v
}

// SessionView is the observer-facing shape of a session, sent in
// patient_update payloads.
type SessionView struct {
	PatientID        string  `json:"patientId"`
	DisplayName      string  `json:"displayName"`
	ContactPhone     string  `json:"contactPhone,omitempty"`
	AssignedDoctorID string  `json:"assignedDoctorId,omitempty"`
	Vitals           *Vitals `json:"vitals,omitempty"`
	LastUpdate       string  `json:"lastUpdate"`
}

// Alert is an ephemeral emergency notification. Alerts are fanned out to
// the admin group and the originating session's assigned doctor, then
// discarded; they are never stored.
type Alert struct {
	ID              uuid.UUID `json:"id"`
	Type            string    `json:"type"`
	Severity        string    `json:"severity"`
	OriginPatientID string    `json:"originPatientId"`
	OriginDoctorID  string    `json:"originDoctorId,omitempty"`
	ContactPhone    string    `json:"contactPhone,omitempty"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

// VitalSample is one accepted vital_update, published to the history
// writer for persistence outside the routing core.
type VitalSample struct {
	PatientID  string
	Vitals     Vitals
	RecordedAt time.Time
}
