package router

import (
	"github.com/google/uuid"

	"github.com/rsethi/vitalrelay/internal/gateway"
)

// Config holds configuration for the Event Router.
type Config struct {
	// HistoryBufferSize bounds the channel of accepted vital samples
	// handed to the history writer. Overflow drops samples rather than
	// stalling routing.
	HistoryBufferSize int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		HistoryBufferSize: 1024,
	}
}

// Gateway is the slice of the Connection Gateway the router drives.
// *gateway.Manager satisfies it; tests substitute a fake.
type Gateway interface {
	SendTo(connID uuid.UUID, event string, payload any) error
	SendToGroup(group string, event string, payload any) error
	Groups() *gateway.Groups
	MarkIdentified(connID uuid.UUID)
}

// Stats contains runtime routing statistics.
type Stats struct {
	EventsReceived int64
	JoinsAccepted  int64
	JoinsRejected  int64
	UpdatesApplied int64
	UpdatesDropped int64
	AlertsRouted   int64
	Broadcasts     int64
	HistoryDropped int64
}

// phase is a connection's position in its lifecycle.
type phase int

const (
	phaseUnidentified phase = iota
	phaseIdentified         // observer (doctor or admin)
	phaseActive             // joined patient
)

// connState tracks one connection's lifecycle. Closed connections are
// deleted from the state table rather than kept in a terminal phase.
type connState struct {
	phase            phase
	role             string
	patientID        string // patients only
	assignedDoctorID string // patients only
	contactPhone     string // patients only
}

// Wire payload types.

// joinPayload is the client-supplied join_session body. Role and
// assignment fields are provisional and reconciled against the verified
// identity before use.
type joinPayload struct {
	Role             string `json:"role"`
	Username         string `json:"username"`
	Phone            string `json:"phone,omitempty"`
	PatientID        string `json:"patientId,omitempty"`
	AssignedDoctorID string `json:"assignedDoctorId,omitempty"`
}

// vitalPayload is the client-supplied vital_update body.
type vitalPayload struct {
	HeartRate float64 `json:"heartRate"`
	SpO2      float64 `json:"spO2"`
	Pressure  float64 `json:"pressure"`
	Status    string  `json:"status,omitempty"`
}

// alertPayload is the client-supplied emergency_alert body.
type alertPayload struct {
	Message      string `json:"message"`
	PatientName  string `json:"patientName,omitempty"`
	PatientPhone string `json:"patientPhone,omitempty"`
	Level        string `json:"level,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}
