package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rsethi/vitalrelay/internal/identity"
)

// ErrNotConnected is returned by SendTo when no live connection exists
// for the handle.
var ErrNotConnected = errors.New("connection not found")

// Inbound event names (client → server).
const (
	EventJoin       = "join_session"
	EventVital      = "vital_update"
	EventAlert      = "emergency_alert"
	EventDisconnect = "disconnect" // synthetic, emitted by the gateway
)

// Outbound event names (server → client).
const (
	EventPatientUpdate  = "patient_update"
	EventAlertBroadcast = "alert_broadcast"
)

// GroupAdmin is the broadcast group holding all admin observers.
const GroupAdmin = "admin"

// DoctorGroup returns the implicit per-doctor group name for a doctor
// identity. Membership is derived from the observer's own verified
// identity, never from a static list.
func DoctorGroup(doctorID string) string {
	return DoctorGroupPrefix + doctorID
}

// DoctorGroupPrefix is the common prefix of all per-doctor groups.
const DoctorGroupPrefix = "doctor:"

// DoctorIDFromGroup extracts the doctor identity from a per-doctor group
// name. Returns "" if the name is not a doctor group.
func DoctorIDFromGroup(group string) string {
	if len(group) <= len(DoctorGroupPrefix) || group[:len(DoctorGroupPrefix)] != DoctorGroupPrefix {
		return ""
	}
	return group[len(DoctorGroupPrefix):]
}

// Event is one inbound named event delivered to the Event Router. The
// gateway performs no interpretation beyond decoding the envelope.
type Event struct {
	ConnID     uuid.UUID
	Name       string
	Data       json.RawMessage
	Identity   identity.Identity // handshake-verified, not payload-derived
	ReceivedAt time.Time
}

// envelope is the wire frame exchanged with clients.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Config configures the gateway.
type Config struct {
	// OutboxSize bounds each connection's outgoing queue.
	OutboxSize int

	// EventBufferSize bounds the inbound event channel to the router.
	EventBufferSize int

	// JoinGrace is how long an accepted connection may remain
	// unidentified before the gateway closes it.
	JoinGrace time.Duration

	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration

	// PingInterval is how often keepalive pings are sent.
	PingInterval time.Duration

	// PongTimeout is the read deadline extension granted per pong.
	PongTimeout time.Duration

	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		OutboxSize:      256,
		EventBufferSize: 4096,
		JoinGrace:       30 * time.Second,
		WriteTimeout:    5 * time.Second,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		ReadLimit:       8192,
	}
}

// Stats provides a point-in-time view of gateway activity.
type Stats struct {
	Connected      int
	TotalAccepted  int64
	TotalClosed    int64
	FramesDropped  int64 // outbound frames dropped to bounded outboxes
	EventsReceived int64
	GraceClosed    int64 // connections closed for never identifying
}
