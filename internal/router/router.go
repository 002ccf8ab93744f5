package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsethi/vitalrelay/internal/gateway"
	"github.com/rsethi/vitalrelay/internal/model"
	"github.com/rsethi/vitalrelay/internal/registry"
)

// Router consumes gateway events and routes scoped views to observers.
type Router interface {
	// Start begins routing events from the gateway channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// History returns the stream of accepted vital samples for the
	// persistence collaborator.
	History() <-chan model.VitalSample

	// Stats returns current routing statistics.
	Stats() Stats
}

// router is the internal implementation. All state mutation happens on
// the single routeLoop goroutine, which serializes registry access and
// preserves per-connection event order.
type router struct {
	cfg    Config
	gw     Gateway
	reg    *registry.Registry
	logger *slog.Logger

	input   <-chan gateway.Event
	history chan model.VitalSample

	// Per-connection lifecycle state, owned by routeLoop.
	states map[uuid.UUID]*connState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.RWMutex
	received       int64
	joinsAccepted  int64
	joinsRejected  int64
	updatesApplied int64
	updatesDropped int64
	alertsRouted   int64
	broadcasts     int64
	historyDropped int64
}

// New creates an Event Router consuming events from input.
func New(cfg Config, gw Gateway, reg *registry.Registry, input <-chan gateway.Event, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:     cfg,
		gw:      gw,
		reg:     reg,
		logger:  logger,
		input:   input,
		history: make(chan model.VitalSample, cfg.HistoryBufferSize),
		states:  make(map[uuid.UUID]*connState),
	}
}

// Start begins routing events.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"history_buffer", r.cfg.HistoryBufferSize,
	)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	close(r.history)
	return nil
}

// History returns the accepted vital sample stream.
func (r *router) History() <-chan model.VitalSample {
	return r.history
}

// Stats returns current statistics.
func (r *router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		EventsReceived: r.received,
		JoinsAccepted:  r.joinsAccepted,
		JoinsRejected:  r.joinsRejected,
		UpdatesApplied: r.updatesApplied,
		UpdatesDropped: r.updatesDropped,
		AlertsRouted:   r.alertsRouted,
		Broadcasts:     r.broadcasts,
		HistoryDropped: r.historyDropped,
	}
}

// routeLoop is the single routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-r.input:
			if !ok {
				r.logger.Info("gateway event channel closed")
				return
			}
			r.route(ev)
		}
	}
}

// route dispatches a single event.
func (r *router) route(ev gateway.Event) {
	r.count(&r.received)

	switch ev.Name {
	case gateway.EventJoin:
		r.handleJoin(ev)
	case gateway.EventVital:
		r.handleVital(ev)
	case gateway.EventAlert:
		r.handleAlert(ev)
	case gateway.EventDisconnect:
		r.handleDisconnect(ev)
	default:
		r.logger.Debug("skipping event", "name", ev.Name, "conn_id", ev.ConnID)
	}
}

// handleJoin processes join_session. The payload is reconciled against
// the handshake-verified identity; a role or assignment mismatch rejects
// the event and the connection stays unidentified.
func (r *router) handleJoin(ev gateway.Event) {
	var p joinPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		r.reject(ev, "malformed join payload")
		return
	}

	role := model.Role(p.Role)
	if !role.Valid() {
		r.reject(ev, "missing or invalid role")
		return
	}
	if role != ev.Identity.Role {
		r.reject(ev, "role does not match verified identity")
		return
	}
	if role == model.RolePatient && p.AssignedDoctorID != "" && p.AssignedDoctorID != ev.Identity.AssignedDoctorID {
		r.reject(ev, "assigned doctor does not match verified identity")
		return
	}

	displayName := p.Username
	if displayName == "" {
		displayName = ev.Identity.DisplayName
	}

	switch role {
	case model.RolePatient:
		s := model.Session{
			ConnID:      ev.ConnID,
			Role:        model.RolePatient,
			PatientID:   ev.Identity.SubjectID,
			DisplayName: displayName,
			// Reconnects keep the account-derived identifier, so
			// assignment matching survives new connections.
			ContactPhone:     p.Phone,
			AssignedDoctorID: ev.Identity.AssignedDoctorID,
		}
		if _, replaced := r.reg.Register(s); replaced {
			r.logger.Debug("idempotent re-join", "conn_id", ev.ConnID, "patient_id", s.PatientID)
		}

		r.states[ev.ConnID] = &connState{
			phase:            phaseActive,
			role:             string(role),
			patientID:        s.PatientID,
			assignedDoctorID: s.AssignedDoctorID,
			contactPhone:     s.ContactPhone,
		}
		r.gw.MarkIdentified(ev.ConnID)
		r.count(&r.joinsAccepted)

		r.logger.Info("patient joined",
			"conn_id", ev.ConnID,
			"patient_id", s.PatientID,
			"assigned_doctor", s.AssignedDoctorID,
		)
		r.broadcast()

	case model.RoleDoctor:
		r.states[ev.ConnID] = &connState{phase: phaseIdentified, role: string(role)}
		r.gw.Groups().Join(gateway.DoctorGroup(ev.Identity.SubjectID), ev.ConnID)
		r.gw.MarkIdentified(ev.ConnID)
		r.count(&r.joinsAccepted)

		r.logger.Info("doctor joined", "conn_id", ev.ConnID, "doctor_id", ev.Identity.SubjectID)

		// New observers get their scoped view immediately rather than
		// waiting for the next registry mutation.
		views := r.reg.Snapshot(registry.AssignedTo(ev.Identity.SubjectID))
		r.sendTo(ev.ConnID, gateway.EventPatientUpdate, views)

	case model.RoleAdmin:
		r.states[ev.ConnID] = &connState{phase: phaseIdentified, role: string(role)}
		r.gw.Groups().Join(gateway.GroupAdmin, ev.ConnID)
		r.gw.MarkIdentified(ev.ConnID)
		r.count(&r.joinsAccepted)

		r.logger.Info("admin joined", "conn_id", ev.ConnID, "admin_id", ev.Identity.SubjectID)

		views := r.reg.Snapshot(nil)
		r.sendTo(ev.ConnID, gateway.EventPatientUpdate, views)
	}
}

// handleVital processes vital_update from active patient connections.
func (r *router) handleVital(ev gateway.Event) {
	st, ok := r.states[ev.ConnID]
	if !ok || st.phase != phaseActive {
		r.logger.Debug("vital_update from non-active connection dropped", "conn_id", ev.ConnID)
		r.count(&r.updatesDropped)
		return
	}

	var p vitalPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		r.logger.Debug("malformed vital_update dropped", "conn_id", ev.ConnID)
		r.count(&r.updatesDropped)
		return
	}

	vitals := model.Vitals{
		HeartRate: p.HeartRate,
		SpO2:      p.SpO2,
		Pressure:  p.Pressure,
		Status:    p.Status,
	}

	s, err := r.reg.Update(ev.ConnID, vitals)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// Lost the race against a disconnect; the removal wins.
			r.count(&r.updatesDropped)
			return
		}
		r.logger.Error("registry update failed", "conn_id", ev.ConnID, "error", err)
		return
	}

	r.count(&r.updatesApplied)
	r.publishSample(s)
	r.broadcast()
}

// handleAlert processes emergency_alert from any identified connection.
// Alerts are never stored and never gated on registry membership.
func (r *router) handleAlert(ev gateway.Event) {
	st, ok := r.states[ev.ConnID]
	if !ok {
		r.logger.Debug("emergency_alert from unidentified connection dropped", "conn_id", ev.ConnID)
		return
	}

	var p alertPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		r.logger.Debug("malformed emergency_alert dropped", "conn_id", ev.ConnID)
		return
	}

	ts := ev.ReceivedAt
	if p.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			ts = parsed
		}
	}

	alert := model.Alert{
		ID:              uuid.New(),
		Type:            "emergency",
		Severity:        p.Level,
		OriginPatientID: st.patientID,
		OriginDoctorID:  st.assignedDoctorID,
		ContactPhone:    st.contactPhone,
		Message:         p.Message,
		Timestamp:       ts,
	}
	if alert.ContactPhone == "" {
		alert.ContactPhone = p.PatientPhone
	}

	r.gw.SendToGroup(gateway.GroupAdmin, gateway.EventAlertBroadcast, alert)
	if alert.OriginDoctorID != "" {
		r.gw.SendToGroup(gateway.DoctorGroup(alert.OriginDoctorID), gateway.EventAlertBroadcast, alert)
	}

	r.count(&r.alertsRouted)
	r.logger.Info("alert routed",
		"conn_id", ev.ConnID,
		"severity", alert.Severity,
		"origin_patient", alert.OriginPatientID,
		"origin_doctor", alert.OriginDoctorID,
	)
}

// handleDisconnect clears all routing state for a connection. Safe to
// process more than once; the gateway already tore down group
// memberships before emitting the event.
func (r *router) handleDisconnect(ev gateway.Event) {
	st, ok := r.states[ev.ConnID]
	if !ok {
		return
	}
	delete(r.states, ev.ConnID)

	if st.phase != phaseActive {
		r.logger.Debug("observer disconnected", "conn_id", ev.ConnID, "role", st.role)
		return
	}

	if _, removed := r.reg.Remove(ev.ConnID); removed {
		r.logger.Info("patient disconnected", "conn_id", ev.ConnID, "patient_id", st.patientID)
		r.broadcast()
	}
}

// broadcast fans the current registry state out to every observer class
// with its authorized view: admins unfiltered, each doctor filtered to
// its own assignments.
func (r *router) broadcast() {
	full := r.reg.Snapshot(nil)
	r.gw.SendToGroup(gateway.GroupAdmin, gateway.EventPatientUpdate, full)

	for _, group := range r.gw.Groups().WithPrefix(gateway.DoctorGroupPrefix) {
		doctorID := gateway.DoctorIDFromGroup(group)
		if doctorID == "" {
			continue
		}
		views := r.reg.Snapshot(registry.AssignedTo(doctorID))
		r.gw.SendToGroup(group, gateway.EventPatientUpdate, views)
	}

	r.count(&r.broadcasts)
}

// publishSample hands an accepted update to the history writer without
// ever blocking the route loop.
func (r *router) publishSample(s model.Session) {
	if s.Vitals == nil {
		return
	}
	sample := model.VitalSample{
		PatientID:  s.PatientID,
		Vitals:     *s.Vitals,
		RecordedAt: s.LastUpdate,
	}

	select {
	case r.history <- sample:
	default:
		r.count(&r.historyDropped)
	}
}

// sendTo delivers directly to one connection, logging but not
// propagating failures.
func (r *router) sendTo(connID uuid.UUID, event string, payload any) {
	if err := r.gw.SendTo(connID, event, payload); err != nil {
		r.logger.Debug("direct send failed", "conn_id", connID, "event", event, "error", err)
	}
}

// reject drops a join event, leaving the connection unidentified.
func (r *router) reject(ev gateway.Event, reason string) {
	r.count(&r.joinsRejected)
	r.logger.Warn("join rejected",
		"conn_id", ev.ConnID,
		"subject", ev.Identity.SubjectID,
		"reason", reason,
	)
}

func (r *router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}
