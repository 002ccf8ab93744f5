package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rsethi/vitalrelay/internal/identity"
)

// Manager owns all live connections and their group memberships.
type Manager struct {
	cfg      Config
	verifier identity.Verifier
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// Output to the Event Router.
	events chan Event

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	groups  *Groups

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	statsMu        sync.Mutex
	totalAccepted  int64
	totalClosed    int64
	eventsReceived int64
	graceClosed    int64
}

// NewManager creates a Connection Gateway.
func NewManager(cfg Config, verifier identity.Verifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:      cfg,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		events:  make(chan Event, cfg.EventBufferSize),
		clients: make(map[uuid.UUID]*client),
		groups:  NewGroups(),
	}
}

// Start makes the gateway ready to accept connections.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("gateway started",
		"outbox_size", m.cfg.OutboxSize,
		"join_grace", m.cfg.JoinGrace,
	)
	return nil
}

// Stop closes every connection and shuts the gateway down.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping gateway")

	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	clients := make([]*client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		m.drop(c, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("gateway stopped")
	case <-ctx.Done():
		m.logger.Warn("gateway stop timed out")
	}

	close(m.events)
	return nil
}

// Events returns the inbound event channel consumed by the Event Router.
// The channel also carries the synthetic disconnect event, exactly once
// per connection.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Groups returns the broadcast group table.
func (m *Manager) Groups() *Groups {
	return m.groups
}

// ServeWS upgrades an HTTP request to a WebSocket connection. The token
// query parameter must resolve to a verified identity; connections with
// no resolvable identity are refused before the upgrade.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	if m.ctx == nil || m.ctx.Err() != nil {
		http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
		return
	}

	ident, err := m.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		m.logger.Warn("handshake rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.New()
	c := newClient(id, ident, conn, m.cfg.OutboxSize, m.logger.With("conn_id", id, "subject", ident.SubjectID))

	m.mu.Lock()
	m.clients[id] = c
	m.mu.Unlock()

	m.statsMu.Lock()
	m.totalAccepted++
	m.statsMu.Unlock()

	c.logger.Debug("connection accepted", "role", ident.Role)

	m.wg.Add(3)
	go m.readPump(c)
	go m.writePump(c)
	go m.graceWatch(c)
}

// MarkIdentified records that the router accepted a join for connID,
// disarming the join grace watcher.
func (m *Manager) MarkIdentified(connID uuid.UUID) {
	m.mu.RLock()
	c, ok := m.clients[connID]
	m.mu.RUnlock()

	if ok {
		c.identified.Store(true)
	}
}

// SendTo delivers one event to a single connection, best effort.
func (m *Manager) SendTo(connID uuid.UUID, event string, payload any) error {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		return err
	}

	m.mu.RLock()
	c, ok := m.clients[connID]
	m.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}

	if c.outbox.Push(frame) {
		c.logger.Debug("outbox full, dropped oldest frame", "event", event)
	}
	return nil
}

// SendToGroup delivers one event to every member of a group. Delivery is
// best effort per member; a slow or vanished observer never affects the
// others.
func (m *Manager) SendToGroup(group string, event string, payload any) error {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		return err
	}

	for _, id := range m.groups.Members(group) {
		m.mu.RLock()
		c, ok := m.clients[id]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if c.outbox.Push(frame) {
			c.logger.Debug("outbox full, dropped oldest frame", "event", event, "group", group)
		}
	}
	return nil
}

// Stats returns current gateway statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	connected := len(m.clients)
	var framesDropped int64
	for _, c := range m.clients {
		framesDropped += c.outbox.Dropped()
	}
	m.mu.RUnlock()

	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return Stats{
		Connected:      connected,
		TotalAccepted:  m.totalAccepted,
		TotalClosed:    m.totalClosed,
		FramesDropped:  framesDropped,
		EventsReceived: m.eventsReceived,
		GraceClosed:    m.graceClosed,
	}
}

// readPump reads frames from one connection and forwards decoded events
// to the router. It owns the disconnect signal for the connection.
func (m *Manager) readPump(c *client) {
	defer m.wg.Done()
	defer m.drop(c, "read loop exit")

	c.conn.SetReadLimit(m.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.logger.Debug("malformed frame dropped")
			continue
		}

		m.statsMu.Lock()
		m.eventsReceived++
		m.statsMu.Unlock()

		ev := Event{
			ConnID:     c.id,
			Name:       env.Event,
			Data:       env.Data,
			Identity:   c.identity,
			ReceivedAt: receivedAt,
		}

		select {
		case m.events <- ev:
		case <-m.ctx.Done():
			return
		}
	}
}

// writePump drains the outbox to the connection and keeps it alive with
// periodic pings.
func (m *Manager) writePump(c *client) {
	defer m.wg.Done()

	pingDone := make(chan struct{})
	go m.pingLoop(c, pingDone)
	defer close(pingDone)

	for {
		frame, ok := c.outbox.Pop()
		if !ok {
			return
		}
		if err := c.write(frame, m.cfg.WriteTimeout); err != nil {
			c.logger.Debug("write failed", "error", err)
			m.drop(c, "write failed")
			return
		}
	}
}

// pingLoop sends keepalive pings until the connection goes away.
func (m *Manager) pingLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ping(m.cfg.WriteTimeout); err != nil {
				c.logger.Debug("ping failed", "error", err)
				m.drop(c, "ping failed")
				return
			}
		}
	}
}

// graceWatch closes connections that never identify within the grace
// period. Tolerating silent unidentified connections indefinitely was a
// gap in the previous system.
func (m *Manager) graceWatch(c *client) {
	defer m.wg.Done()

	timer := time.NewTimer(m.cfg.JoinGrace)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		if !c.identified.Load() {
			c.logger.Info("closing unidentified connection after grace period")
			m.statsMu.Lock()
			m.graceClosed++
			m.statsMu.Unlock()
			m.drop(c, "join grace expired")
		}
	}
}

// drop tears down a connection: clears its registration and group
// memberships, closes the transport, and emits the synthetic disconnect
// event exactly once. Idempotent under racing callers.
func (m *Manager) drop(c *client, reason string) {
	m.mu.Lock()
	_, present := m.clients[c.id]
	delete(m.clients, c.id)
	m.mu.Unlock()

	c.shutdown()

	if !present {
		return
	}

	m.groups.LeaveAll(c.id)

	m.statsMu.Lock()
	m.totalClosed++
	m.statsMu.Unlock()

	c.logger.Debug("connection closed", "reason", reason)

	ev := Event{
		ConnID:     c.id,
		Name:       EventDisconnect,
		Identity:   c.identity,
		ReceivedAt: time.Now(),
	}

	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		data = b
	}
	return json.Marshal(envelope{Event: event, Data: data})
}
