package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rsethi/vitalrelay/internal/identity"
)

// client is the gateway's view of one live connection.
type client struct {
	id       uuid.UUID
	identity identity.Identity
	conn     *websocket.Conn
	outbox   *Outbox
	logger   *slog.Logger

	// identified flips once the router accepts a join_session; the
	// grace watcher closes connections that never identify.
	identified atomic.Bool

	// writeMu serializes frame and control writes.
	writeMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once
}

func newClient(id uuid.UUID, ident identity.Identity, conn *websocket.Conn, outboxSize int, logger *slog.Logger) *client {
	return &client{
		id:       id,
		identity: ident,
		conn:     conn,
		outbox:   NewOutbox(outboxSize),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// write sends one data frame under the write deadline.
func (c *client) write(frame []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// ping sends a keepalive control frame.
func (c *client) ping(timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// shutdown closes the transport and wakes the write pump. Safe to call
// more than once.
func (c *client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.outbox.Close()

		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		c.conn.Close()
	})
}
