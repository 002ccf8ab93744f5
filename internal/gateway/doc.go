// Package gateway implements the Connection Gateway component.
//
// The gateway owns the set of live WebSocket connections. It verifies a
// token at handshake time, assigns each connection a never-reused handle,
// forwards inbound named events to the Event Router without interpreting
// them, and exposes best-effort SendTo / SendToGroup delivery primitives.
// Each connection carries a bounded outgoing queue that drops the oldest
// pending frame on overflow, so one slow observer can never exhaust
// memory or stall delivery to others.
package gateway
