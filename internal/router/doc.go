// Package router implements the Event Router component.
//
// The router consumes inbound events from the Connection Gateway on a
// single goroutine, drives each connection through its lifecycle
// (unidentified, identified, active, closed), mutates the Session
// Registry, and fans scoped snapshots out to observers.
//
// The core routing rule: an unfiltered registry snapshot is only ever
// sent to admin observers. A doctor observer receives exactly the
// sessions whose assigned doctor matches its own verified identity, and
// the filtering happens here, server side, never on the receiving
// client. Routing decisions depend only on role and assignment; alert
// severity is carried through but never consulted.
package router
