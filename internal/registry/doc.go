// Package registry implements the Session Registry component.
//
// The registry is the single authoritative in-memory table of active
// patient sessions, keyed by connection handle. All operations are
// serialized behind one mutex so that register, update, remove, and
// snapshot are atomic with respect to each other; a snapshot can never
// observe a half-removed session.
package registry
