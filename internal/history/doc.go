// Package history persists accepted vital updates outside the routing
// core. The writer observes the router's sample stream, grades ungraded
// readings, and batch-inserts rows into Postgres. The core never depends
// on it: a stalled or disabled writer only drops samples, never routing.
package history
