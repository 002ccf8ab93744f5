// Package model defines shared data types used across the relay.
//
// Conventions:
//   - Connection handles: uuid.UUID, unique for the lifetime of one
//     connection and never reused
//   - Timestamps: time.Time in UTC; wire forms use RFC 3339
//   - Identifiers: stable account-derived strings (patient and doctor IDs),
//     never connection-scoped values
package model
