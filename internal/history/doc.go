// Package history persists entity state transitions.
//
// Every change an entity observes flows through the Recorder to two sinks:
// the local SQLite state_history table, which works even with no external
// services, and optionally InfluxDB for long-term time-series analysis.
// The SQLite copy powers the /api/entities/{id}/history endpoint.
package history
