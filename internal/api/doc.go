// Package api implements the HTTP REST API and WebSocket server for Hearth Core.
//
// This package provides:
//   - REST endpoints for config entry management, entity state, and history
//   - WebSocket hub for real-time entity change and entry event broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits on top of the entry manager: entries are created and
// reloaded here, refreshes are requested here, and the entities the manager
// exposes are read here. Entity changes and entry lifecycle events reach
// WebSocket clients through the Hub, which implements entity.Observer and
// entry.EventSink. Inbound MQTT refresh commands on
// hearth/coordinator/{entryID}/refresh are forwarded to the matching
// coordinator.
//
// # Security
//
// Authentication uses JWT bearer tokens issued against the configured admin
// credentials. WebSocket connections use single-use tickets to prevent token
// leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT (external refresh commands are simply
// unavailable) and without the history store (the history endpoint reports
// not found).
package api
