// Package entity models the individual values derived from a config
// entry's snapshot: a temperature reading, a relay state, a battery level.
//
// Entities are passive. They never poll; they subscribe to their entry's
// coordinator and re-derive their value whenever the snapshot changes.
// Availability is the conjunction of two signals: the coordinator's
// transport health and the payload's own liveness flag, so an entity goes
// unavailable both when the vendor API stops answering and when the API
// answers but reports the device offline.
//
// Changes fan out two ways: a StatePublisher (MQTT in production) pushes
// retained state and availability topics, and Observers (the history
// recorder) receive every transition for persistence.
package entity
