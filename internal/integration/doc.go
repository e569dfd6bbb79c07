// Package integration defines the adapter contract between config entries
// and vendor-specific device clients.
//
// Each supported vendor protocol ships an adapter that implements
// DeviceClient and registers a Factory with the Registry under a type name
// (e.g. "httpjson"). When an entry is set up, the entry manager looks up
// the factory for the entry's type, builds a client from the entry's
// stored options, and hands the client's Fetch method to a coordinator.
//
// Adapters own the vendor specifics: connection details, payload parsing,
// and most importantly failure classification. An adapter translates
// upstream failures into the coordinator's taxonomy so that a 401 stops
// polling and triggers re-authentication while a 503 is absorbed by the
// failure threshold.
package integration
