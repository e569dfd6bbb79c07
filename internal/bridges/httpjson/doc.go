// Package httpjson implements the built-in adapter for devices that expose
// their state as a JSON document over HTTP.
//
// A surprising number of consumer devices (air quality monitors, inverters,
// IP relays) fit this shape: a single GET returns the full current state.
// The adapter polls that endpoint on the coordinator's cadence and maps
// HTTP failures onto the coordinator's classification so auth problems stop
// polling while flaky networks are ridden out.
package httpjson
