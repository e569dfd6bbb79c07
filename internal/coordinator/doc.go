// Package coordinator implements the polling data-update coordinator at
// the heart of Hearth Core.
//
// One coordinator exists per config entry. It owns the polling cadence for
// that entry's upstream device or cloud service, holds the most recent
// snapshot, and fans change notifications out to the entities derived from
// the snapshot. Entities never talk to the upstream themselves.
//
//	            ┌────────────┐   fetch    ┌──────────────┐
//	 tick ────▶ │ Coordinator │ ─────────▶ │ DeviceClient │ ─▶ vendor API
//	            │  snapshot   │ ◀───────── │              │
//	            └─────┬──────┘   result   └──────────────┘
//	                  │ notify
//	        ┌─────────┼─────────┐
//	        ▼         ▼         ▼
//	    entity A  entity B  entity C
//
// # Fetch discipline
//
// At most one fetch is in flight at any time. Scheduled ticks, manual
// Refresh calls and debounced RequestRefresh requests all serialise
// through the same slot; concurrent callers join the in-flight fetch and
// share its result. Each tick is armed relative to the completion of the
// previous fetch, so a slow upstream stretches the cadence rather than
// stacking requests. Every attempt is bounded by a per-fetch timeout.
//
// # Failure escalation
//
// Fetch errors are classified (see FetchError). Recoverable failures are
// absorbed: the last snapshot keeps being served and listeners hear
// nothing until the consecutive-failure threshold is reached, at which
// point the coordinator goes unavailable and notifies. A single success
// resets the streak and recovers. Auth and config failures skip the
// threshold entirely: polling stops and the owning entry is signalled.
//
// # Snapshots
//
// The snapshot is opaque to the coordinator and replaced wholesale on each
// successful fetch. Fetch functions must return a fresh value every time;
// readers may hold a snapshot across fetches without locking.
package coordinator
