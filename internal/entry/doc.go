// Package entry manages config entries: the persisted records describing
// which devices and accounts the hub polls, and the live machinery each
// one owns while loaded.
//
// The lifecycle runs: not_loaded → (setup) → loaded, with two detours.
// A transient first-refresh failure parks the entry in setup_retry and
// retries with exponential backoff; a credential rejection or permanent
// configuration error lands in auth_required or failed and waits for the
// user. Loading an entry builds its device client through the integration
// registry, stands up a coordinator, runs the first refresh and attaches
// the entry's entities. Unloading reverses all of it.
//
// Entries are persisted in SQLite through Repository; the Manager holds
// the in-memory runtime (coordinator, client, entities) per loaded entry.
package entry
