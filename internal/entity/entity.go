package entity

import (
	"reflect"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/coordinator"
)

// Logger defines the logging interface used by entities.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Derived is the result of applying a Deriver to a snapshot: the entity's
// value plus whether the payload itself says the device is alive. A cloud
// API can answer 200 OK while reporting the device offline; Live carries
// that second signal.
type Derived struct {
	Value interface{}
	Live  bool
}

// Deriver extracts one entity's value and payload-level liveness from a
// coordinator snapshot. It is called with whatever the entry's device
// client returned and must not mutate the snapshot.
type Deriver func(snapshot interface{}) Derived

// StatePublisher receives entity state and availability changes, typically
// backed by MQTT. Implementations must be safe for concurrent use.
type StatePublisher interface {
	PublishEntityState(entityID string, value interface{}) error
	PublishEntityAvailability(entityID string, available bool) error
}

// Change describes one observed entity transition.
type Change struct {
	EntityID  string
	EntryID   string
	Value     interface{}
	Available bool
	At        time.Time
}

// Observer is notified of entity changes, e.g. by the history recorder.
type Observer interface {
	EntityChanged(change Change)
}

// Options configures an Entity.
type Options struct {
	// ID uniquely identifies the entity, e.g. "sensor-living-temp".
	ID string

	// Name is the human-readable display name.
	Name string

	// EntryID is the config entry that owns this entity.
	EntryID string

	// Derive extracts this entity's value from the coordinator snapshot.
	Derive Deriver

	// Publisher receives state and availability changes. Optional.
	Publisher StatePublisher

	// Observers are notified of every change. Optional.
	Observers []Observer

	// Logger receives diagnostic output. Defaults to a no-op logger.
	Logger Logger

	// Now supplies timestamps for changes. Defaults to time.Now.
	Now func() time.Time
}

// Entity derives one value from a coordinator's snapshot and tracks its
// availability. It holds no upstream connection of its own: everything it
// knows arrives through coordinator notifications.
//
// An entity is available only when both layers agree: the coordinator's
// transport-level health (LastUpdateSuccess) and the payload-level
// liveness reported by the Deriver. Either going false makes the entity
// unavailable.
type Entity struct {
	id      string
	name    string
	entryID string
	coord   *coordinator.Coordinator
	derive  Deriver
	pub     StatePublisher
	obs     []Observer
	log     Logger
	now     func() time.Time

	mu        sync.Mutex
	value     interface{}
	available bool
	changedAt time.Time
	unsub     func()
}

// New builds an Entity bound to the given coordinator. Call Attach to
// start receiving updates.
func New(coord *coordinator.Coordinator, opts Options) *Entity {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Entity{
		id:      opts.ID,
		name:    opts.Name,
		entryID: opts.EntryID,
		coord:   coord,
		derive:  opts.Derive,
		pub:     opts.Publisher,
		obs:     opts.Observers,
		log:     opts.Logger,
		now:     opts.Now,
	}
}

// ID returns the entity's unique identifier.
func (e *Entity) ID() string { return e.id }

// Name returns the entity's display name.
func (e *Entity) Name() string { return e.name }

// EntryID returns the owning config entry's ID.
func (e *Entity) EntryID() string { return e.entryID }

// Value returns the most recently derived value. It is nil until the
// first coordinator notification after Attach.
func (e *Entity) Value() interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Available reports whether the entity's value is currently trustworthy.
func (e *Entity) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// ChangedAt returns when the entity last changed. Zero until the first
// change.
func (e *Entity) ChangedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changedAt
}

// Attach subscribes the entity to its coordinator and derives an initial
// state from whatever snapshot the coordinator already holds. Attach is
// not idempotent; call Detach before re-attaching.
func (e *Entity) Attach() {
	unsub := e.coord.AddListener(e.handleUpdate)
	e.mu.Lock()
	e.unsub = unsub
	e.mu.Unlock()
	e.handleUpdate()
}

// Detach unsubscribes the entity from its coordinator. The entity keeps
// its last state but receives no further updates. Safe to call twice and
// safe to call while a coordinator notification is in flight.
func (e *Entity) Detach() {
	e.mu.Lock()
	unsub := e.unsub
	e.unsub = nil
	e.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// RequestRefresh asks the owning coordinator for a fresh snapshot, e.g.
// after a command was sent to the device. The request is debounced.
func (e *Entity) RequestRefresh() {
	e.coord.RequestRefresh()
}

// handleUpdate recomputes the entity's state from the coordinator and
// pushes changes out. Runs on every coordinator notification.
func (e *Entity) handleUpdate() {
	snapshot := e.coord.Data()
	transportOK := e.coord.LastUpdateSuccess()

	var value interface{}
	live := false
	if snapshot != nil && e.derive != nil {
		d := e.derive(snapshot)
		value = d.Value
		live = d.Live
	}
	available := transportOK && live && snapshot != nil

	e.mu.Lock()
	valueChanged := !reflect.DeepEqual(e.value, value)
	availabilityChanged := e.available != available
	if !valueChanged && !availabilityChanged {
		e.mu.Unlock()
		return
	}
	e.value = value
	e.available = available
	at := e.now()
	e.changedAt = at
	e.mu.Unlock()

	if e.pub != nil {
		if availabilityChanged {
			if err := e.pub.PublishEntityAvailability(e.id, available); err != nil {
				e.log.Warn("availability publish failed", "entity", e.id, "error", err)
			}
		}
		if valueChanged && available {
			if err := e.pub.PublishEntityState(e.id, value); err != nil {
				e.log.Warn("state publish failed", "entity", e.id, "error", err)
			}
		}
	}

	change := Change{
		EntityID:  e.id,
		EntryID:   e.entryID,
		Value:     value,
		Available: available,
		At:        at,
	}
	for _, o := range e.obs {
		o.EntityChanged(change)
	}
}
