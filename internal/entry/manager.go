package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/coordinator"
	"github.com/hearth-home/hearth-core/internal/entity"
	"github.com/hearth-home/hearth-core/internal/integration"
)

// Logger defines the logging interface used by the Manager.
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

// Event is a lifecycle notification emitted when an entry changes state.
type Event struct {
	EntryID string    `json:"entry_id"`
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Event types emitted by the Manager.
const (
	EventLoaded       = "loaded"
	EventSetupRetry   = "setup_retry"
	EventAuthRequired = "auth_required"
	EventFailed       = "failed"
	EventUnloaded     = "unloaded"
)

// EventSink receives entry lifecycle events, e.g. the websocket hub and
// the MQTT entry topics. Implementations must not block.
type EventSink interface {
	EntryEvent(ev Event)
}

// EntityFactory builds the entities an entry exposes once its coordinator
// is running. Implementations typically read an entity list from the
// entry's options.
type EntityFactory func(e *Entry, coord *coordinator.Coordinator) []*entity.Entity

// PollDefaults carries the hub-wide polling configuration applied to every
// coordinator the manager builds.
type PollDefaults struct {
	Interval         time.Duration
	FetchTimeout     time.Duration
	FailureThreshold int
	DebounceDelay    time.Duration
}

// RetryPolicy controls setup retry backoff after a transient first-refresh
// failure.
type RetryPolicy struct {
	// InitialDelay is the wait before the first retry. Doubles on each
	// subsequent attempt.
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// MaxAttempts limits retries. 0 means retry forever.
	MaxAttempts int
}

// Options configures a Manager.
type Options struct {
	Repository Repository
	Registry   *integration.Registry

	// Entities builds an entry's entities after a successful setup.
	// Optional; entries without entities still poll.
	Entities EntityFactory

	// Events receives lifecycle events. Optional.
	Events EventSink

	// OnPoll is forwarded to every coordinator for telemetry. The entry
	// ID is prepended so one sink can serve all coordinators. Optional.
	OnPoll func(entryID string, result coordinator.PollResult)

	Poll  PollDefaults
	Retry RetryPolicy

	// Clock supplies timers for retry scheduling and is forwarded to
	// coordinators. Defaults to the system clock.
	Clock coordinator.Clock

	// Logger receives diagnostic output. Defaults to a no-op logger.
	Logger Logger
}

// runtime is the live state of one loaded entry.
type runtime struct {
	entry    *Entry
	client   integration.DeviceClient
	coord    *coordinator.Coordinator
	entities []*entity.Entity
}

// retryState tracks a pending setup retry.
type retryState struct {
	timer   coordinator.Timer
	attempt int
}

// Manager owns the setup lifecycle of config entries: building device
// clients, running first refreshes, retrying transient failures with
// exponential backoff, and tearing everything down on unload.
//
// All public methods are thread-safe.
type Manager struct {
	repo     Repository
	registry *integration.Registry
	entities EntityFactory
	events   EventSink
	onPoll   func(string, coordinator.PollResult)
	poll     PollDefaults
	retry    RetryPolicy
	clock    coordinator.Clock
	logger   Logger

	mu      sync.Mutex
	loaded  map[string]*runtime
	pending map[string]*retryState
	closed  bool
}

// NewManager creates an entry manager. Repository and Registry are
// required; everything else has defaults.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Retry.InitialDelay <= 0 {
		opts.Retry.InitialDelay = 5 * time.Second
	}
	if opts.Retry.MaxDelay <= 0 {
		opts.Retry.MaxDelay = 5 * time.Minute
	}
	return &Manager{
		repo:     opts.Repository,
		registry: opts.Registry,
		entities: opts.Entities,
		events:   opts.Events,
		onPoll:   opts.OnPoll,
		poll:     opts.Poll,
		retry:    opts.Retry,
		clock:    opts.Clock,
		logger:   opts.Logger,
		loaded:   make(map[string]*runtime),
		pending:  make(map[string]*retryState),
	}
}

// realClock mirrors the coordinator's default clock for retry timers.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) coordinator.Timer {
	return timeTimer{t: time.AfterFunc(d, fn)}
}

type timeTimer struct{ t *time.Timer }

func (tt timeTimer) Stop() bool { return tt.t.Stop() }

// noopTimer is the placeholder timer carried by a setup reservation; it
// never fires and Stop is a no-op, so Unload can treat reservations and
// scheduled retries uniformly.
type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

// Setup loads an entry: it builds the device client, runs the first
// refresh, and on success attaches the entry's entities. A transient
// failure schedules background retries and returns nil; a permanent
// failure marks the entry failed or auth_required and returns the error.
func (m *Manager) Setup(ctx context.Context, id string) error {
	if err := m.reserve(id); err != nil {
		return err
	}

	e, err := m.repo.GetByID(ctx, id)
	if err != nil {
		m.release(id)
		return err
	}
	return m.setupAttempt(ctx, e, 0)
}

// reserve claims id for an in-flight setup so a concurrent Setup or Reload
// cannot build a second runtime for the same entry. The reservation lives
// in pending under a timer that never fires; every setupAttempt exit path
// either releases it, replaces it with a scheduled retry, or consumes it
// in finishSetup.
func (m *Manager) reserve(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.loaded[id]; ok {
		return ErrAlreadyLoaded
	}
	if _, ok := m.pending[id]; ok {
		return ErrAlreadyLoaded
	}
	m.pending[id] = &retryState{timer: noopTimer{}}
	return nil
}

// release drops id's setup reservation. It reports whether the reservation
// was still held; false means Unload or Shutdown cancelled the setup while
// the attempt was running, so callers must not touch the entry's state.
func (m *Manager) release(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; !ok {
		return false
	}
	delete(m.pending, id)
	return true
}

// SetupAll loads every entry that is not in a terminal failure state.
// Errors are logged per entry; SetupAll itself only fails if the entry
// list cannot be read.
func (m *Manager) SetupAll(ctx context.Context) error {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}
	for i := range entries {
		e := entries[i]
		if e.State == StateAuthRequired || e.State == StateFailed {
			m.logger.Info("skipping entry in terminal state",
				"entry", e.ID, "state", e.State)
			continue
		}
		if err := m.Setup(ctx, e.ID); err != nil {
			m.logger.Error("entry setup failed", "entry", e.ID, "error", err)
		}
	}
	return nil
}

// setupAttempt runs one setup attempt for e. attempt counts prior retries.
// The caller must hold e.ID's setup reservation.
func (m *Manager) setupAttempt(ctx context.Context, e *Entry, attempt int) error {
	client, err := m.registry.Create(e.Type, e.Options)
	if err != nil {
		if m.release(e.ID) {
			m.markEntry(e.ID, StateFailed, EventFailed, err)
		}
		return err
	}

	coord := coordinator.New(client.Fetch, coordinator.Options{
		Name:             e.Title,
		Interval:         m.poll.Interval,
		FetchTimeout:     m.poll.FetchTimeout,
		FailureThreshold: m.poll.FailureThreshold,
		DebounceDelay:    m.poll.DebounceDelay,
		Clock:            m.clock,
		Logger:           m.logger,
		OnFatal:          m.fatalHandler(e.ID),
		OnPoll:           m.pollHandler(e.ID),
	})

	err = coord.FirstRefresh(ctx)
	switch {
	case err == nil:
		return m.finishSetup(e, client, coord)

	case errors.Is(err, coordinator.ErrSetupFailed):
		coord.Shutdown()
		client.Close()
		if m.release(e.ID) {
			state, event := StateFailed, EventFailed
			if coordinator.Classify(err) == coordinator.KindAuth {
				state, event = StateAuthRequired, EventAuthRequired
			}
			m.markEntry(e.ID, state, event, err)
		}
		return err

	default:
		// ErrSetupRetry and anything unexpected: back off and retry.
		coord.Shutdown()
		client.Close()
		if m.scheduleRetry(e.ID, attempt) {
			m.markEntry(e.ID, StateSetupRetry, EventSetupRetry, err)
		}
		return nil
	}
}

// finishSetup registers the runtime for a successfully set up entry. It
// never overwrites an existing runtime, and it tears the new runtime down
// if the manager closed or the entry was unloaded mid-setup.
func (m *Manager) finishSetup(e *Entry, client integration.DeviceClient, coord *coordinator.Coordinator) error {
	rt := &runtime{entry: e, client: client, coord: coord}
	if m.entities != nil {
		rt.entities = m.entities(e, coord)
		for _, ent := range rt.entities {
			ent.Attach()
		}
	}

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		m.discardRuntime(rt)
		return ErrManagerClosed

	case m.pending[e.ID] == nil:
		// Unload cancelled our reservation while the first refresh ran.
		m.mu.Unlock()
		m.discardRuntime(rt)
		return ErrNotLoaded

	case m.loaded[e.ID] != nil:
		m.mu.Unlock()
		m.discardRuntime(rt)
		return ErrAlreadyLoaded
	}
	delete(m.pending, e.ID)
	m.loaded[e.ID] = rt
	m.mu.Unlock()

	m.markEntry(e.ID, StateLoaded, EventLoaded, nil)
	m.logger.Info("entry loaded",
		"entry", e.ID, "type", e.Type, "entities", len(rt.entities))
	return nil
}

// discardRuntime tears down a runtime that lost the registration race.
func (m *Manager) discardRuntime(rt *runtime) {
	for _, ent := range rt.entities {
		ent.Detach()
	}
	rt.coord.Shutdown()
	if err := rt.client.Close(); err != nil {
		m.logger.Warn("device client close failed",
			"entry", rt.entry.ID, "error", err)
	}
}

// scheduleRetry arms a backoff timer for another setup attempt, replacing
// the caller's reservation. It reports whether a retry was scheduled;
// false means the retries are exhausted or the setup was cancelled.
func (m *Manager) scheduleRetry(id string, attempt int) bool {
	next := attempt + 1
	if m.retry.MaxAttempts > 0 && next > m.retry.MaxAttempts {
		m.logger.Error("entry setup retries exhausted",
			"entry", id, "attempts", attempt)
		if m.release(id) {
			m.markEntry(id, StateFailed, EventFailed,
				fmt.Errorf("setup retries exhausted after %d attempts", attempt))
		}
		return false
	}

	delay := m.retry.InitialDelay
	for i := 0; i < attempt && delay < m.retry.MaxDelay; i++ {
		delay *= 2
	}
	if delay > m.retry.MaxDelay {
		delay = m.retry.MaxDelay
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.pending[id]; !ok {
		// Unload cancelled the reservation mid-attempt.
		m.mu.Unlock()
		return false
	}
	st := &retryState{attempt: next}
	st.timer = m.clock.AfterFunc(delay, func() {
		m.runRetry(id, next)
	})
	m.pending[id] = st
	m.mu.Unlock()

	m.logger.Info("entry setup retry scheduled",
		"entry", id, "attempt", next, "delay", delay)
	return true
}

// runRetry executes a scheduled retry attempt.
func (m *Manager) runRetry(id string, attempt int) {
	m.mu.Lock()
	st, ok := m.pending[id]
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}
	if st.attempt != attempt {
		// A newer schedule superseded this one.
		m.mu.Unlock()
		return
	}
	// Swap the fired timer for a reservation so a concurrent Setup
	// cannot start a second attempt while this one runs.
	m.pending[id] = &retryState{timer: noopTimer{}, attempt: attempt}
	m.mu.Unlock()

	e, err := m.repo.GetByID(context.Background(), id)
	if err != nil {
		m.release(id)
		m.logger.Error("entry vanished before retry", "entry", id, "error", err)
		return
	}
	if err := m.setupAttempt(context.Background(), e, attempt); err != nil {
		m.logger.Error("entry setup retry failed", "entry", id, "error", err)
	}
}

// Unload tears an entry down: entities detach, the coordinator shuts down
// and the device client is closed. Pending setup retries are cancelled,
// and an in-flight setup is cancelled too: its runtime is discarded when
// the first refresh completes. Returns ErrNotLoaded if the entry has no
// runtime, no pending retry, and no setup in flight.
func (m *Manager) Unload(id string) error {
	m.mu.Lock()
	rt, wasLoaded := m.loaded[id]
	delete(m.loaded, id)
	st, wasPending := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()

	if !wasLoaded && !wasPending {
		return ErrNotLoaded
	}
	if wasPending {
		st.timer.Stop()
	}
	if wasLoaded {
		for _, ent := range rt.entities {
			ent.Detach()
		}
		rt.coord.Shutdown()
		if err := rt.client.Close(); err != nil {
			m.logger.Warn("device client close failed", "entry", id, "error", err)
		}
	}

	m.markEntry(id, StateNotLoaded, EventUnloaded, nil)
	m.logger.Info("entry unloaded", "entry", id)
	return nil
}

// Reload unloads and sets up an entry again, picking up changed options.
// Entries that were not loaded are simply set up.
func (m *Manager) Reload(ctx context.Context, id string) error {
	if err := m.Unload(id); err != nil && !errors.Is(err, ErrNotLoaded) {
		return err
	}
	return m.Setup(ctx, id)
}

// Shutdown unloads every entry and stops accepting work.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	loaded := m.loaded
	pending := m.pending
	m.loaded = make(map[string]*runtime)
	m.pending = make(map[string]*retryState)
	m.mu.Unlock()

	for _, st := range pending {
		st.timer.Stop()
	}
	for id, rt := range loaded {
		for _, ent := range rt.entities {
			ent.Detach()
		}
		rt.coord.Shutdown()
		if err := rt.client.Close(); err != nil {
			m.logger.Warn("device client close failed", "entry", id, "error", err)
		}
	}
	m.logger.Info("entry manager shut down", "entries", len(loaded))
}

// Coordinator returns the running coordinator for a loaded entry.
func (m *Manager) Coordinator(id string) (*coordinator.Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.loaded[id]
	if !ok {
		return nil, ErrNotLoaded
	}
	return rt.coord, nil
}

// IsLoaded reports whether an entry has a running coordinator.
func (m *Manager) IsLoaded(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[id]
	return ok
}

// LoadedCount returns the number of loaded entries.
func (m *Manager) LoadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

// Entities returns all entities across loaded entries, sorted by ID.
func (m *Manager) Entities() []*entity.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*entity.Entity
	for _, rt := range m.loaded {
		all = append(all, rt.entities...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })
	return all
}

// Entity returns a single entity by ID across all loaded entries.
func (m *Manager) Entity(id string) (*entity.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.loaded {
		for _, ent := range rt.entities {
			if ent.ID() == id {
				return ent, true
			}
		}
	}
	return nil, false
}

// fatalHandler returns the coordinator OnFatal hook for an entry. Runtime
// auth and config failures flip the persisted entry state and emit events,
// mirroring what a failed first refresh does.
func (m *Manager) fatalHandler(id string) func(coordinator.FailureKind, error) {
	return func(kind coordinator.FailureKind, err error) {
		state, event := StateFailed, EventFailed
		if kind == coordinator.KindAuth {
			state, event = StateAuthRequired, EventAuthRequired
		}
		m.markEntry(id, state, event, err)
	}
}

// pollHandler returns the coordinator OnPoll hook for an entry.
func (m *Manager) pollHandler(id string) func(coordinator.PollResult) {
	if m.onPoll == nil {
		return nil
	}
	return func(result coordinator.PollResult) {
		m.onPoll(id, result)
	}
}

// markEntry persists a state change and emits the matching event.
func (m *Manager) markEntry(id string, state State, event string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := m.repo.UpdateState(context.Background(), id, state, msg); err != nil {
		m.logger.Error("persisting entry state failed",
			"entry", id, "state", state, "error", err)
	}
	if m.events != nil {
		m.events.EntryEvent(Event{
			EntryID: id,
			Type:    event,
			Message: msg,
			At:      m.clock.Now(),
		})
	}
}
