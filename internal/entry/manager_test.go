package entry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/coordinator"
	"github.com/hearth-home/hearth-core/internal/entity"
	"github.com/hearth-home/hearth-core/internal/integration"
)

// fakeClock is a manual clock so retry and polling schedules can be driven
// without sleeping.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clk     *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) coordinator.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.when.After(c.now) {
			c.now = next.when
		}
		next.fired = true
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
		if target.Before(c.now) {
			target = c.now
		}
	}
	c.now = target
	c.mu.Unlock()
}

// memRepo is an in-memory Repository for manager tests.
type memRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func newMemRepo(entries ...*Entry) *memRepo {
	r := &memRepo{entries: make(map[string]*Entry)}
	for _, e := range entries {
		copied := *e
		r.entries[e.ID] = &copied
	}
	return r
}

func (r *memRepo) GetByID(_ context.Context, id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *memRepo) List(_ context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (r *memRepo) ListByState(_ context.Context, state State) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.State == state {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; ok {
		return ErrEntryExists
	}
	copied := *e
	r.entries[e.ID] = &copied
	return nil
}

func (r *memRepo) Update(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[e.ID]
	if !ok {
		return ErrEntryNotFound
	}
	stored.Title = e.Title
	stored.Options = e.Options
	return nil
}

func (r *memRepo) UpdateState(_ context.Context, id string, state State, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.State = state
	e.Error = errMsg
	return nil
}

func (r *memRepo) stateOf(t *testing.T, id string) State {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		t.Fatalf("entry %s not in repo", id)
	}
	return e.State
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

// scriptedClient returns queued fetch results in order, repeating the last.
type scriptedClient struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	closed  bool
}

type fetchResult struct {
	data interface{}
	err  error
}

func (c *scriptedClient) Fetch(ctx context.Context) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	c.calls++
	r := c.results[i]
	return r.data, r.err
}

func (c *scriptedClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// gatedClient parks every Fetch until the gate closes, so tests can hold
// a first refresh in flight. fetching is closed when the first Fetch
// starts.
type gatedClient struct {
	scriptedClient
	gate     chan struct{}
	fetching chan struct{}
	once     sync.Once
}

func (c *gatedClient) Fetch(ctx context.Context) (interface{}, error) {
	c.once.Do(func() { close(c.fetching) })
	<-c.gate
	return c.scriptedClient.Fetch(ctx)
}

// recordingSink captures entry lifecycle events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) EntryEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// testHarness bundles the manager wiring most tests need.
type testHarness struct {
	clock  *fakeClock
	repo   *memRepo
	sink   *recordingSink
	client *scriptedClient
	mgr    *Manager
	entry  *Entry
}

func newHarness(t *testing.T, results []fetchResult, opts func(*Options)) *testHarness {
	t.Helper()

	h := &testHarness{
		clock:  newFakeClock(),
		sink:   &recordingSink{},
		client: &scriptedClient{results: results},
	}
	h.entry = New("testint", "Test Device", map[string]interface{}{"url": "http://x"})
	h.repo = newMemRepo(h.entry)

	registry := integration.NewRegistry()
	if err := registry.Register("testint", func(map[string]interface{}) (integration.DeviceClient, error) {
		return h.client, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	o := Options{
		Repository: h.repo,
		Registry:   registry,
		Events:     h.sink,
		Clock:      h.clock,
		Poll:       PollDefaults{FailureThreshold: 3},
		Retry:      RetryPolicy{InitialDelay: 5 * time.Second, MaxDelay: 40 * time.Second},
		Entities: func(e *Entry, coord *coordinator.Coordinator) []*entity.Entity {
			ent := entity.New(coord, entity.Options{
				ID:      e.ID + "-temp",
				EntryID: e.ID,
				Derive: func(snapshot interface{}) entity.Derived {
					m, _ := snapshot.(map[string]interface{})
					return entity.Derived{Value: m["temp"], Live: true}
				},
			})
			return []*entity.Entity{ent}
		},
	}
	if opts != nil {
		opts(&o)
	}
	h.mgr = NewManager(o)
	t.Cleanup(h.mgr.Shutdown)
	return h
}

func goodSnapshot(temp float64) fetchResult {
	return fetchResult{data: map[string]interface{}{"temp": temp}}
}

func TestManager_SetupSuccess(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(21.5)}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !h.mgr.IsLoaded(h.entry.ID) {
		t.Error("IsLoaded() = false after setup")
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateLoaded {
		t.Errorf("persisted state = %q, want %q", got, StateLoaded)
	}

	entities := h.mgr.Entities()
	if len(entities) != 1 {
		t.Fatalf("Entities() returned %d, want 1", len(entities))
	}
	if got := entities[0].Value(); got != 21.5 {
		t.Errorf("entity value = %v, want 21.5 from first refresh", got)
	}
	if got := h.sink.types(); len(got) != 1 || got[0] != EventLoaded {
		t.Errorf("events = %v, want [loaded]", got)
	}

	if _, err := h.mgr.Coordinator(h.entry.ID); err != nil {
		t.Errorf("Coordinator() error = %v", err)
	}
}

func TestManager_SetupAlreadyLoaded(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1)}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := h.mgr.Setup(context.Background(), h.entry.ID); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Setup() error = %v, want ErrAlreadyLoaded", err)
	}
}

func TestManager_ConcurrentSetupBuildsOneRuntime(t *testing.T) {
	gate := make(chan struct{})
	var mu sync.Mutex
	var clients []*gatedClient

	e := New("testint", "Test Device", map[string]interface{}{"url": "http://x"})
	repo := newMemRepo(e)
	registry := integration.NewRegistry()
	if err := registry.Register("testint", func(map[string]interface{}) (integration.DeviceClient, error) {
		c := &gatedClient{
			scriptedClient: scriptedClient{results: []fetchResult{goodSnapshot(1)}},
			gate:           gate,
			fetching:       make(chan struct{}),
		}
		mu.Lock()
		clients = append(clients, c)
		mu.Unlock()
		return c, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	mgr := NewManager(Options{
		Repository: repo,
		Registry:   registry,
		Clock:      newFakeClock(),
		Poll:       PollDefaults{FailureThreshold: 3},
	})
	t.Cleanup(mgr.Shutdown)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- mgr.Setup(context.Background(), e.ID)
		}()
	}

	// One Setup wins the reservation and parks in its first refresh; the
	// other must be turned away before it builds a second device client.
	if err := <-errs; !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("concurrent Setup() error = %v, want ErrAlreadyLoaded", err)
	}
	close(gate)
	if err := <-errs; err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !mgr.IsLoaded(e.ID) {
		t.Fatal("IsLoaded() = false after setup")
	}
	mu.Lock()
	built := len(clients)
	mu.Unlock()
	if built != 1 {
		t.Errorf("device clients built = %d, want 1", built)
	}

	mgr.Shutdown()
	mu.Lock()
	defer mu.Unlock()
	for i, c := range clients {
		if !c.closed {
			t.Errorf("client %d not closed after shutdown", i)
		}
	}
}

func TestManager_UnloadDuringSetupDiscardsRuntime(t *testing.T) {
	gate := make(chan struct{})
	client := &gatedClient{
		scriptedClient: scriptedClient{results: []fetchResult{goodSnapshot(1)}},
		gate:           gate,
		fetching:       make(chan struct{}),
	}

	e := New("testint", "Test Device", map[string]interface{}{"url": "http://x"})
	repo := newMemRepo(e)
	registry := integration.NewRegistry()
	if err := registry.Register("testint", func(map[string]interface{}) (integration.DeviceClient, error) {
		return client, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	mgr := NewManager(Options{
		Repository: repo,
		Registry:   registry,
		Clock:      newFakeClock(),
		Poll:       PollDefaults{FailureThreshold: 3},
	})
	t.Cleanup(mgr.Shutdown)

	errs := make(chan error, 1)
	go func() {
		errs <- mgr.Setup(context.Background(), e.ID)
	}()

	<-client.fetching
	if err := mgr.Unload(e.ID); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	close(gate)

	if err := <-errs; !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Setup() error = %v, want ErrNotLoaded after mid-setup unload", err)
	}
	if mgr.IsLoaded(e.ID) {
		t.Error("IsLoaded() = true after cancelled setup")
	}
	if !client.closed {
		t.Error("device client not closed after cancelled setup")
	}
	if got := repo.stateOf(t, e.ID); got != StateNotLoaded {
		t.Errorf("persisted state = %q, want %q", got, StateNotLoaded)
	}
}

func TestManager_SetupAuthFailureIsTerminal(t *testing.T) {
	h := newHarness(t, []fetchResult{
		{err: coordinator.AuthFailedf("401 unauthorised")},
	}, nil)

	err := h.mgr.Setup(context.Background(), h.entry.ID)
	if !errors.Is(err, coordinator.ErrSetupFailed) {
		t.Fatalf("Setup() error = %v, want ErrSetupFailed", err)
	}
	if h.mgr.IsLoaded(h.entry.ID) {
		t.Error("IsLoaded() = true after auth failure")
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateAuthRequired {
		t.Errorf("persisted state = %q, want %q", got, StateAuthRequired)
	}
	if got := h.sink.types(); len(got) != 1 || got[0] != EventAuthRequired {
		t.Errorf("events = %v, want [auth_required]", got)
	}
	if !h.client.closed {
		t.Error("device client not closed after failed setup")
	}

	// No retry may be scheduled for terminal failures.
	h.clock.Advance(time.Hour)
	if got := h.client.callCount(); got != 1 {
		t.Errorf("fetch calls = %d after advancing clock, want 1", got)
	}
}

func TestManager_SetupConfigErrorIsTerminal(t *testing.T) {
	h := newHarness(t, []fetchResult{
		{err: coordinator.ConfigErrorf("endpoint gone")},
	}, nil)

	err := h.mgr.Setup(context.Background(), h.entry.ID)
	if !errors.Is(err, coordinator.ErrSetupFailed) {
		t.Fatalf("Setup() error = %v, want ErrSetupFailed", err)
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateFailed {
		t.Errorf("persisted state = %q, want %q", got, StateFailed)
	}
}

func TestManager_SetupTransientFailureRetries(t *testing.T) {
	h := newHarness(t, []fetchResult{
		{err: coordinator.Recoverablef("connection refused")},
		goodSnapshot(19.0),
	}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v, want nil for transient failure", err)
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateSetupRetry {
		t.Errorf("persisted state = %q, want %q", got, StateSetupRetry)
	}
	if h.mgr.IsLoaded(h.entry.ID) {
		t.Error("IsLoaded() = true while waiting for retry")
	}

	h.clock.Advance(5 * time.Second)

	if !h.mgr.IsLoaded(h.entry.ID) {
		t.Fatal("IsLoaded() = false after successful retry")
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateLoaded {
		t.Errorf("persisted state = %q, want %q", got, StateLoaded)
	}
	if got := h.sink.types(); len(got) != 2 || got[0] != EventSetupRetry || got[1] != EventLoaded {
		t.Errorf("events = %v, want [setup_retry loaded]", got)
	}
}

func TestManager_RetryBackoffDoublesAndCaps(t *testing.T) {
	h := newHarness(t, []fetchResult{
		{err: coordinator.Recoverablef("still down")},
	}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	// Delays: 5s, 10s, 20s, 40s, then capped at 40s.
	wantCalls := 1
	for _, delay := range []time.Duration{
		5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 40 * time.Second,
	} {
		h.clock.Advance(delay - time.Second)
		if got := h.client.callCount(); got != wantCalls {
			t.Fatalf("fetch calls = %d just before retry, want %d", got, wantCalls)
		}
		h.clock.Advance(time.Second)
		wantCalls++
		if got := h.client.callCount(); got != wantCalls {
			t.Fatalf("fetch calls = %d after retry window, want %d", got, wantCalls)
		}
	}
}

func TestManager_RetriesExhaustedMarksFailed(t *testing.T) {
	h := newHarness(t, []fetchResult{
		{err: coordinator.Recoverablef("still down")},
	}, func(o *Options) {
		o.Retry.MaxAttempts = 2
	})

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	h.clock.Advance(time.Hour)

	if got := h.client.callCount(); got != 3 {
		t.Errorf("fetch calls = %d, want 3 (initial + 2 retries)", got)
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateFailed {
		t.Errorf("persisted state = %q, want %q after exhaustion", got, StateFailed)
	}
}

func TestManager_UnloadCancelsPendingRetry(t *testing.T) {
	h := newHarness(t, []fetchResult{
		{err: coordinator.Recoverablef("down")},
	}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := h.mgr.Unload(h.entry.ID); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	h.clock.Advance(time.Hour)
	if got := h.client.callCount(); got != 1 {
		t.Errorf("fetch calls = %d after unload, want 1", got)
	}
	if got := h.repo.stateOf(t, h.entry.ID); got != StateNotLoaded {
		t.Errorf("persisted state = %q, want %q", got, StateNotLoaded)
	}
}

func TestManager_UnloadTearsDownRuntime(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1)}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	coord, err := h.mgr.Coordinator(h.entry.ID)
	if err != nil {
		t.Fatalf("Coordinator() error = %v", err)
	}

	if err := h.mgr.Unload(h.entry.ID); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if h.mgr.IsLoaded(h.entry.ID) {
		t.Error("IsLoaded() = true after unload")
	}
	if !h.client.closed {
		t.Error("device client not closed on unload")
	}
	if err := coord.Refresh(context.Background()); !errors.Is(err, coordinator.ErrShutdown) {
		t.Errorf("coordinator Refresh() after unload = %v, want ErrShutdown", err)
	}
	if got := len(h.mgr.Entities()); got != 0 {
		t.Errorf("Entities() len = %d after unload, want 0", got)
	}
}

func TestManager_UnloadNotLoaded(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1)}, nil)

	if err := h.mgr.Unload(h.entry.ID); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Unload() error = %v, want ErrNotLoaded", err)
	}
}

func TestManager_Reload(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1), goodSnapshot(2)}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := h.mgr.Reload(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !h.mgr.IsLoaded(h.entry.ID) {
		t.Error("IsLoaded() = false after reload")
	}
	if got := h.client.callCount(); got != 2 {
		t.Errorf("fetch calls = %d, want 2 (one per setup)", got)
	}
}

func TestManager_RuntimeAuthFailureFlipsEntryState(t *testing.T) {
	h := newHarness(t, []fetchResult{
		goodSnapshot(1),
		{err: coordinator.AuthFailedf("token expired")},
	}, func(o *Options) {
		o.Poll.Interval = 30 * time.Second
	})

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	h.clock.Advance(30 * time.Second)

	if got := h.repo.stateOf(t, h.entry.ID); got != StateAuthRequired {
		t.Errorf("persisted state = %q, want %q after runtime auth failure", got, StateAuthRequired)
	}
	types := h.sink.types()
	if len(types) != 2 || types[1] != EventAuthRequired {
		t.Errorf("events = %v, want [loaded auth_required]", types)
	}
}

func TestManager_Entity(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(7)}, nil)

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	ent, ok := h.mgr.Entity(h.entry.ID + "-temp")
	if !ok {
		t.Fatal("Entity() not found")
	}
	if got := ent.Value(); got != 7.0 {
		t.Errorf("entity value = %v, want 7", got)
	}
	if _, ok := h.mgr.Entity("nope"); ok {
		t.Error("Entity(nope) found, want miss")
	}
}

func TestManager_ShutdownStopsEverything(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1)}, func(o *Options) {
		o.Poll.Interval = 30 * time.Second
	})

	if err := h.mgr.Setup(context.Background(), h.entry.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	h.mgr.Shutdown()

	h.clock.Advance(time.Hour)
	if got := h.client.callCount(); got != 1 {
		t.Errorf("fetch calls = %d after shutdown, want 1", got)
	}
	if !h.client.closed {
		t.Error("device client not closed on shutdown")
	}
	if err := h.mgr.Setup(context.Background(), h.entry.ID); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Setup() after shutdown = %v, want ErrManagerClosed", err)
	}
}

func TestManager_SetupAllSkipsTerminalEntries(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1)}, nil)

	broken := New("testint", "Broken", nil)
	broken.State = StateAuthRequired
	if err := h.repo.Create(context.Background(), broken); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := h.mgr.SetupAll(context.Background()); err != nil {
		t.Fatalf("SetupAll() error = %v", err)
	}
	if !h.mgr.IsLoaded(h.entry.ID) {
		t.Error("healthy entry not loaded by SetupAll")
	}
	if h.mgr.IsLoaded(broken.ID) {
		t.Error("auth_required entry loaded by SetupAll, want skipped")
	}
}

func TestManager_SetupUnknownIntegrationType(t *testing.T) {
	h := newHarness(t, []fetchResult{goodSnapshot(1)}, nil)

	stranger := New("zigbee", "Stranger", nil)
	if err := h.repo.Create(context.Background(), stranger); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := h.mgr.Setup(context.Background(), stranger.ID)
	if !errors.Is(err, integration.ErrUnknownType) {
		t.Fatalf("Setup() error = %v, want ErrUnknownType", err)
	}
	if got := h.repo.stateOf(t, stranger.ID); got != StateFailed {
		t.Errorf("persisted state = %q, want %q", got, StateFailed)
	}
}
