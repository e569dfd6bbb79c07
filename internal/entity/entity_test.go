package entity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/coordinator"
)

// recordingPublisher captures published states and availabilities.
type recordingPublisher struct {
	mu            sync.Mutex
	states        []interface{}
	availabilitys []bool
}

func (p *recordingPublisher) PublishEntityState(entityID string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, value)
	return nil
}

func (p *recordingPublisher) PublishEntityAvailability(entityID string, available bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availabilitys = append(p.availabilitys, available)
	return nil
}

func (p *recordingPublisher) stateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func (p *recordingPublisher) lastAvailability() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.availabilitys) == 0 {
		return false, false
	}
	return p.availabilitys[len(p.availabilitys)-1], true
}

// recordingObserver captures entity changes.
type recordingObserver struct {
	mu      sync.Mutex
	changes []Change
}

func (o *recordingObserver) EntityChanged(change Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, change)
}

func (o *recordingObserver) all() []Change {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Change(nil), o.changes...)
}

// tempDeriver reads "temp" and "online" keys from a map snapshot.
func tempDeriver(snapshot interface{}) Derived {
	m, ok := snapshot.(map[string]interface{})
	if !ok {
		return Derived{}
	}
	live, _ := m["online"].(bool)
	return Derived{Value: m["temp"], Live: live}
}

// scriptedCoordinator builds a coordinator whose fetch returns the queued
// results in order, repeating the last.
func scriptedCoordinator(t *testing.T, results ...func() (interface{}, error)) *coordinator.Coordinator {
	t.Helper()
	var mu sync.Mutex
	calls := 0
	fetch := func(ctx context.Context) (interface{}, error) {
		mu.Lock()
		i := calls
		if i >= len(results) {
			i = len(results) - 1
		}
		calls++
		mu.Unlock()
		return results[i]()
	}
	c := coordinator.New(fetch, coordinator.Options{
		Name:             "test-entry",
		FailureThreshold: 1,
	})
	t.Cleanup(c.Shutdown)
	return c
}

func ok(temp float64, online bool) func() (interface{}, error) {
	return func() (interface{}, error) {
		return map[string]interface{}{"temp": temp, "online": online}, nil
	}
}

func fail(msg string) func() (interface{}, error) {
	return func() (interface{}, error) {
		return nil, coordinator.Recoverablef("%s", msg)
	}
}

func TestEntity_AttachDerivesInitialState(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true))
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	pub := &recordingPublisher{}
	e := New(coord, Options{
		ID:        "sensor-living-temp",
		Name:      "Living Room Temperature",
		EntryID:   "entry-1",
		Derive:    tempDeriver,
		Publisher: pub,
	})
	e.Attach()
	defer e.Detach()

	if got := e.Value(); got != 21.5 {
		t.Errorf("Value() = %v, want 21.5", got)
	}
	if !e.Available() {
		t.Error("Available() = false, want true")
	}
	if avail, ok := pub.lastAvailability(); !ok || !avail {
		t.Errorf("published availability = %v (%v), want online", avail, ok)
	}
	if got := pub.stateCount(); got != 1 {
		t.Errorf("published %d states, want 1", got)
	}
}

func TestEntity_UnavailableUntilFirstSnapshot(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true))

	e := New(coord, Options{ID: "s1", Derive: tempDeriver})
	e.Attach()
	defer e.Detach()

	if e.Available() {
		t.Error("Available() = true before any fetch, want false")
	}
	if got := e.Value(); got != nil {
		t.Errorf("Value() = %v before any fetch, want nil", got)
	}
}

func TestEntity_AvailabilityNeedsTransportAndPayload(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		coord := scriptedCoordinator(t, ok(21.5, true), fail("link down"))
		coord.Refresh(context.Background())

		e := New(coord, Options{ID: "s1", Derive: tempDeriver})
		e.Attach()
		defer e.Detach()

		if !e.Available() {
			t.Fatal("Available() = false after good fetch, want true")
		}
		coord.Refresh(context.Background()) // threshold 1: goes unavailable
		if e.Available() {
			t.Error("Available() = true after transport failure, want false")
		}
		// The retained snapshot still feeds the value.
		if got := e.Value(); got != 21.5 {
			t.Errorf("Value() = %v, want retained 21.5", got)
		}
	})

	t.Run("payload reports offline", func(t *testing.T) {
		coord := scriptedCoordinator(t, ok(21.5, false))
		coord.Refresh(context.Background())

		e := New(coord, Options{ID: "s1", Derive: tempDeriver})
		e.Attach()
		defer e.Detach()

		if e.Available() {
			t.Error("Available() = true when payload says offline, want false")
		}
	})
}

func TestEntity_NoChangeNoPublish(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true))
	pub := &recordingPublisher{}

	e := New(coord, Options{ID: "s1", Derive: tempDeriver, Publisher: pub})
	e.Attach()
	defer e.Detach()

	coord.Refresh(context.Background())
	coord.Refresh(context.Background())
	coord.Refresh(context.Background())

	if got := pub.stateCount(); got != 1 {
		t.Errorf("published %d states for identical snapshots, want 1", got)
	}
}

func TestEntity_ValueChangePublishes(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true), ok(22.0, true))
	pub := &recordingPublisher{}

	e := New(coord, Options{ID: "s1", Derive: tempDeriver, Publisher: pub})
	e.Attach()
	defer e.Detach()

	coord.Refresh(context.Background())
	coord.Refresh(context.Background())

	if got := e.Value(); got != 22.0 {
		t.Errorf("Value() = %v, want 22.0", got)
	}
	if got := pub.stateCount(); got != 2 {
		t.Errorf("published %d states, want 2", got)
	}
}

func TestEntity_DetachStopsUpdates(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true), ok(30.0, true))

	e := New(coord, Options{ID: "s1", Derive: tempDeriver})
	e.Attach()
	coord.Refresh(context.Background())
	e.Detach()

	coord.Refresh(context.Background())
	if got := e.Value(); got != 21.5 {
		t.Errorf("Value() = %v after Detach, want frozen 21.5", got)
	}

	// Detach is idempotent.
	e.Detach()
}

func TestEntity_DetachConcurrentWithNotifications(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true), ok(22.0, true))

	e := New(coord, Options{ID: "s1", Derive: tempDeriver})
	e.Attach()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			coord.Refresh(context.Background())
		}
	}()

	// Detaching while notifications are being delivered must not race on
	// the subscription handle.
	e.Detach()
	e.Detach()
	<-done
}

func TestEntity_ObserversReceiveChanges(t *testing.T) {
	coord := scriptedCoordinator(t, ok(21.5, true))
	obs := &recordingObserver{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := New(coord, Options{
		ID:        "sensor-living-temp",
		EntryID:   "entry-1",
		Derive:    tempDeriver,
		Observers: []Observer{obs},
		Now:       func() time.Time { return now },
	})
	e.Attach()
	defer e.Detach()

	coord.Refresh(context.Background())

	changes := obs.all()
	if len(changes) != 1 {
		t.Fatalf("observer saw %d changes, want 1", len(changes))
	}
	c := changes[0]
	if c.EntityID != "sensor-living-temp" || c.EntryID != "entry-1" {
		t.Errorf("change identity = %s/%s, want sensor-living-temp/entry-1", c.EntityID, c.EntryID)
	}
	if c.Value != 21.5 || !c.Available {
		t.Errorf("change = %v available=%v, want 21.5 available", c.Value, c.Available)
	}
	if !c.At.Equal(now) {
		t.Errorf("change time = %v, want %v", c.At, now)
	}
}
