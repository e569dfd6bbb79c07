package history

import (
	"context"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/entity"
)

// writeTimeout bounds each SQLite insert performed by the worker.
const writeTimeout = 5 * time.Second

// queueSize is the change buffer between entity callbacks and the worker.
// Changes are dropped (with a warning) when the buffer is full so a slow
// disk can never stall coordinator notifications.
const queueSize = 256

// Logger defines the logging interface used by the Recorder.
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

// TimeSeriesWriter receives entity transitions for time-series telemetry.
// It is satisfied by the influxdb client; writes are fire-and-forget.
type TimeSeriesWriter interface {
	WriteEntityState(entityID, entryID string, fields map[string]interface{})
	WriteEntityAvailability(entityID string, available bool)
}

// Recorder subscribes to entity changes and persists them: every
// transition goes to the SQLite state_history table, and to the
// time-series writer when one is configured.
//
// Writes happen on a single background worker so the entity notification
// path never blocks on disk.
type Recorder struct {
	store  Store
	ts     TimeSeriesWriter
	logger Logger

	ch       chan entity.Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder creates a Recorder. The time-series writer may be nil.
func NewRecorder(store Store, ts TimeSeriesWriter, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		store:  store,
		ts:     ts,
		logger: logger,
		ch:     make(chan entity.Change, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the background worker.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop drains nothing further: buffered changes already accepted are
// written, then the worker exits. Safe to call twice.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// EntityChanged implements entity.Observer. It never blocks; when the
// buffer is full the change is dropped and counted in the logs.
func (r *Recorder) EntityChanged(change entity.Change) {
	select {
	case r.ch <- change:
	case <-r.done:
	default:
		r.logger.Warn("history buffer full, dropping change",
			"entity", change.EntityID)
	}
}

// run is the worker loop.
func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case change := <-r.ch:
			r.write(change)
		case <-r.done:
			// Drain what was accepted before the stop.
			for {
				select {
				case change := <-r.ch:
					r.write(change)
				default:
					return
				}
			}
		}
	}
}

// write persists a single change to both sinks.
func (r *Recorder) write(change entity.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.store.Add(ctx, Record{
		EntityID:   change.EntityID,
		EntryID:    change.EntryID,
		Value:      change.Value,
		Available:  change.Available,
		RecordedAt: change.At,
	})
	if err != nil {
		r.logger.Error("history write failed",
			"entity", change.EntityID, "error", err)
	}

	if r.ts != nil {
		r.ts.WriteEntityAvailability(change.EntityID, change.Available)
		if change.Available {
			r.ts.WriteEntityState(change.EntityID, change.EntryID,
				map[string]interface{}{"value": change.Value})
		}
	}
}
