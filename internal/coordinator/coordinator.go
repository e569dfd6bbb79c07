package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Default tuning values applied by New when the corresponding option is zero.
const (
	DefaultFetchTimeout     = 15 * time.Second
	DefaultFailureThreshold = 3
	DefaultDebounceDelay    = 500 * time.Millisecond
)

// State describes the coordinator's position in its lifecycle.
type State string

const (
	// StateInit means no fetch has completed yet.
	StateInit State = "init"

	// StateOK means the most recent fetch succeeded.
	StateOK State = "ok"

	// StateDegraded means recent fetches failed recoverably but the
	// failure threshold has not been reached. The last snapshot is still
	// served and listeners have not been notified.
	StateDegraded State = "degraded"

	// StateUnavailable means consecutive recoverable failures reached the
	// threshold. Listeners were notified so dependent entities report
	// unavailable. Polling continues; a single success recovers.
	StateUnavailable State = "unavailable"

	// StateAuthFailed means the upstream rejected our credentials.
	// Polling has stopped and re-authentication is required.
	StateAuthFailed State = "auth_failed"

	// StateFailed means a configuration error made further polling
	// pointless. User intervention is required.
	StateFailed State = "failed"
)

// FetchFunc retrieves a fresh snapshot from the upstream device or service.
// The returned value is opaque to the coordinator; it is stored and handed
// to subscribers as-is, so implementations must return a fresh value on
// every call and must not mutate previously returned snapshots.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Logger is the minimal logging interface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// PollResult summarises a completed fetch attempt for telemetry hooks.
type PollResult struct {
	Duration     time.Duration
	Success      bool
	FailureCount int
	Err          error
}

// Options configures a Coordinator. Zero values fall back to package
// defaults where noted.
type Options struct {
	// Name identifies the coordinator in log output, typically the
	// config entry title.
	Name string

	// Interval is the scheduled polling interval. Zero disables
	// scheduled polling; the coordinator then only fetches on demand.
	Interval time.Duration

	// FetchTimeout bounds each fetch attempt. Expiry counts as a
	// recoverable failure. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration

	// FailureThreshold is the number of consecutive recoverable failures
	// before listeners are told the data is unavailable. Defaults to
	// DefaultFailureThreshold.
	FailureThreshold int

	// DebounceDelay is the quiet period applied to RequestRefresh.
	// Defaults to DefaultDebounceDelay.
	DebounceDelay time.Duration

	// Immediate, when non-nil, marks recoverable errors that should skip
	// the failure threshold and make the coordinator unavailable on the
	// first occurrence (e.g. "device powered off" responses).
	Immediate func(err error) bool

	// OnFatal is invoked (outside the coordinator lock) when a fetch
	// fails with an auth or config error. The entry manager uses it to
	// flag the owning entry for re-authentication or repair.
	OnFatal func(kind FailureKind, err error)

	// OnPoll is invoked after every completed fetch with timing and
	// outcome details, for telemetry.
	OnPoll func(result PollResult)

	// Clock supplies time. Defaults to the system clock.
	Clock Clock

	// Logger receives diagnostic output. Defaults to a no-op logger.
	Logger Logger
}

// listener is a registered callback plus the fetch sequence number current
// at registration time. A listener is only notified for fetches that
// started after it registered.
type listener struct {
	cb       func()
	sinceSeq uint64
}

// inflight tracks a fetch in progress so concurrent Refresh callers can
// join it instead of starting another.
type inflight struct {
	done chan struct{}
	err  error
}

// Coordinator polls an upstream source on a fixed interval, keeps the most
// recent snapshot, and notifies registered listeners when the snapshot or
// its availability changes.
//
// At most one fetch is in flight at any time: manual refreshes, debounced
// refresh requests and scheduled ticks all serialise through the same slot,
// and concurrent callers share the in-flight result. Each scheduled tick is
// armed relative to the completion of the previous fetch, so a slow
// upstream stretches the effective interval instead of stacking fetches.
type Coordinator struct {
	name  string
	fetch FetchFunc
	clock Clock
	log   Logger
	opts  Options

	mu             sync.Mutex
	data           interface{}
	state          State
	lastSuccess    bool
	lastErr        error
	lastUpdated    time.Time
	failureCount   int
	fetchSeq       uint64
	listeners      map[int]*listener
	nextListenerID int
	current        *inflight
	pollTimer      Timer
	debounceTimer  Timer
	closed         bool
}

// New builds a Coordinator around fetch. It does not start polling: call
// FirstRefresh (or Refresh) to perform the initial fetch, which also arms
// the polling schedule when Options.Interval is non-zero.
func New(fetch FetchFunc, opts Options) *Coordinator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Coordinator{
		name:      opts.Name,
		fetch:     fetch,
		clock:     opts.Clock,
		log:       opts.Logger,
		opts:      opts,
		state:     StateInit,
		listeners: make(map[int]*listener),
	}
}

// Name returns the coordinator's display name.
func (c *Coordinator) Name() string {
	return c.name
}

// Data returns the most recent snapshot, or nil if no fetch has succeeded.
// Snapshots are replaced wholesale on each successful fetch and never
// mutated, so the returned value is safe to read without synchronisation.
func (c *Coordinator) Data() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// LastUpdateSuccess reports whether the coordinator currently considers its
// data usable. It stays true through recoverable failures below the
// threshold, so entities keep serving the last snapshot during brief blips.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// LastError returns the error from the most recent failed fetch, or nil if
// the most recent fetch succeeded.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastUpdated returns the completion time of the most recent successful
// fetch. The zero time means no fetch has succeeded yet.
func (c *Coordinator) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// FailureCount returns the current consecutive recoverable failure streak.
func (c *Coordinator) FailureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureCount
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AddListener registers cb to be called after each fetch that changes the
// snapshot or its availability. It returns an unsubscribe function; after
// that function returns, cb will not be invoked again. A listener
// registered while a fetch is in flight is not notified for that fetch.
//
// Unsubscribing is idempotent and safe to call from within the callback
// itself.
func (c *Coordinator) AddListener(cb func()) func() {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = &listener{cb: cb, sinceSeq: c.fetchSeq}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// ListenerCount returns the number of registered listeners.
func (c *Coordinator) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Refresh performs a fetch immediately and returns its error, bypassing
// the debounce. If a fetch is already in flight the caller joins it and
// receives that fetch's result instead of starting another. The next
// scheduled poll is re-armed relative to this fetch's completion.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrShutdown
	}
	if f := c.current; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &inflight{done: make(chan struct{})}
	c.current = f
	c.fetchSeq++
	seq := c.fetchSeq
	c.mu.Unlock()

	err := c.refreshOnce(ctx, seq)

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	f.err = err
	close(f.done)
	return err
}

// RequestRefresh schedules a refresh after the debounce delay. Repeated
// calls within the delay coalesce into a single fetch. The fetch outcome is
// reported through the usual listener and state machinery rather than to
// the caller.
func (c *Coordinator) RequestRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.debounceTimer != nil {
		return
	}
	c.debounceTimer = c.clock.AfterFunc(c.opts.DebounceDelay, func() {
		c.mu.Lock()
		c.debounceTimer = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.Refresh(context.Background()); err != nil && !errors.Is(err, ErrShutdown) {
			c.log.Debug("requested refresh failed", "coordinator", c.name, "error", err)
		}
	})
}

// FirstRefresh performs the initial fetch during entry setup. On success it
// returns nil and scheduled polling is armed. On failure it distinguishes
// transient problems, returned as ErrSetupRetry so the caller can back off
// and retry, from permanent ones (bad credentials, invalid configuration),
// returned as ErrSetupFailed.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	err := c.Refresh(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrShutdown) {
		return err
	}
	switch Classify(err) {
	case KindAuth, KindConfig:
		return wrapSetup(ErrSetupFailed, err)
	default:
		return wrapSetup(ErrSetupRetry, err)
	}
}

// Shutdown stops the coordinator: pending poll and debounce timers are
// cancelled, the listener set is cleared, and any fetch still in flight is
// allowed to finish but its result is discarded. Subsequent Refresh calls
// return ErrShutdown. Shutdown is idempotent.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.pollTimer != nil {
		c.pollTimer.Stop()
		c.pollTimer = nil
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.listeners = make(map[int]*listener)
	c.log.Debug("coordinator shut down", "coordinator", c.name)
}

// refreshOnce runs a single fetch attempt, commits the outcome and drives
// notifications. seq identifies this fetch for listener eligibility.
func (c *Coordinator) refreshOnce(ctx context.Context, seq uint64) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	start := c.clock.Now()
	data, err := c.fetch(fetchCtx)
	elapsed := c.clock.Now().Sub(start)

	var (
		notify    bool
		fatalKind FailureKind
		fatal     bool
		result    PollResult
	)

	c.mu.Lock()
	if c.closed {
		// Shutdown raced the fetch: discard the result entirely.
		c.mu.Unlock()
		return ErrShutdown
	}

	if err == nil {
		recovered := c.state == StateUnavailable
		c.data = data
		c.lastErr = nil
		c.lastSuccess = true
		c.lastUpdated = c.clock.Now()
		c.failureCount = 0
		c.state = StateOK
		notify = true
		if recovered {
			c.log.Info("coordinator recovered", "coordinator", c.name)
		}
	} else {
		kind := Classify(err)
		c.lastErr = err
		switch kind {
		case KindAuth:
			c.failureCount++
			c.lastSuccess = false
			c.state = StateAuthFailed
			notify = true
			fatal = true
			fatalKind = KindAuth
			c.log.Error("authentication rejected, polling stopped",
				"coordinator", c.name, "error", err)
		case KindConfig:
			c.failureCount++
			c.lastSuccess = false
			c.state = StateFailed
			notify = true
			fatal = true
			fatalKind = KindConfig
			c.log.Error("configuration error, polling stopped",
				"coordinator", c.name, "error", err)
		default:
			if kind == KindUnknown {
				c.log.Warn("unclassified fetch error, treating as recoverable",
					"coordinator", c.name, "error", err)
			}
			c.failureCount++
			immediate := c.opts.Immediate != nil && c.opts.Immediate(err)
			if c.failureCount >= c.opts.FailureThreshold || immediate {
				if c.state != StateUnavailable {
					notify = true
					c.log.Warn("coordinator unavailable",
						"coordinator", c.name,
						"failures", c.failureCount,
						"error", err)
				}
				c.lastSuccess = false
				c.state = StateUnavailable
			} else {
				// Below the threshold: absorb the failure, keep
				// serving the last snapshot, say nothing to listeners.
				c.state = StateDegraded
				c.log.Debug("fetch failed, retaining last snapshot",
					"coordinator", c.name,
					"failures", c.failureCount,
					"threshold", c.opts.FailureThreshold,
					"error", err)
			}
		}
	}

	result = PollResult{
		Duration:     elapsed,
		Success:      err == nil,
		FailureCount: c.failureCount,
		Err:          err,
	}

	var ids []int
	if notify {
		for id, l := range c.listeners {
			if l.sinceSeq < seq {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
	}
	c.mu.Unlock()

	// Callbacks run outside the lock so they may add or remove listeners.
	// Membership is re-checked per callback: a listener unsubscribed by an
	// earlier callback in the same pass is skipped.
	for _, id := range ids {
		c.mu.Lock()
		l, ok := c.listeners[id]
		c.mu.Unlock()
		if ok {
			l.cb()
		}
	}

	if fatal && c.opts.OnFatal != nil {
		c.opts.OnFatal(fatalKind, err)
	}
	if c.opts.OnPoll != nil {
		c.opts.OnPoll(result)
	}

	c.scheduleNext()
	return err
}

// scheduleNext arms the next poll tick relative to now, i.e. relative to
// the completion of the fetch that just finished. Terminal states and
// on-demand coordinators (zero interval) are not rescheduled.
func (c *Coordinator) scheduleNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.opts.Interval <= 0 {
		return
	}
	if c.state == StateAuthFailed || c.state == StateFailed {
		return
	}
	if c.pollTimer != nil {
		c.pollTimer.Stop()
	}
	c.pollTimer = c.clock.AfterFunc(c.opts.Interval, func() {
		if err := c.Refresh(context.Background()); err != nil && !errors.Is(err, ErrShutdown) {
			c.log.Debug("scheduled refresh failed", "coordinator", c.name, "error", err)
		}
	})
}

// wrapSetup wraps cause under sentinel so callers can match the sentinel
// with errors.Is while still unwrapping the original fetch error.
func wrapSetup(sentinel, cause error) error {
	return &setupError{sentinel: sentinel, cause: cause}
}

type setupError struct {
	sentinel error
	cause    error
}

func (e *setupError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *setupError) Is(target error) bool {
	return target == e.sentinel
}

func (e *setupError) Unwrap() error {
	return e.cause
}
