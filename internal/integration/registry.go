package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// DeviceClient fetches snapshots from one upstream device or service. A
// client is built per config entry from that entry's stored options and
// lives for the lifetime of the entry's coordinator.
//
// Fetch must return a fresh snapshot value on every successful call and
// classify failures by wrapping them with the coordinator error
// constructors (Recoverablef, AuthFailedf, ConfigErrorf) so escalation
// behaves correctly.
type DeviceClient interface {
	// Fetch retrieves the current state of the upstream. The returned
	// value is opaque to callers above the entity layer.
	Fetch(ctx context.Context) (interface{}, error)

	// Close releases any resources held by the client, such as pooled
	// HTTP connections.
	Close() error
}

// Factory builds a DeviceClient from the options stored on a config entry.
// Factories validate their options and return ErrInvalidOptions (wrapped)
// when required fields are missing.
type Factory func(opts map[string]interface{}) (DeviceClient, error)

// Registry maps integration type names (e.g. "httpjson") to adapter
// factories. Registration happens once during startup wiring; lookups
// happen whenever an entry is set up.
//
// The registry is owned by the hub and passed explicitly to the entry
// manager. There is no package-level default.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    Logger
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds an adapter factory under the given integration type.
// Type names are case-insensitive and stored lowercased.
func (r *Registry) Register(integrationType string, factory Factory) error {
	typ := strings.ToLower(strings.TrimSpace(integrationType))
	if typ == "" {
		return ErrInvalidType
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typ]; exists {
		return fmt.Errorf("%w: %s", ErrTypeExists, typ)
	}
	r.factories[typ] = factory
	r.logger.Debug("integration registered", "type", typ)
	return nil
}

// Create builds a device client for the given integration type from entry
// options. Returns ErrUnknownType if no adapter is registered for the type.
func (r *Registry) Create(integrationType string, opts map[string]interface{}) (DeviceClient, error) {
	typ := strings.ToLower(strings.TrimSpace(integrationType))

	r.mu.RLock()
	factory, ok := r.factories[typ]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}

	client, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("building %s client: %w", typ, err)
	}
	return client, nil
}

// Has reports whether an adapter is registered for the given type.
func (r *Registry) Has(integrationType string) bool {
	typ := strings.ToLower(strings.TrimSpace(integrationType))

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// Types returns the registered integration type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
