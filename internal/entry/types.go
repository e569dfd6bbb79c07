package entry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State represents an entry's setup lifecycle state as persisted.
type State string

const (
	// StateNotLoaded means the entry exists but setup has not run.
	StateNotLoaded State = "not_loaded"

	// StateLoaded means the entry's coordinator is running.
	StateLoaded State = "loaded"

	// StateSetupRetry means the first refresh failed transiently and
	// setup is being retried with backoff.
	StateSetupRetry State = "setup_retry"

	// StateAuthRequired means the upstream rejected the stored
	// credentials; the user must re-authenticate the entry.
	StateAuthRequired State = "auth_required"

	// StateFailed means setup failed permanently for a non-auth reason.
	StateFailed State = "failed"
)

// validStates is the closed set of persisted entry states.
var validStates = map[State]bool{
	StateNotLoaded:    true,
	StateLoaded:       true,
	StateSetupRetry:   true,
	StateAuthRequired: true,
	StateFailed:       true,
}

// Entry is one configured integration instance: a device or account the
// hub polls. The stored options are opaque to the entry layer; the
// integration adapter named by Type interprets them.
type Entry struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Options   map[string]interface{} `json:"options"`
	State     State                  `json:"state"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// New creates an Entry with a fresh UUID in the not_loaded state.
func New(integrationType, title string, options map[string]interface{}) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:        uuid.NewString(),
		Type:      integrationType,
		Title:     title,
		Options:   options,
		State:     StateNotLoaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the entry's fields.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidEntry)
	}
	if e.State != "" && !validStates[e.State] {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidEntry, e.State)
	}
	return nil
}
