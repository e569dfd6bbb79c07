package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors returned by coordinator operations.
var (
	// ErrShutdown is returned when an operation is attempted on a
	// coordinator that has been shut down.
	ErrShutdown = errors.New("coordinator: shut down")

	// ErrSetupRetry indicates the first refresh failed for a transient
	// reason and setup should be retried later with backoff.
	ErrSetupRetry = errors.New("coordinator: setup failed, will retry")

	// ErrSetupFailed indicates the first refresh failed for a permanent
	// reason (bad credentials, invalid configuration) and setup must not
	// be retried automatically.
	ErrSetupFailed = errors.New("coordinator: setup failed permanently")
)

// FailureKind classifies why a fetch failed. The coordinator's escalation
// behaviour depends on the kind: recoverable failures are absorbed until
// the failure threshold is reached, while auth and config failures take
// effect immediately and are terminal.
type FailureKind int

const (
	// KindUnknown is an unclassified failure. It is escalated the same
	// way as KindRecoverable but logged at a higher level so broken
	// integrations surface during development.
	KindUnknown FailureKind = iota

	// KindRecoverable is a transient failure (network blip, device busy,
	// upstream 5xx). Polling continues and the last snapshot is retained
	// until the failure threshold is reached.
	KindRecoverable

	// KindAuth means the upstream rejected our credentials. The
	// coordinator stops polling and signals that re-authentication is
	// required.
	KindAuth

	// KindConfig means the configured target no longer exists or the
	// stored options are invalid. Retrying cannot succeed without user
	// intervention.
	KindConfig
)

// String returns a human-readable name for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// FetchError is an error returned by a fetch function carrying an explicit
// failure classification. Device clients wrap upstream errors in a
// FetchError so the coordinator can decide between hysteresis, immediate
// unavailability and terminal states.
type FetchError struct {
	Kind FailureKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Recoverablef builds a recoverable FetchError with a formatted message.
func Recoverablef(format string, args ...interface{}) error {
	return &FetchError{Kind: KindRecoverable, Err: fmt.Errorf(format, args...)}
}

// AuthFailedf builds an authentication FetchError with a formatted message.
func AuthFailedf(format string, args ...interface{}) error {
	return &FetchError{Kind: KindAuth, Err: fmt.Errorf(format, args...)}
}

// ConfigErrorf builds a configuration FetchError with a formatted message.
func ConfigErrorf(format string, args ...interface{}) error {
	return &FetchError{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// Classify determines the failure kind of an arbitrary fetch error.
//
// A *FetchError anywhere in the chain wins. Context deadline expiry and
// network timeouts count as recoverable, since a per-attempt timeout is a
// transient condition. Everything else is unknown.
func Classify(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindRecoverable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindRecoverable
	}
	return KindUnknown
}
