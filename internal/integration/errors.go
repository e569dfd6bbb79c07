package integration

import "errors"

// Domain errors for the integration package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, integration.ErrUnknownType) {
//	    // handle unknown integration type
//	}
var (
	// ErrUnknownType is returned when no adapter is registered for the
	// requested integration type.
	ErrUnknownType = errors.New("integration: unknown type")

	// ErrTypeExists is returned when registering an adapter under a type
	// that is already taken.
	ErrTypeExists = errors.New("integration: type already registered")

	// ErrInvalidType is returned when an integration type name is empty
	// or malformed.
	ErrInvalidType = errors.New("integration: invalid type")

	// ErrNilFactory is returned when registering a nil adapter factory.
	ErrNilFactory = errors.New("integration: nil factory")

	// ErrInvalidOptions is returned by adapter factories when the stored
	// entry options are missing required fields or malformed.
	ErrInvalidOptions = errors.New("integration: invalid options")
)
