package entry

import "errors"

// Domain errors for the entry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, entry.ErrEntryNotFound) {
//	    // handle not found case
//	}
var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when creating an entry with an ID that
	// already exists.
	ErrEntryExists = errors.New("entry: already exists")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("entry: invalid")

	// ErrAlreadyLoaded is returned when setting up an entry that is
	// already running.
	ErrAlreadyLoaded = errors.New("entry: already loaded")

	// ErrNotLoaded is returned when operating on an entry that has no
	// running coordinator.
	ErrNotLoaded = errors.New("entry: not loaded")

	// ErrManagerClosed is returned when the entry manager has been shut
	// down.
	ErrManagerClosed = errors.New("entry: manager closed")
)
