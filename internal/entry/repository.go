package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for entry persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an entry by its unique identifier.
	// Returns ErrEntryNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// List retrieves all entries ordered by title.
	List(ctx context.Context) ([]Entry, error)

	// ListByState retrieves all entries in a given lifecycle state.
	ListByState(ctx context.Context, state State) ([]Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntryExists if an entry with the same ID already exists.
	Create(ctx context.Context, e *Entry) error

	// Update modifies an existing entry's title and options.
	// Returns ErrEntryNotFound if the entry does not exist.
	Update(ctx context.Context, e *Entry) error

	// UpdateState updates only the lifecycle state and error message.
	// This is the hot path during setup retries.
	UpdateState(ctx context.Context, id string, state State, errMsg string) error

	// Delete removes an entry by ID.
	// Returns ErrEntryNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = "id, type, title, options, state, error, created_at, updated_at"

// GetByID retrieves an entry by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = ?`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by title.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries ORDER BY title`
	return r.queryEntries(ctx, query)
}

// ListByState retrieves all entries in a given lifecycle state.
func (r *SQLiteRepository) ListByState(ctx context.Context, state State) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE state = ? ORDER BY title`
	return r.queryEntries(ctx, query, string(state))
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.State == "" {
		e.State = StateNotLoaded
	}

	optionsJSON, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}

	query := `
		INSERT INTO entries (id, type, title, options, state, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.Type,
		e.Title,
		string(optionsJSON),
		string(e.State),
		e.Error,
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

// Update modifies an existing entry's title and options.
func (r *SQLiteRepository) Update(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	optionsJSON, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE entries
		SET title = ?, options = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		e.Title,
		string(optionsJSON),
		now.Format(time.RFC3339),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}
	return requireRow(result, ErrEntryNotFound)
}

// UpdateState updates only the lifecycle state and error message.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State, errMsg string) error {
	if !validStates[state] {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidEntry, state)
	}

	query := `
		UPDATE entries
		SET state = ?, error = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(state),
		errMsg,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating entry state: %w", err)
	}
	return requireRow(result, ErrEntryNotFound)
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return requireRow(result, ErrEntryNotFound)
}

// queryEntries runs a multi-row query and scans the results.
func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans a row or rows result into an Entry.
func scanEntry(scanner rowScanner) (*Entry, error) {
	var e Entry
	var optionsJSON, state, createdAt, updatedAt string
	var errMsg sql.NullString

	err := scanner.Scan(
		&e.ID,
		&e.Type,
		&e.Title,
		&optionsJSON,
		&state,
		&errMsg,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(optionsJSON), &e.Options); err != nil {
		return nil, fmt.Errorf("parsing options: %w", err)
	}
	e.State = State(state)
	e.Error = errMsg.String

	e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

// requireRow converts a zero-rows-affected result into notFound.
func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
