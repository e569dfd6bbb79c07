package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Record is one persisted entity transition.
type Record struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EntityID identifies the entity that changed.
	EntityID string `json:"entity_id"`

	// EntryID identifies the config entry owning the entity.
	EntryID string `json:"entry_id"`

	// Value is the entity value at the time of the change.
	Value interface{} `json:"value"`

	// Available is whether the entity was available after the change.
	Available bool `json:"available"`

	// RecordedAt is when the change happened (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// Store persists and retrieves entity state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Store interface {
	// Add persists one transition.
	Add(ctx context.Context, rec Record) error

	// ForEntity returns recent history for an entity, newest first.
	// limit is clamped to sane bounds; 0 means the default.
	ForEntity(ctx context.Context, entityID string, limit int) ([]Record, error)
}

// SQLiteStore implements Store using the state_history table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed history store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Add persists one transition.
func (s *SQLiteStore) Add(ctx context.Context, rec Record) error {
	if rec.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	available := 0
	if rec.Available {
		available = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO state_history (entity_id, entry_id, state, available, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.EntityID,
		rec.EntryID,
		string(valueJSON),
		available,
		rec.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting history row: %w", err)
	}
	return nil
}

// ForEntity returns recent history for an entity, newest first.
func (s *SQLiteStore) ForEntity(ctx context.Context, entityID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, entry_id, state, available, recorded_at
		FROM state_history
		WHERE entity_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var valueJSON, recordedAt string
		var available int
		if err := rows.Scan(&rec.ID, &rec.EntityID, &rec.EntryID, &valueJSON, &available, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(valueJSON), &rec.Value); err != nil {
			return nil, fmt.Errorf("parsing value: %w", err)
		}
		rec.Available = available != 0
		rec.RecordedAt, err = time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return records, nil
}
