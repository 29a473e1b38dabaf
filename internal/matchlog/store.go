// Package matchlog provides PostgreSQL-backed storage for room lifecycle
// records: when a room was created, when and why it was dissolved, and how
// long it lived. Records carry pairing metadata only; chat content is never
// persisted.
package matchlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// validReasons is the set of allowed dissolution reasons, matching the CHECK
// constraint on the room_log table.
var validReasons = map[string]bool{
	"disconnect": true,
	"new_chat":   true,
}

// Store manages room lifecycle records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Record is one dissolved room to be persisted.
type Record struct {
	RoomID      string
	Reason      string
	AgeSeconds  float64
	DissolvedAt time.Time
}

// NewStore creates a new match log store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a room lifecycle record. The reason is validated against the
// allowed set before insertion.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	if !validReasons[rec.Reason] {
		return fmt.Errorf("matchlog: invalid reason %q", rec.Reason)
	}

	const q = `
		INSERT INTO room_log (room_id, reason, age_seconds, dissolved_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, q, rec.RoomID, rec.Reason, rec.AgeSeconds, rec.DissolvedAt); err != nil {
		return fmt.Errorf("matchlog: insert room record: %w", err)
	}
	return nil
}

// CountSince returns the number of rooms dissolved after the given time,
// grouped by reason. Used for operational reporting.
func (s *Store) CountSince(ctx context.Context, since time.Time) (map[string]int, error) {
	const q = `
		SELECT reason, COUNT(*)
		FROM room_log
		WHERE dissolved_at >= $1
		GROUP BY reason`

	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("matchlog: count since: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("matchlog: scan count row: %w", err)
		}
		counts[reason] = n
	}
	return counts, rows.Err()
}

// AverageAgeSeconds returns the mean room lifetime for rooms dissolved after
// the given time. Returns 0 when no rooms qualify.
func (s *Store) AverageAgeSeconds(ctx context.Context, since time.Time) (float64, error) {
	const q = `
		SELECT COALESCE(AVG(age_seconds), 0)
		FROM room_log
		WHERE dissolved_at >= $1`

	var avg float64
	if err := s.db.QueryRowContext(ctx, q, since).Scan(&avg); err != nil {
		return 0, fmt.Errorf("matchlog: average age: %w", err)
	}
	return avg, nil
}
