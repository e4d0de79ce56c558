package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// RecordEvent inserts a connectivity event. A zero OccurredAt is stamped with
// the current time.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e Event) error {
	if e.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connectivity_events (occurred_at, kind, from_state, to_state, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		formatTimestamp(at),
		string(e.Kind),
		e.From,
		e.To,
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting connectivity event: %w", err)
	}
	return nil
}

// RecordReading inserts one publish attempt.
func (r *SQLiteRepository) RecordReading(ctx context.Context, rd Reading) error {
	if rd.Outcome == "" {
		return fmt.Errorf("reading outcome is required")
	}
	at := rd.RecordedAt
	if at.IsZero() {
		at = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO readings (recorded_at, temperature, humidity, led, fan, mode, payload_size, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTimestamp(at),
		rd.Snapshot.Temperature,
		rd.Snapshot.Humidity,
		boolToInt(rd.Snapshot.LED),
		boolToInt(rd.Snapshot.Fan),
		rd.Snapshot.Mode,
		rd.PayloadSize,
		string(rd.Outcome),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// Events returns recent connectivity events, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
func (r *SQLiteRepository) Events(ctx context.Context, limit int) ([]Event, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, occurred_at, kind, from_state, to_state, detail
		 FROM connectivity_events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying connectivity events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		var occurredAt, kind string
		if err := rows.Scan(&e.ID, &occurredAt, &kind, &e.From, &e.To, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning connectivity event: %w", err)
		}
		e.Kind = EventKind(kind)
		if e.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connectivity events: %w", err)
	}
	return events, nil
}

// Readings returns recent publish attempts, newest first.
func (r *SQLiteRepository) Readings(ctx context.Context, limit int) ([]Reading, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, recorded_at, temperature, humidity, led, fan, mode, payload_size, outcome
		 FROM readings
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]Reading, 0, limit)
	for rows.Next() {
		var rd Reading
		var recordedAt, outcome string
		var led, fan int
		if err := rows.Scan(
			&rd.ID, &recordedAt,
			&rd.Snapshot.Temperature, &rd.Snapshot.Humidity,
			&led, &fan, &rd.Snapshot.Mode,
			&rd.PayloadSize, &outcome,
		); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		rd.Snapshot.LED = led != 0
		rd.Snapshot.Fan = fan != 0
		rd.Outcome = Outcome(outcome)
		if rd.RecordedAt, err = parseTimestamp(recordedAt); err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// Prune keeps the newest keep rows of each table and deletes the rest.
//
// Returns:
//   - int64: Number of rows deleted across both tables
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("keep must be positive")
	}

	var total int64
	for _, table := range []string{"connectivity_events", "readings"} {
		// Table names come from the fixed list above, never from input.
		result, err := r.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE id NOT IN (
				SELECT id FROM `+table+` ORDER BY id DESC LIMIT ?
			)`,
			keep,
		)
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reading prune result: %w", err)
		}
		total += n
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing history timestamp %q: %w", value, err)
	}
	return t, nil
}
