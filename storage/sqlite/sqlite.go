// Package sqlite implements the storage interface on a SQLite database,
// for hosts that already carry one. Records are stored as JSON documents
// keyed by schedule ID; the active pointer is a single-row table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ringward/ringward"
	"github.com/ringward/ringward/storage"
)

// Store implements storage.Storage using SQLite
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS schedules (
    id   TEXT PRIMARY KEY,
    data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runtime_states (
    schedule_id TEXT PRIMARY KEY,
    data        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS active_schedule (
    slot        INTEGER PRIMARY KEY CHECK (slot = 1),
    schedule_id TEXT NOT NULL
);
`

// Open opens (or creates) a SQLite-backed store at the given path
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Schedule operations

func (s *Store) SaveSchedule(ctx context.Context, sched *ringward.Schedule) error {
	sched.UpdatedAt = time.Now()
	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO schedules (id, data) VALUES (?, ?)
        ON CONFLICT (id) DO UPDATE SET data = excluded.data
    `, sched.ID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sched.ID, err)
	}
	return nil
}

func (s *Store) LoadSchedule(ctx context.Context, scheduleID string) (*ringward.Schedule, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM schedules WHERE id = ?`, scheduleID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %s: %w", scheduleID, err)
	}

	var sched ringward.Schedule
	if err := json.Unmarshal([]byte(data), &sched); err != nil {
		return nil, fmt.Errorf("failed to decode schedule %s: %w", scheduleID, err)
	}
	return &sched, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM schedules WHERE id = ?`, scheduleID); err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", scheduleID, err)
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]*ringward.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*ringward.Schedule
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		var sched ringward.Schedule
		if err := json.Unmarshal([]byte(data), &sched); err != nil {
			return nil, fmt.Errorf("failed to decode schedule row: %w", err)
		}
		schedules = append(schedules, &sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule rows: %w", err)
	}

	return schedules, nil
}

// Runtime state operations

func (s *Store) SaveRuntimeState(ctx context.Context, st *ringward.RuntimeState) error {
	st.UpdatedAt = time.Now()
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal runtime state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO runtime_states (schedule_id, data) VALUES (?, ?)
        ON CONFLICT (schedule_id) DO UPDATE SET data = excluded.data
    `, st.ScheduleID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save runtime state %s: %w", st.ScheduleID, err)
	}
	return nil
}

func (s *Store) LoadRuntimeState(ctx context.Context, scheduleID string) (*ringward.RuntimeState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM runtime_states WHERE schedule_id = ?`, scheduleID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("runtime state %s: %w", scheduleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load runtime state %s: %w", scheduleID, err)
	}

	var st ringward.RuntimeState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to decode runtime state %s: %w", scheduleID, err)
	}
	return &st, nil
}

func (s *Store) DeleteRuntimeState(ctx context.Context, scheduleID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM runtime_states WHERE schedule_id = ?`, scheduleID); err != nil {
		return fmt.Errorf("failed to delete runtime state %s: %w", scheduleID, err)
	}
	return nil
}

// Active-schedule pointer

func (s *Store) ActiveScheduleID(ctx context.Context) (string, error) {
	var active string
	err := s.db.QueryRowContext(ctx,
		`SELECT schedule_id FROM active_schedule WHERE slot = 1`).Scan(&active)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load active schedule: %w", err)
	}
	return active, nil
}

// SwapActiveSchedule installs the new active schedule and returns the
// previous holder, all inside one transaction
func (s *Store) SwapActiveSchedule(ctx context.Context, scheduleID string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin swap: %w", err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx,
		`SELECT schedule_id FROM active_schedule WHERE slot = 1`).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to load active schedule: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO active_schedule (slot, schedule_id) VALUES (1, ?)
        ON CONFLICT (slot) DO UPDATE SET schedule_id = excluded.schedule_id
    `, scheduleID)
	if err != nil {
		return "", fmt.Errorf("failed to set active schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit swap: %w", err)
	}

	if previous == scheduleID {
		previous = ""
	}
	return previous, nil
}

// ClearActiveSchedule clears the pointer only if the given schedule holds it
func (s *Store) ClearActiveSchedule(ctx context.Context, scheduleID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM active_schedule WHERE slot = 1 AND schedule_id = ?`, scheduleID); err != nil {
		return fmt.Errorf("failed to clear active schedule: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
