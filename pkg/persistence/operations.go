package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides run-history operations on a database handle.
type Store struct {
	db        *sql.DB
	sessionID string
}

// NewStore creates a Store bound to db, recording runs under sessionID.
// The session row is created on first use.
func NewStore(db *sql.DB, sessionID string) (*Store, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	_, err := db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		sessionID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Store{db: db, sessionID: sessionID}, nil
}

// GlobalStore returns a Store on the singleton database.
func GlobalStore() (*Store, error) {
	if !IsInitialized() {
		return nil, fmt.Errorf("persistence not initialized")
	}
	return NewStore(GetDB(), SessionID())
}

// SessionID returns the session this store records under.
func (s *Store) SessionID() string {
	return s.sessionID
}

// RecordRun inserts a completed task run.
func (s *Store) RecordRun(task string, exitCode int, duration time.Duration, startedAt time.Time) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		SessionID: s.sessionID,
		Task:      task,
		ExitCode:  exitCode,
		Duration:  duration,
		StartedAt: startedAt.UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, session_id, task, exit_code, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.Task, run.ExitCode, run.Duration.Milliseconds(), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	return run, nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, task, exit_code, duration_ms, started_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		var run Run
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.SessionID, &run.Task, &run.ExitCode, &durationMS, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// TaskStats aggregates run counts, failures, and mean duration per task.
func (s *Store) TaskStats() ([]*TaskStat, error) {
	rows, err := s.db.Query(
		`SELECT task,
		        COUNT(*),
		        SUM(CASE WHEN exit_code != 0 THEN 1 ELSE 0 END),
		        AVG(duration_ms)
		 FROM runs GROUP BY task ORDER BY task`)
	if err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []*TaskStat
	for rows.Next() {
		var stat TaskStat
		var avgMS float64
		if err := rows.Scan(&stat.Task, &stat.Runs, &stat.Failures, &avgMS); err != nil {
			return nil, fmt.Errorf("failed to scan task stat: %w", err)
		}
		stat.AvgDuration = time.Duration(avgMS * float64(time.Millisecond))
		stats = append(stats, &stat)
	}

	return stats, rows.Err()
}
