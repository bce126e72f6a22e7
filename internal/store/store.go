// Package store keeps a ledger of processed Slack event IDs so that Slack's
// delivery retries are handled once. Only event metadata is stored.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Status is the processing state of a ledger entry.
type Status string

const (
	StatusReceived Status = "received"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// ErrNotFound is returned when no ledger entry has the requested ID.
var ErrNotFound = errors.New("event not found")

// EventRecord is one ledger entry.
type EventRecord struct {
	EventID    string
	Kind       string
	Channel    string
	Status     Status
	Error      string
	ReceivedAt time.Time
	FinishedAt time.Time // zero while received
}

// SQLiteStore is the event ledger backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the ledger at dbPath and applies migrations.
func Open(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Claim records rec as received. It reports false when the event was
// already claimed and has not failed, meaning the caller must skip it.
// A failed event can be claimed again.
func (s *SQLiteStore) Claim(ctx context.Context, rec EventRecord) (bool, error) {
	if rec.EventID == "" {
		return false, fmt.Errorf("claim: empty event ID")
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, kind, channel, status, error, received_at, finished_at)
		VALUES (?, ?, ?, ?, '', ?, NULL)
		ON CONFLICT(event_id) DO UPDATE SET
			status = excluded.status,
			error = '',
			received_at = excluded.received_at,
			finished_at = NULL
		WHERE events.status = ?`,
		rec.EventID, rec.Kind, rec.Channel, StatusReceived, rec.ReceivedAt.UnixMilli(), StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", rec.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", rec.EventID, err)
	}
	return n > 0, nil
}

// Finish marks a claimed event done, or failed when cause is non-nil.
func (s *SQLiteStore) Finish(ctx context.Context, eventID string, cause error) error {
	status, msg := StatusDone, ""
	if cause != nil {
		status, msg = StatusFailed, cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ?, error = ?, finished_at = ? WHERE event_id = ?`,
		status, msg, time.Now().UnixMilli(), eventID,
	)
	if err != nil {
		return fmt.Errorf("finish %s: %w", eventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", eventID, ErrNotFound)
	}
	return nil
}

// Get returns the ledger entry for eventID.
func (s *SQLiteStore) Get(ctx context.Context, eventID string) (*EventRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT event_id, kind, channel, status, error, received_at, finished_at FROM events WHERE event_id = ?`,
		eventID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", eventID, err)
	}
	return rec, nil
}

// Recent returns the newest entries first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, kind, channel, status, error, received_at, finished_at
		 FROM events ORDER BY received_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("recent events: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Prune deletes entries received before now minus maxAge.
func (s *SQLiteStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug("pruned event ledger", "removed", n)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*EventRecord, error) {
	var (
		rec        EventRecord
		channel    sql.NullString
		errText    sql.NullString
		receivedAt int64
		finishedAt sql.NullInt64
	)
	if err := sc.Scan(&rec.EventID, &rec.Kind, &channel, &rec.Status, &errText, &receivedAt, &finishedAt); err != nil {
		return nil, err
	}
	rec.Channel = channel.String
	rec.Error = errText.String
	rec.ReceivedAt = time.UnixMilli(receivedAt)
	if finishedAt.Valid {
		rec.FinishedAt = time.UnixMilli(finishedAt.Int64)
	}
	return &rec, nil
}
