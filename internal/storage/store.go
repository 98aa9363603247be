// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when no session is stored.
var ErrNotFound = errors.New("no stored session")

// Schema creates the session tables.
const Schema = `
CREATE TABLE IF NOT EXISTS current_session (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	session_id    TEXT    NOT NULL,
	user_id       TEXT    NOT NULL,
	username      TEXT    NOT NULL,
	full_name     TEXT    NOT NULL DEFAULT '',
	role_code     TEXT    NOT NULL DEFAULT '',
	school_id     TEXT    NOT NULL DEFAULT '',
	token         TEXT    NOT NULL,
	academic_year TEXT    NOT NULL DEFAULT '',
	started_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT    NOT NULL UNIQUE,
	username      TEXT    NOT NULL,
	role_code     TEXT    NOT NULL DEFAULT '',
	login_at      INTEGER NOT NULL,
	logout_at     INTEGER,
	logout_reason TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_session_history_login ON session_history(login_at DESC);
`

// =============================================================================
// TYPES
// =============================================================================

// Record is the persisted form of a signed-in session.
type Record struct {
	SessionID    string
	UserID       string
	Username     string
	FullName     string
	RoleCode     string
	SchoolID     string
	Token        string
	AcademicYear string
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// HistoryEntry is one login in the session history.
type HistoryEntry struct {
	SessionID    string     `json:"session_id"`
	Username     string     `json:"username"`
	RoleCode     string     `json:"role_code"`
	LoginAt      time.Time  `json:"login_at"`
	LogoutAt     *time.Time `json:"logout_at,omitempty"`
	LogoutReason string     `json:"logout_reason,omitempty"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite-backed session store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Create the file ourselves so it never exists with default permissions.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	_ = f.Close()
	_ = os.Chmod(path, 0600)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSession replaces the stored session.
func (s *Store) SaveSession(ctx context.Context, rec Record) error {
	if rec.SessionID == "" || rec.Token == "" {
		return errors.New("session id and token are required")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO current_session
			(id, session_id, user_id, username, full_name, role_code, school_id, token, academic_year, started_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id    = excluded.session_id,
			user_id       = excluded.user_id,
			username      = excluded.username,
			full_name     = excluded.full_name,
			role_code     = excluded.role_code,
			school_id     = excluded.school_id,
			token         = excluded.token,
			academic_year = excluded.academic_year,
			started_at    = excluded.started_at,
			updated_at    = excluded.updated_at`,
		rec.SessionID, rec.UserID, rec.Username, rec.FullName, rec.RoleCode, rec.SchoolID,
		rec.Token, rec.AcademicYear, rec.StartedAt.UnixNano(), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session or ErrNotFound.
func (s *Store) LoadSession(ctx context.Context) (*Record, error) {
	var (
		rec              Record
		started, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, username, full_name, role_code, school_id, token, academic_year, started_at, updated_at
		FROM current_session WHERE id = 1`,
	).Scan(&rec.SessionID, &rec.UserID, &rec.Username, &rec.FullName, &rec.RoleCode, &rec.SchoolID,
		&rec.Token, &rec.AcademicYear, &started, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	rec.StartedAt = time.Unix(0, started)
	rec.UpdatedAt = time.Unix(0, updated)
	return &rec, nil
}

// UpdateAcademicYear changes the selected academic year of the stored session.
func (s *Store) UpdateAcademicYear(ctx context.Context, year string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE current_session SET academic_year = ?, updated_at = ? WHERE id = 1`,
		year, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to update academic year: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSession removes the stored session. Clearing an empty store is not an error.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// =============================================================================
// HISTORY
// =============================================================================

// RecordLogin adds a history row for a new session.
func (s *Store) RecordLogin(ctx context.Context, sessionID, username, roleCode string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_history (session_id, username, role_code, login_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		sessionID, username, roleCode, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// RecordLogout closes the history row of a session. Only the first logout
// is kept.
func (s *Store) RecordLogout(ctx context.Context, sessionID, reason string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE session_history SET logout_at = ?, logout_reason = ?
		WHERE session_id = ? AND logout_at IS NULL`,
		at.UnixNano(), reason, sessionID)
	if err != nil {
		return fmt.Errorf("failed to record logout: %w", err)
	}
	return nil
}

// ListHistory returns the most recent logins, newest first. limit <= 0
// returns everything.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `SELECT session_id, username, role_code, login_at, logout_at, logout_reason
		FROM session_history ORDER BY login_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			loginAt int64
			logout  sql.NullInt64
		)
		if err := rows.Scan(&e.SessionID, &e.Username, &e.RoleCode, &loginAt, &logout, &e.LogoutReason); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.LoginAt = time.Unix(0, loginAt)
		if logout.Valid {
			t := time.Unix(0, logout.Int64)
			e.LogoutAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
