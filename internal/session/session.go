// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/schoolhub-tui/internal/api"
	"github.com/jeranaias/schoolhub-tui/internal/audit"
	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/roles"
	"github.com/jeranaias/schoolhub-tui/internal/storage"
)

// Logout reasons recorded in the session history.
const (
	ReasonUser        = "user"
	ReasonIdleTimeout = "idle_timeout"
	ReasonForced      = "forced"
	ReasonExpired     = "expired"
)

var (
	// ErrNoSession is returned when nobody is signed in.
	ErrNoSession = errors.New("not signed in")

	// ErrSessionExpired is returned by Restore when the backend rejects the
	// stored token.
	ErrSessionExpired = errors.New("session expired")

	// ErrMissingCredentials is returned by Login for empty input.
	ErrMissingCredentials = errors.New("username and password are required")
)

// =============================================================================
// TYPES
// =============================================================================

// User is the signed-in principal.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	RoleCode string `json:"role_code"`
	SchoolID string `json:"school_id,omitempty"`
}

// DisplayName returns the full name, falling back to the username.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Username
}

// Session is an authenticated session.
type Session struct {
	ID           string    `json:"id"`
	User         User      `json:"user"`
	Token        string    `json:"-"`
	AcademicYear string    `json:"academic_year,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Backend authenticates users. *api.Client satisfies it.
type Backend interface {
	Login(ctx context.Context, username, password string) (*api.LoginResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*api.User, error)
	AcademicYears(ctx context.Context, token string) ([]api.AcademicYear, error)
}

// Store persists sessions. *storage.Store satisfies it.
type Store interface {
	SaveSession(ctx context.Context, rec storage.Record) error
	LoadSession(ctx context.Context) (*storage.Record, error)
	ClearSession(ctx context.Context) error
	UpdateAcademicYear(ctx context.Context, year string) error
	RecordLogin(ctx context.Context, sessionID, username, roleCode string, at time.Time) error
	RecordLogout(ctx context.Context, sessionID, reason string, at time.Time) error
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager tracks the current session. It is safe for concurrent use.
type Manager struct {
	backend Backend
	store   Store
	audit   *audit.Logger
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	current   *Session
	listeners map[int]func(*Session)
	nextID    int
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists sessions across runs.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithAudit records lifecycle events.
func WithAudit(l *audit.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager backed by backend.
func NewManager(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:   backend,
		logger:    zap.NewNop(),
		now:       time.Now,
		listeners: make(map[int]func(*Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates and makes the result the current session. The current
// academic year is selected when the backend reports one.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	res, err := m.backend.Login(ctx, username, password)
	if err != nil {
		m.audit.Session("", username).RecordFailure(audit.EventLoginFailed, err, nil)
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		User:      fromAPIUser(res.User),
		Token:     res.Token,
		StartedAt: m.now(),
	}
	if s.User.Username == "" {
		s.User.Username = username
	}

	if years, err := m.backend.AcademicYears(ctx, s.Token); err != nil {
		m.logger.Warn("could not load academic years", zap.Error(err))
	} else {
		s.AcademicYear = currentYear(years)
	}

	if m.store != nil {
		if err := m.store.SaveSession(ctx, toRecord(s)); err != nil {
			m.logger.Warn("could not persist session", zap.Error(err))
		}
		if err := m.store.RecordLogin(ctx, s.ID, s.User.Username, s.User.RoleCode, s.StartedAt); err != nil {
			m.logger.Warn("could not record login", zap.Error(err))
		}
	}

	m.logger.Info("signed in",
		zap.String("session_id", s.ID),
		zap.String("username", s.User.Username),
		zap.String("role", s.User.RoleCode))
	m.Recorder(s).Record(audit.EventSessionStarted, map[string]string{"role": s.User.RoleCode})

	m.set(s)
	return s.clone(), nil
}

// Restore resumes the stored session after checking it with the backend.
// A token the backend rejects is removed and ErrSessionExpired returned.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	if m.store == nil {
		return nil, ErrNoSession
	}

	rec, err := m.store.LoadSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	user, err := m.backend.CurrentUser(ctx, rec.Token)
	if errors.Is(err, api.ErrUnauthorized) {
		if clearErr := m.store.ClearSession(ctx); clearErr != nil {
			m.logger.Warn("could not clear expired session", zap.Error(clearErr))
		}
		_ = m.store.RecordLogout(ctx, rec.SessionID, ReasonExpired, m.now())
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("could not verify stored session: %w", err)
	}

	s := fromRecord(rec)
	s.User = fromAPIUser(*user)
	if s.User.Username == "" {
		s.User.Username = rec.Username
	}
	if err := m.store.SaveSession(ctx, toRecord(s)); err != nil {
		m.logger.Warn("could not refresh stored session", zap.Error(err))
	}

	m.logger.Info("session restored", zap.String("session_id", s.ID), zap.String("username", s.User.Username))
	m.set(s)
	return s.clone(), nil
}

// Logout ends the current session on the backend and locally. If the backend
// call fails the session stays signed in and the error is returned. A token
// the backend already considers invalid counts as signed out.
func (m *Manager) Logout(ctx context.Context, reason string) error {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()
	if s == nil {
		return ErrNoSession
	}
	if reason == "" {
		reason = ReasonUser
	}

	if err := m.backend.Logout(ctx, s.Token); err != nil && !errors.Is(err, api.ErrUnauthorized) {
		m.logger.Warn("backend logout failed", zap.String("session_id", s.ID), zap.Error(err))
		return fmt.Errorf("logout failed: %w", err)
	}

	if m.store != nil {
		if err := m.store.ClearSession(ctx); err != nil {
			m.logger.Warn("could not clear stored session", zap.Error(err))
		}
		if err := m.store.RecordLogout(ctx, s.ID, reason, m.now()); err != nil {
			m.logger.Warn("could not record logout", zap.Error(err))
		}
	}

	m.logger.Info("signed out", zap.String("session_id", s.ID), zap.String("reason", reason))
	m.Recorder(s).Record(audit.EventSessionEnded, map[string]string{"reason": reason})

	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()
	m.notify(nil)
	return nil
}

// SetAcademicYear changes the selected academic year.
func (m *Manager) SetAcademicYear(ctx context.Context, year string) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	next := m.current.clone()
	next.AcademicYear = year
	m.current = next
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.UpdateAcademicYear(ctx, year); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not save academic year: %w", err)
		}
	}
	m.notify(next.clone())
	return nil
}

// AcademicYears lists the years available to the current session.
func (m *Manager) AcademicYears(ctx context.Context) ([]api.AcademicYear, error) {
	s := m.Current()
	if s == nil {
		return nil, ErrNoSession
	}
	return m.backend.AcademicYears(ctx, s.Token)
}

// Current returns a copy of the current session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return m.current.clone()
}

// Authenticated reports whether someone is signed in.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// RoleCode returns the current role, or menu.NoRole when signed out.
func (m *Manager) RoleCode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return menu.NoRole
	}
	return m.current.User.RoleCode
}

// Recorder returns an audit recorder scoped to s.
func (m *Manager) Recorder(s *Session) *audit.Recorder {
	if m.audit == nil || s == nil {
		return nil
	}
	return m.audit.Session(s.ID, s.User.Username)
}

// OnChange registers fn to receive the session after every login, restore,
// year change and logout (nil). The returned function unregisters it.
func (m *Manager) OnChange(fn func(*Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.notify(s.clone())
}

func (m *Manager) notify(s *Session) {
	m.mu.RLock()
	fns := make([]func(*Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func fromAPIUser(u api.User) User {
	return User{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		RoleCode: roles.Normalize(u.RoleCode),
		SchoolID: u.SchoolID,
	}
}

func currentYear(years []api.AcademicYear) string {
	for _, y := range years {
		if y.IsCurrent {
			return y.Name
		}
	}
	if len(years) > 0 {
		return years[len(years)-1].Name
	}
	return ""
}

func toRecord(s *Session) storage.Record {
	return storage.Record{
		SessionID:    s.ID,
		UserID:       s.User.ID,
		Username:     s.User.Username,
		FullName:     s.User.FullName,
		RoleCode:     s.User.RoleCode,
		SchoolID:     s.User.SchoolID,
		Token:        s.Token,
		AcademicYear: s.AcademicYear,
		StartedAt:    s.StartedAt,
	}
}

func fromRecord(r *storage.Record) *Session {
	return &Session{
		ID: r.SessionID,
		User: User{
			ID:       r.UserID,
			Username: r.Username,
			FullName: r.FullName,
			RoleCode: roles.Normalize(r.RoleCode),
			SchoolID: r.SchoolID,
		},
		Token:        r.Token,
		AcademicYear: r.AcademicYear,
		StartedAt:    r.StartedAt,
	}
}
