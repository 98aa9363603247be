// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/schoolhub-tui/internal/roles"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/storage"
)

// ErrAlreadySignedIn is returned by login when a session is already stored.
var ErrAlreadySignedIn = errors.New("already signed in")

// sessionInfo is the printable form of a session. It never carries the token.
type sessionInfo struct {
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name,omitempty"`
	Role         string    `json:"role"`
	RoleName     string    `json:"role_name"`
	SchoolID     string    `json:"school_id,omitempty"`
	AcademicYear string    `json:"academic_year,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

func infoFromSession(s *session.Session) sessionInfo {
	return sessionInfo{
		SessionID:    s.ID,
		Username:     s.User.Username,
		FullName:     s.User.FullName,
		Role:         s.User.RoleCode,
		RoleName:     roles.DisplayName(s.User.RoleCode),
		SchoolID:     s.User.SchoolID,
		AcademicYear: s.AcademicYear,
		StartedAt:    s.StartedAt,
	}
}

func infoFromRecord(r *storage.Record) sessionInfo {
	return sessionInfo{
		SessionID:    r.SessionID,
		Username:     r.Username,
		FullName:     r.FullName,
		Role:         r.RoleCode,
		RoleName:     roles.DisplayName(r.RoleCode),
		SchoolID:     r.SchoolID,
		AcademicYear: r.AcademicYear,
		StartedAt:    r.StartedAt,
	}
}

func (c *cmdContext) printSession(info sessionInfo) {
	const w = 13
	name := info.Username
	if info.FullName != "" {
		name = fmt.Sprintf("%s (%s)", info.FullName, info.Username)
	}
	c.out.Field("User", name, w)
	c.out.Field("Role", info.RoleName, w)
	if info.AcademicYear != "" {
		c.out.Field("Academic year", info.AcademicYear, w)
	}
	c.out.Field("Signed in", info.StartedAt.Local().Format("2006-01-02 15:04"), w)
	c.out.Field("Session", info.SessionID, w)
}

// =============================================================================
// LOGIN
// =============================================================================

func runLogin(ctx context.Context, c *cmdContext) error {
	if err := c.args.allow("username", "u", "password-stdin"); err != nil {
		return err
	}
	if err := c.args.maxArgs(0); err != nil {
		return err
	}

	e, err := c.environment()
	if err != nil {
		return err
	}
	store, err := e.Store()
	if err != nil {
		return err
	}
	if rec, err := store.LoadSession(ctx); err == nil {
		return fmt.Errorf("%w as %s; run 'schoolhub logout' first", ErrAlreadySignedIn, rec.Username)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	username := c.args.Flag("username", "u")
	if username == "" {
		username, err = c.io.prompt("Username: ")
		if errors.Is(err, ErrTTYRequired) {
			return Usagef("login: --username is required when stdin is not a terminal")
		}
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	var password string
	if c.args.BoolFlag("password-stdin") {
		password, err = c.io.readLine()
		if err != nil {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
	} else {
		password, err = c.io.secret("Password: ")
		if errors.Is(err, ErrTTYRequired) {
			return Usagef("login: use --password-stdin when stdin is not a terminal")
		}
		if err != nil {
			return err
		}
	}

	sessions, err := e.Sessions()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*e.cfg.RequestTimeout())
	defer cancel()
	s, err := sessions.Login(ctx, username, password)
	if err != nil {
		return err
	}

	info := infoFromSession(s)
	if c.args.JSON {
		return c.emit(info)
	}
	c.out.Success("Signed in as %s", s.User.DisplayName())
	c.printSession(info)
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

func runLogout(ctx context.Context, c *cmdContext) error {
	if err := c.args.allow(); err != nil {
		return err
	}
	if err := c.args.maxArgs(0); err != nil {
		return err
	}

	e, err := c.environment()
	if err != nil {
		return err
	}
	sessions, err := e.Sessions()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.LogoutTimeout())
	defer cancel()

	result := map[string]string{"status": "signed_out"}
	s, err := sessions.Restore(ctx)
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		// Restore already cleared the expired session.
		result["status"] = "expired"
	case err != nil:
		return err
	default:
		result["username"] = s.User.Username
		if err := sessions.Logout(ctx, session.ReasonUser); err != nil {
			return &CommandError{Command: "logout", Action: "sign out", Err: err}
		}
	}

	if c.args.JSON {
		return c.emit(result)
	}
	if result["status"] == "expired" {
		c.out.Success("Session had already expired; local session cleared")
		return nil
	}
	c.out.Success("Signed out %s", s.User.Username)
	return nil
}

// =============================================================================
// WHOAMI
// =============================================================================

// runWhoami reports the stored session without contacting the backend.
func runWhoami(ctx context.Context, c *cmdContext) error {
	if err := c.args.allow(); err != nil {
		return err
	}
	if err := c.args.maxArgs(0); err != nil {
		return err
	}

	e, err := c.environment()
	if err != nil {
		return err
	}
	store, err := e.Store()
	if err != nil {
		return err
	}
	rec, err := store.LoadSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return session.ErrNoSession
	}
	if err != nil {
		return err
	}

	info := infoFromRecord(rec)
	if c.args.JSON {
		return c.emit(info)
	}
	c.out.Title("Current session")
	c.printSession(info)
	return nil
}
