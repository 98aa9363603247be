// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/schoolhub-tui/internal/audit"
	"github.com/jeranaias/schoolhub-tui/internal/config"
	"github.com/jeranaias/schoolhub-tui/internal/idle"
	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
)

// Deps are the long-lived services the TUI runs on.
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	// Menu is the unfiltered navigation tree.
	Menu   []menu.Node
	Theme  *styles.Theme
	Logger *zap.Logger
}

// sessionAuditor records monitor events against whoever is signed in.
type sessionAuditor struct {
	sessions *session.Manager
}

func (a sessionAuditor) Record(eventType string, metadata map[string]string) {
	a.sessions.Recorder(a.sessions.Current()).Record(eventType, metadata)
}

func (a sessionAuditor) RecordFailure(eventType string, cause error, metadata map[string]string) {
	a.sessions.Recorder(a.sessions.Current()).RecordFailure(eventType, cause, metadata)
}

// LogoutFunc adapts the session manager to the idle monitor's callback. The
// monitor's reason (idle timeout or forced) is recorded with the logout.
func LogoutFunc(sessions *session.Manager) idle.LogoutFunc {
	return func(ctx context.Context) error {
		reason := session.ReasonIdleTimeout
		if r, ok := idle.ReasonFrom(ctx); ok {
			reason = r.String()
		}
		err := sessions.Logout(ctx, reason)
		if errors.Is(err, session.ErrNoSession) {
			return nil
		}
		return err
	}
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, d Deps) error {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := d.Config

	bridge := NewBridge(DefaultBridgeBuffer)
	defer bridge.Close()

	monitor := idle.New(
		idle.WithLogger(logger.Named("idle")),
		idle.WithAuditor(sessionAuditor{sessions: d.Sessions}),
		idle.WithLogoutTimeout(cfg.LogoutTimeout()),
		idle.WithObserver(func(s idle.State) { bridge.Send(IdleStateMsg{State: s}) }),
	)
	if err := monitor.Configure(cfg.Session.IdleTimeoutSecs, cfg.Session.WarningCountdownSecs, LogoutFunc(d.Sessions)); err != nil {
		return fmt.Errorf("invalid idle settings: %w", err)
	}
	defer func() {
		monitor.SetEnabled(false)
		monitor.Close()
		monitor.Wait()
	}()

	stop := d.Sessions.OnChange(func(s *session.Session) {
		bridge.Send(SessionChangedMsg{Session: s})
	})
	defer stop()

	if cfg.Menu.Watch && cfg.Menu.File != "" {
		path := cfg.Menu.File
		w, err := menu.NewWatcher(path, menu.DefaultDebounce, logger.Named("menu"), func(nodes []menu.Node, err error) {
			rec := d.Sessions.Recorder(d.Sessions.Current())
			if err != nil {
				rec.RecordFailure(audit.EventMenuReloaded, err, map[string]string{"path": path})
			} else {
				rec.Record(audit.EventMenuReloaded, map[string]string{"path": path, "items": fmt.Sprint(menu.Count(nodes))})
			}
			bridge.Send(MenuReloadedMsg{Nodes: nodes, Err: err})
		})
		if err != nil {
			logger.Warn("menu watch disabled", zap.String("path", path), zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	model := New(Options{
		Theme:          d.Theme,
		Sessions:       d.Sessions,
		Monitor:        monitor,
		Menu:           d.Menu,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout(),
	})

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseAllMotion())
	}
	p := tea.NewProgram(model, opts...)
	go bridge.Run(p)

	logger.Info("tui started", zap.Int("idle_timeout_secs", cfg.Session.IdleTimeoutSecs))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	logger.Info("tui stopped")
	return nil
}
