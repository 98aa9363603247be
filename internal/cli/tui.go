// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/ui/app"
	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
)

// runTUI resumes the stored session when it is still valid and starts the
// terminal UI on the home or login screen accordingly.
func runTUI(ctx context.Context, c *cmdContext) error {
	if err := c.args.allow(); err != nil {
		return err
	}
	if err := c.args.maxArgs(0); err != nil {
		return err
	}
	if c.args.JSON {
		return Usagef("tui does not support --json")
	}
	if !c.io.Interactive || !isTerminalWriter(c.io.Out) {
		return ErrTTYRequired
	}

	e, err := c.environment()
	if err != nil {
		return err
	}
	sessions, err := e.Sessions()
	if err != nil {
		return err
	}

	restoreCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout())
	_, err = sessions.Restore(restoreCtx)
	cancel()
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		e.logger.Info("starting signed out", zap.Error(err))
	default:
		// The stored session survives; the user signs in again from the UI.
		e.logger.Warn("could not resume stored session", zap.Error(err))
	}

	nodes, err := menu.Load(e.cfg.Menu.File)
	if err != nil {
		return &ConfigError{Path: e.cfg.Menu.File, Err: err}
	}

	theme := styles.NewTheme(e.cfg.UI.Theme)
	if c.args.NoColor || !ColorsEnabled(c.io, c.io.Out, false) {
		theme = styles.NewThemeWithProfile(e.cfg.UI.Theme, termenv.Ascii)
	}

	return app.Run(ctx, app.Deps{
		Config:   e.cfg,
		Sessions: sessions,
		Menu:     nodes,
		Theme:    theme,
		Logger:   e.logger,
	})
}
