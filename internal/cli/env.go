// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/schoolhub-tui/internal/api"
	"github.com/jeranaias/schoolhub-tui/internal/audit"
	"github.com/jeranaias/schoolhub-tui/internal/config"
	"github.com/jeranaias/schoolhub-tui/internal/logging"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/storage"
)

// env holds the services a command needs. Fields are opened lazily so that
// offline commands never touch the network client or the audit log.
type env struct {
	cfg    *config.Config
	logger *zap.Logger

	store    *storage.Store
	audit    *audit.Logger
	client   *api.Client
	sessions *session.Manager

	closers []func()
}

// loadConfig reads the configuration from path, or from the default
// location when path is empty.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// newEnv builds the logger for cfg. verbose forces debug level.
func newEnv(cfg *config.Config, verbose bool) (*env, error) {
	opts, err := logging.FromConfig(cfg)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if verbose {
		opts.Level = "debug"
	}
	logger, cleanup, err := logging.New(opts)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return &env{cfg: cfg, logger: logger, closers: []func(){cleanup}}, nil
}

// Close releases everything the env opened, newest first.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// Store opens the session store.
func (e *env) Store() (*storage.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	path, err := e.cfg.StorePath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	s, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	e.store = s
	e.closers = append(e.closers, func() {
		if err := s.Close(); err != nil {
			e.logger.Warn("failed to close session store", zap.Error(err))
		}
	})
	return s, nil
}

// Audit opens the audit log. It returns nil when auditing is disabled; a nil
// logger discards events.
func (e *env) Audit() (*audit.Logger, error) {
	if e.audit != nil || !e.cfg.Audit.Enabled {
		return e.audit, nil
	}
	path, err := e.cfg.AuditPath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	l, err := audit.Open(path)
	if err != nil {
		return nil, err
	}
	if e.cfg.Audit.MaxSizeMB > 0 {
		l.SetMaxSize(int64(e.cfg.Audit.MaxSizeMB) * 1024 * 1024)
	}
	e.audit = l
	e.closers = append(e.closers, func() {
		if err := l.Close(); err != nil {
			e.logger.Warn("failed to close audit log", zap.Error(err))
		}
	})
	return l, nil
}

// Client returns the backend client.
func (e *env) Client() *api.Client {
	if e.client == nil {
		e.client = api.NewClient(e.cfg.API.BaseURL,
			api.WithTimeout(e.cfg.RequestTimeout()),
			api.WithRateLimit(e.cfg.API.RequestsPerSecond),
			api.WithLogger(e.logger.Named("api")),
		)
	}
	return e.client
}

// Sessions returns a session manager backed by the store, the audit log and
// the backend client.
func (e *env) Sessions() (*session.Manager, error) {
	if e.sessions != nil {
		return e.sessions, nil
	}
	store, err := e.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	auditLog, err := e.Audit()
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	e.sessions = session.NewManager(e.Client(),
		session.WithStore(store),
		session.WithAudit(auditLog),
		session.WithLogger(e.logger.Named("session")),
	)
	return e.sessions, nil
}
