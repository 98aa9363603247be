// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the signed-in user's session: who they are, their
// bearer token and the academic year they are working in.
//
// A Manager is the single source of truth for that state. It is built once
// at startup and handed to whatever needs it; nothing reads a global.
//
// # Usage
//
//	mgr := session.NewManager(client,
//	    session.WithStore(store),
//	    session.WithAudit(auditLog),
//	    session.WithLogger(logger),
//	)
//
//	if _, err := mgr.Restore(ctx); err != nil {
//	    s, err := mgr.Login(ctx, username, password)
//	    ...
//	}
//
//	stop := mgr.OnChange(func(s *session.Session) {
//	    // s is nil after logout
//	})
//	defer stop()
//
// # Logout
//
// Logout calls the backend first. When that fails the local session is kept
// so the caller can retry; a 401 from the backend is treated as already
// signed out.
package session
