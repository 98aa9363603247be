// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/schoolhub-tui/internal/idle"
	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/session"
)

// IdleStateMsg carries a snapshot from the idle monitor's observer.
type IdleStateMsg struct {
	State idle.State
}

// SessionChangedMsg is sent after every login, restore and logout. Session is
// nil once signed out.
type SessionChangedMsg struct {
	Session *session.Session
}

// MenuReloadedMsg is sent when the watched menu file changes.
type MenuReloadedMsg struct {
	Nodes []menu.Node
	Err   error
}

type loginDoneMsg struct {
	session *session.Session
	err     error
}

type logoutDoneMsg struct {
	err error
}
