// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the schoolhub bubbletea program.
//
// The model has two screens. The login screen signs the user in through the
// session manager; the home screen shows a header with the user, role and
// academic year above the navigation menu filtered for that role.
//
// Every key press, mouse click, wheel turn and (rate limited) mouse motion on
// the home screen is reported to the idle monitor. Monitor snapshots, session
// changes and menu reloads happen on other goroutines; they reach the model as
// messages through a Bridge that forwards them, in order, to
// tea.Program.Send.
package app
