// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the bubbletea components of the schoolhub TUI.
//
//   - LoginForm: username and password fields
//   - MenuView: the role-filtered navigation tree with a cursor
//   - IdleWarning: the inactivity countdown overlay
//
// Components are value types with Update/View methods in the bubbletea
// style. They never talk to the network or the idle monitor themselves; the
// app model turns their messages into calls.
package components
