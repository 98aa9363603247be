// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the colour palette and lipgloss styles for the
// schoolhub TUI.
//
// Colours are lipgloss.AdaptiveColor values so one palette serves light and
// dark terminals. The theme mode comes from the [ui] theme setting: "auto"
// asks the terminal via termenv, "dark" and "light" force a choice.
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	header := theme.HeaderBrand.Render("schoolhub")
//
// Every coloured status line carries an ASCII marker ([OK], [X], [!], [i])
// so it reads correctly without colour.
package styles
