// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styles used by the TUI.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderUser  lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// MENU
	// ==========================================================================

	MenuGroup    lipgloss.Style
	MenuCollapse lipgloss.Style
	MenuItem     lipgloss.Style
	MenuSelected lipgloss.Style
	MenuExternal lipgloss.Style
	MenuEmpty    lipgloss.Style

	// ==========================================================================
	// LOGIN
	// ==========================================================================

	LoginBox   lipgloss.Style
	LoginTitle lipgloss.Style
	InputLabel lipgloss.Style
	InputFocus lipgloss.Style

	// ==========================================================================
	// STATUS
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	ErrorText    lipgloss.Style
	HintText     lipgloss.Style
}

// NewTheme creates a theme for mode. ModeAuto asks the terminal for its
// background colour; anything else forces light or dark.
func NewTheme(mode string) *Theme {
	return newTheme(mode, termenv.ColorProfile(), termenv.HasDarkBackground)
}

// NewThemeWithProfile creates a theme without probing the terminal. Tests and
// non-interactive output use it.
func NewThemeWithProfile(mode string, profile termenv.Profile) *Theme {
	return newTheme(mode, profile, func() bool { return true })
}

func newTheme(mode string, profile termenv.Profile, detectDark func() bool) *Theme {
	var isDark bool
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = detectDark()
	}

	lipgloss.SetColorProfile(profile)
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.HeaderUser = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.MenuGroup = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.MenuCollapse = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.MenuItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.MenuSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo).
		Background(SelectionBg)

	t.MenuExternal = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.MenuEmpty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Indigo).
		Padding(1, 3)

	t.LoginTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.InputLabel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.InputFocus = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	t.HintText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}
