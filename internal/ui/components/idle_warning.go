// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/schoolhub-tui/internal/idle"
	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
	"github.com/jeranaias/schoolhub-tui/internal/util"
)

// =============================================================================
// IDLE WARNING OVERLAY
// =============================================================================

// IdleWarning shows the inactivity countdown while the idle monitor is in
// WARNING, and a spinner while the logout runs.
type IdleWarning struct {
	phase     idle.Phase
	remaining int

	spinner spinner.Model

	width  int
	height int
}

// NewIdleWarning creates a hidden overlay.
func NewIdleWarning() IdleWarning {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	return IdleWarning{phase: idle.PhaseActive, spinner: s}
}

// SetSize sets the overlay dimensions.
func (o *IdleWarning) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// SetState mirrors a monitor snapshot. Entering LOGGING_OUT starts the
// spinner.
func (o *IdleWarning) SetState(s idle.State) tea.Cmd {
	prev := o.phase
	o.phase = s.Phase
	o.remaining = s.RemainingSeconds
	if s.Phase == idle.PhaseLoggingOut && prev != idle.PhaseLoggingOut {
		return o.spinner.Tick
	}
	return nil
}

// Visible reports whether the overlay covers the screen.
func (o IdleWarning) Visible() bool {
	return o.phase == idle.PhaseWarning || o.phase == idle.PhaseLoggingOut
}

// LoggingOut reports whether a logout is in flight.
func (o IdleWarning) LoggingOut() bool {
	return o.phase == idle.PhaseLoggingOut
}

// Remaining returns the countdown in seconds.
func (o IdleWarning) Remaining() int {
	return o.remaining
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update advances the spinner while logging out.
func (o IdleWarning) Update(msg tea.Msg) (IdleWarning, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height
	case spinner.TickMsg:
		if o.phase != idle.PhaseLoggingOut {
			return o, nil
		}
		var cmd tea.Cmd
		o.spinner, cmd = o.spinner.Update(msg)
		return o, cmd
	}
	return o, nil
}

// View renders the overlay, or "" when hidden.
func (o IdleWarning) View() string {
	switch o.phase {
	case idle.PhaseWarning:
		return o.viewWarning()
	case idle.PhaseLoggingOut:
		return o.viewLoggingOut()
	}
	return ""
}

// =============================================================================
// RENDER METHODS
// =============================================================================

func (o IdleWarning) viewWarning() string {
	maxWidth := o.boxWidth()

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 6).
		Align(lipgloss.Center)
	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true)

	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(styles.StatusIndicators.Warning+" Are you still there?"),
		"",
		msgStyle.Render("Session will expire in "+timeStyle.Render(util.FormatCountdown(o.remaining))),
		"",
		hintStyle.Render("Press any key to stay signed in"),
	)

	return o.place(content, styles.Amber, maxWidth)
}

func (o IdleWarning) viewLoggingOut() string {
	maxWidth := o.boxWidth()

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Rose).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(styles.StatusIndicators.Error+" Session expired"),
		"",
		msgStyle.Render(o.spinner.View()+" Signing out..."),
	)

	return o.place(content, styles.Rose, maxWidth)
}

func (o IdleWarning) boxWidth() int {
	width := o.width
	if width == 0 {
		width = 60
	}
	maxWidth := width - 8
	if maxWidth < 36 {
		maxWidth = 36
	}
	if maxWidth > 56 {
		maxWidth = 56
	}
	return maxWidth
}

func (o IdleWarning) place(content string, border lipgloss.AdaptiveColor, maxWidth int) string {
	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}
