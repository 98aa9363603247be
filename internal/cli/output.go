// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
)

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope every command writes in --json mode.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := userMessage(err)
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// HUMAN OUTPUT
// =============================================================================

// printer renders human-readable output with a renderer bound to one writer.
type printer struct {
	w io.Writer

	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	group   lipgloss.Style
}

func newPrinter(w io.Writer, profile termenv.Profile) *printer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return &printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(styles.Indigo),
		label:   r.NewStyle().Foreground(styles.TextSecondary),
		value:   r.NewStyle().Foreground(styles.TextPrimary),
		muted:   r.NewStyle().Foreground(styles.TextMuted),
		success: r.NewStyle().Foreground(styles.Emerald),
		failure: r.NewStyle().Foreground(styles.Rose),
		group:   r.NewStyle().Bold(true).Foreground(styles.Teal),
	}
}

func (p *printer) Title(s string) {
	fmt.Fprintln(p.w, p.title.Render(s))
}

// Field prints "label: value" with the label padded to width.
func (p *printer) Field(label, value string, width int) {
	pad := width - len(label)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(p.w, "  %s%s %s\n", p.label.Render(label+":"), strings.Repeat(" ", pad), p.value.Render(value))
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Render(styles.StatusIndicators.Success+" "+fmt.Sprintf(format, args...)))
}

func (p *printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.failure.Render(styles.StatusIndicators.Error+" "+fmt.Sprintf(format, args...)))
}

func (p *printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Line(s string) {
	fmt.Fprintln(p.w, s)
}
