// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"strings"

	"github.com/jeranaias/schoolhub-tui/internal/storage"
	"github.com/jeranaias/schoolhub-tui/internal/util"
)

// DefaultHistoryLimit is the number of sign-ins history shows by default.
const DefaultHistoryLimit = 20

const historyTimeFormat = "2006-01-02 15:04"

func runHistory(ctx context.Context, c *cmdContext) error {
	if err := c.args.allow("limit", "n"); err != nil {
		return err
	}
	if err := c.args.maxArgs(0); err != nil {
		return err
	}
	limitFlag := "limit"
	if c.args.Flag("limit") == "" && c.args.Flag("n") != "" {
		limitFlag = "n"
	}
	limit, err := c.args.FlagInt(limitFlag, DefaultHistoryLimit)
	if err != nil {
		return err
	}

	e, err := c.environment()
	if err != nil {
		return err
	}
	store, err := e.Store()
	if err != nil {
		return err
	}
	entries, err := store.ListHistory(ctx, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []storage.HistoryEntry{}
	}

	if c.args.JSON {
		return c.emit(entries)
	}
	if len(entries) == 0 {
		c.out.Muted("No sign-ins recorded.")
		return nil
	}

	cols := []int{16, 16, 14, 16, 12}
	c.out.Line(c.out.label.Render(historyRow(cols, "SIGNED IN", "USER", "ROLE", "SIGNED OUT", "REASON")))
	for _, h := range entries {
		out, reason := "active", h.LogoutReason
		if h.LogoutAt != nil {
			out = h.LogoutAt.Local().Format(historyTimeFormat)
		}
		c.out.Line(historyRow(cols,
			h.LoginAt.Local().Format(historyTimeFormat),
			h.Username,
			h.RoleCode,
			out,
			reason,
		))
	}
	return nil
}

func historyRow(widths []int, cells ...string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		b.WriteString(util.PadRight(cell, widths[i]))
		b.WriteString("  ")
	}
	return strings.TrimRight(b.String(), " ")
}
