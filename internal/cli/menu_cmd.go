// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/roles"
	"github.com/jeranaias/schoolhub-tui/internal/storage"
	"github.com/jeranaias/schoolhub-tui/internal/util"
)

// menuOutput is the JSON form of the menu command.
type menuOutput struct {
	Role     string          `json:"role"`
	RoleName string          `json:"role_name"`
	Source   string          `json:"source"`
	Items    int             `json:"items"`
	Menu     []menu.Document `json:"menu"`
}

func runMenu(ctx context.Context, c *cmdContext) error {
	if err := c.args.allow("role", "file"); err != nil {
		return err
	}
	if err := c.args.maxArgs(0); err != nil {
		return err
	}

	e, err := c.environment()
	if err != nil {
		return err
	}

	role, err := c.menuRole(ctx, e)
	if err != nil {
		return err
	}

	file := c.args.Flag("file")
	if file == "" {
		file = e.cfg.Menu.File
	}
	nodes, err := menu.Load(file)
	if err != nil {
		return &ConfigError{Path: file, Err: err}
	}
	source := file
	if source == "" {
		source = "built-in"
	}

	visible := menu.FilterTree(nodes, role)
	if c.args.JSON {
		return c.emit(menuOutput{
			Role:     role,
			RoleName: roles.DisplayName(role),
			Source:   source,
			Items:    menu.Count(visible),
			Menu:     menu.ToDocuments(visible),
		})
	}

	c.out.Title("Menu for " + roles.DisplayName(role))
	if len(visible) == 0 {
		c.out.Muted("No menu entries are available for this role.")
		return nil
	}
	c.printTree(visible, TerminalWidth(c.io.Out))
	return nil
}

// menuRole picks the role to filter by: --role when given, otherwise the
// stored session's role, otherwise NoRole. Codes are normalised the same way
// the session and menu definitions normalise them.
func (c *cmdContext) menuRole(ctx context.Context, e *env) (string, error) {
	if c.args.p != nil && c.args.p.HasFlag("role") {
		role := roles.Normalize(c.args.Flag("role"))
		if role != menu.NoRole {
			if _, known := roles.Parse(role); !known {
				c.errOut.Muted("warning: %q is not a known role", role)
			}
		}
		return role, nil
	}

	store, err := e.Store()
	if err != nil {
		return "", err
	}
	rec, err := store.LoadSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return menu.NoRole, nil
	}
	if err != nil {
		return "", err
	}
	return roles.Normalize(rec.RoleCode), nil
}

// urlColumn is where item URLs start in tree output.
const urlColumn = 32

// printTree writes the tree with two spaces of indent per level. Groups are
// headings, collapses are prefixed with "+" and items with "-".
func (c *cmdContext) printTree(nodes []menu.Node, width int) {
	menu.Walk(nodes, func(n menu.Node, depth int) bool {
		meta := n.Meta()
		indent := strings.Repeat("  ", depth)
		switch v := n.(type) {
		case *menu.Group:
			c.out.Line(c.out.group.Render(indent + strings.ToUpper(meta.Title)))
		case *menu.Collapse:
			c.out.Line(indent + "+ " + meta.Title)
		case *menu.Item:
			label := indent + "- " + meta.Title
			if v.External {
				label += " (external)"
			}
			if v.URL == "" {
				c.out.Line(util.TruncateWidth(label, width))
				break
			}
			if util.StringWidth(label) < urlColumn {
				label = util.PadRight(label, urlColumn)
			}
			if plain := label + " " + v.URL; util.StringWidth(plain) > width {
				c.out.Line(util.TruncateWidth(plain, width))
				break
			}
			c.out.Line(label + " " + c.out.muted.Render(v.URL))
		}
		return true
	})
}
