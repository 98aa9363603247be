// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
	"github.com/jeranaias/schoolhub-tui/internal/util"
)

// MenuSelectedMsg is emitted when the user opens a menu item.
type MenuSelectedMsg struct {
	Item *menu.Item
}

type menuRow struct {
	node  menu.Node
	depth int
}

func (r menuRow) selectable() bool {
	return r.node.Kind() != menu.KindGroup
}

// =============================================================================
// MENU VIEW
// =============================================================================

// MenuView renders an already filtered menu tree. Groups are headings,
// collapses expand and fold in place, items are opened with Select.
type MenuView struct {
	theme *styles.Theme
	keys  KeyMap

	nodes    []menu.Node
	rows     []menuRow
	expanded map[string]bool

	cursor int
	offset int

	width  int
	height int
}

// NewMenuView creates an empty menu view.
func NewMenuView(theme *styles.Theme, keys KeyMap) MenuView {
	return MenuView{
		theme:    theme,
		keys:     keys,
		expanded: make(map[string]bool),
		cursor:   -1,
	}
}

// SetSize sets the area the menu may draw in.
func (v *MenuView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.ensureVisible()
}

// SetNodes replaces the tree. The cursor stays on the same entry when it is
// still present and expanded collapses stay expanded.
func (v *MenuView) SetNodes(nodes []menu.Node) {
	selectedID := ""
	if n := v.Selected(); n != nil {
		selectedID = n.Meta().ID
	}

	v.nodes = nodes
	v.rebuild()

	v.cursor = -1
	if selectedID != "" {
		for i, r := range v.rows {
			if r.node.Meta().ID == selectedID {
				v.cursor = i
				break
			}
		}
	}
	if v.cursor < 0 {
		v.cursor = v.nextSelectable(-1, 1)
	}
	v.offset = 0
	v.ensureVisible()
}

// Selected returns the node under the cursor, or nil.
func (v MenuView) Selected() menu.Node {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return nil
	}
	return v.rows[v.cursor].node
}

// Len returns the number of rendered rows.
func (v MenuView) Len() int {
	return len(v.rows)
}

// MoveDown moves the cursor to the next selectable row.
func (v *MenuView) MoveDown() {
	if next := v.nextSelectable(v.cursor, 1); next >= 0 {
		v.cursor = next
		v.ensureVisible()
	}
}

// MoveUp moves the cursor to the previous selectable row.
func (v *MenuView) MoveUp() {
	if prev := v.nextSelectable(v.cursor, -1); prev >= 0 {
		v.cursor = prev
		v.ensureVisible()
	}
}

// Activate toggles the collapse under the cursor or opens the item.
func (v *MenuView) Activate() tea.Cmd {
	switch n := v.Selected().(type) {
	case *menu.Collapse:
		v.expanded[n.ID] = !v.expanded[n.ID]
		v.rebuild()
		v.ensureVisible()
	case *menu.Item:
		return func() tea.Msg { return MenuSelectedMsg{Item: n} }
	}
	return nil
}

// Update handles navigation keys.
func (v MenuView) Update(msg tea.Msg) (MenuView, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}

	switch {
	case key.Matches(km, v.keys.Up):
		v.MoveUp()
	case key.Matches(km, v.keys.Down):
		v.MoveDown()
	case key.Matches(km, v.keys.Home):
		if first := v.nextSelectable(-1, 1); first >= 0 {
			v.cursor = first
			v.ensureVisible()
		}
	case key.Matches(km, v.keys.End):
		if last := v.nextSelectable(len(v.rows), -1); last >= 0 {
			v.cursor = last
			v.ensureVisible()
		}
	case key.Matches(km, v.keys.Select):
		return v, v.Activate()
	}
	return v, nil
}

// View renders the visible window of rows.
func (v MenuView) View() string {
	if len(v.rows) == 0 {
		return v.theme.MenuEmpty.Render("No menu entries are available for your role.")
	}

	end := len(v.rows)
	if v.height > 0 && v.offset+v.height < end {
		end = v.offset + v.height
	}

	lines := make([]string, 0, end-v.offset)
	for i := v.offset; i < end; i++ {
		lines = append(lines, v.renderRow(i))
	}
	return strings.Join(lines, "\n")
}

func (v MenuView) renderRow(i int) string {
	r := v.rows[i]
	indent := strings.Repeat("  ", r.depth)

	var marker, label string
	switch n := r.node.(type) {
	case *menu.Group:
		label = strings.ToUpper(n.Title)
	case *menu.Collapse:
		marker = "+ "
		if v.expanded[n.ID] {
			marker = "- "
		}
		label = n.Title
	case *menu.Item:
		marker = "  "
		label = n.Title
		if n.External {
			label += " (external)"
		}
	}

	text := indent + marker + label
	if v.width > 0 {
		text = util.TruncateWidth(text, v.width)
	}

	switch {
	case i == v.cursor:
		if v.width > 0 {
			text = util.PadRight(text, v.width)
		}
		return v.theme.MenuSelected.Render(text)
	case r.node.Kind() == menu.KindGroup:
		return v.theme.MenuGroup.Render(text)
	case r.node.Kind() == menu.KindCollapse:
		return v.theme.MenuCollapse.Render(text)
	}
	if it, ok := r.node.(*menu.Item); ok && it.External {
		return v.theme.MenuExternal.Render(text)
	}
	return v.theme.MenuItem.Render(text)
}

// =============================================================================
// HELPERS
// =============================================================================

func (v *MenuView) rebuild() {
	v.rows = nil
	v.appendRows(v.nodes, 0)
	if v.cursor >= len(v.rows) {
		v.cursor = v.nextSelectable(len(v.rows), -1)
	}
}

func (v *MenuView) appendRows(nodes []menu.Node, depth int) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		v.rows = append(v.rows, menuRow{node: n, depth: depth})
		switch n := n.(type) {
		case *menu.Group:
			v.appendRows(n.Children, depth+1)
		case *menu.Collapse:
			if v.expanded[n.ID] {
				v.appendRows(n.Children, depth+1)
			}
		}
	}
}

// nextSelectable walks from start in direction dir and returns the first
// selectable row index, or -1.
func (v MenuView) nextSelectable(start, dir int) int {
	for i := start + dir; i >= 0 && i < len(v.rows); i += dir {
		if v.rows[i].selectable() {
			return i
		}
	}
	return -1
}

func (v *MenuView) ensureVisible() {
	if v.height <= 0 || v.cursor < 0 {
		return
	}
	if v.cursor < v.offset {
		v.offset = v.cursor
		// Keep the group heading above the first entry in view.
		if v.offset > 0 && v.rows[v.offset-1].node.Kind() == menu.KindGroup {
			v.offset--
		}
	}
	if v.cursor >= v.offset+v.height {
		v.offset = v.cursor - v.height + 1
	}
}
