// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package menu models the navigation tree and filters it by role.
package menu

// NoRole is the role of an unauthenticated user or one whose role has not
// loaded yet. It never satisfies a non-empty allow-list.
const NoRole = ""

// Kind identifies a node variant.
type Kind int

const (
	KindGroup Kind = iota
	KindCollapse
	KindItem
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindCollapse:
		return "collapse"
	case KindItem:
		return "item"
	default:
		return "unknown"
	}
}

// Common holds the fields shared by every node.
type Common struct {
	ID    string
	Title string
	Icon  string
	// AllowedRoles restricts visibility. Empty means visible to everyone,
	// including NoRole.
	AllowedRoles []string
}

// Meta returns a copy of the shared fields.
func (c *Common) Meta() Common { return *c }

func (c *Common) isNode() {}

// Node is one entry of the menu tree: *Group, *Collapse or *Item.
type Node interface {
	Kind() Kind
	Meta() Common
	isNode()
}

// Group is a top-level section heading. The filter ignores its own
// AllowedRoles and keeps it only while it has visible children.
type Group struct {
	Common
	URL string
	// Parent marks a group rendered as a single navigable link.
	Parent   bool
	Children []Node
}

// Kind implements Node.
func (*Group) Kind() Kind { return KindGroup }

// Collapse is an expandable sub-menu.
type Collapse struct {
	Common
	Children []Node
}

// Kind implements Node.
func (*Collapse) Kind() Kind { return KindCollapse }

// Item is a navigable leaf.
type Item struct {
	Common
	URL         string
	Breadcrumbs bool
	External    bool
	Target      bool
}

// Kind implements Node.
func (*Item) Kind() Kind { return KindItem }

// Children returns the children of a group or collapse, nil for items.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Group:
		if v != nil {
			return v.Children
		}
	case *Collapse:
		if v != nil {
			return v.Children
		}
	}
	return nil
}
