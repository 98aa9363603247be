// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package menu

// Visible reports whether role passes the node's own allow-list.
func Visible(n Node, role string) bool {
	if isNil(n) {
		return false
	}
	return allowed(n.Meta().AllowedRoles, role)
}

func allowed(roles []string, role string) bool {
	if len(roles) == 0 {
		return true
	}
	if role == NoRole {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// FilterTree returns the subset of nodes visible to role.
//
// Items are kept when their allow-list admits the role. A collapse is checked
// against its own allow-list before its children are considered; a group's
// allow-list is ignored. Containers left with no children are dropped. The
// result is freshly allocated and never shares nodes or slices with the
// input, which is not modified. It is never nil.
func FilterTree(nodes []Node, role string) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		switch v := n.(type) {
		case *Item:
			if v == nil || !allowed(v.AllowedRoles, role) {
				continue
			}
			out = append(out, v.clone())

		case *Collapse:
			if v == nil || !allowed(v.AllowedRoles, role) {
				continue
			}
			children := FilterTree(v.Children, role)
			if len(children) == 0 {
				continue
			}
			c := &Collapse{Common: v.Common.clone(), Children: children}
			out = append(out, c)

		case *Group:
			if v == nil {
				continue
			}
			children := FilterTree(v.Children, role)
			if len(children) == 0 {
				continue
			}
			g := &Group{Common: v.Common.clone(), URL: v.URL, Parent: v.Parent, Children: children}
			out = append(out, g)
		}
	}
	return out
}

func isNil(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *Group:
		return v == nil
	case *Collapse:
		return v == nil
	case *Item:
		return v == nil
	}
	return false
}
