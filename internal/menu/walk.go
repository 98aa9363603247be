// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package menu

// Entry is a node with its depth in the tree.
type Entry struct {
	Node  Node
	Depth int
}

// Walk visits nodes depth-first. If fn returns false the node's children are
// skipped.
func Walk(nodes []Node, fn func(n Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []Node, depth int, fn func(Node, int) bool) {
	for _, n := range nodes {
		if isNil(n) {
			continue
		}
		if fn(n, depth) {
			walk(Children(n), depth+1, fn)
		}
	}
}

// Find returns the first node with the given ID, or nil.
func Find(nodes []Node, id string) Node {
	var found Node
	Walk(nodes, func(n Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Meta().ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Flatten lists every node depth-first with its depth.
func Flatten(nodes []Node) []Entry {
	var entries []Entry
	Walk(nodes, func(n Node, depth int) bool {
		entries = append(entries, Entry{Node: n, Depth: depth})
		return true
	})
	return entries
}

// Count returns the number of items (leaves) in the tree.
func Count(nodes []Node) int {
	count := 0
	Walk(nodes, func(n Node, _ int) bool {
		if n.Kind() == KindItem {
			count++
		}
		return true
	})
	return count
}

// Clone returns a deep copy of nodes.
func Clone(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		switch v := n.(type) {
		case *Item:
			if v != nil {
				out = append(out, v.clone())
			}
		case *Collapse:
			if v != nil {
				out = append(out, &Collapse{Common: v.Common.clone(), Children: Clone(v.Children)})
			}
		case *Group:
			if v != nil {
				out = append(out, &Group{Common: v.Common.clone(), URL: v.URL, Parent: v.Parent, Children: Clone(v.Children)})
			}
		}
	}
	return out
}

func (c Common) clone() Common {
	if c.AllowedRoles != nil {
		c.AllowedRoles = append([]string(nil), c.AllowedRoles...)
	}
	return c
}

func (i *Item) clone() *Item {
	c := *i
	c.Common = i.Common.clone()
	return &c
}
