// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, roles ...string) *Item {
	return &Item{Common: Common{ID: id, Title: id, AllowedRoles: roles}, URL: "/" + id, Breadcrumbs: true}
}

func collapse(id string, roles []string, children ...Node) *Collapse {
	return &Collapse{Common: Common{ID: id, Title: id, AllowedRoles: roles}, Children: children}
}

func group(id string, children ...Node) *Group {
	return &Group{Common: Common{ID: id, Title: id}, Children: children}
}

func ids(nodes []Node) []string {
	var out []string
	for _, e := range Flatten(nodes) {
		out = append(out, e.Node.Meta().ID)
	}
	return out
}

// =============================================================================
// ROLE RULE
// =============================================================================

func TestFilterTree_RoleMatch(t *testing.T) {
	tree := []Node{item("i1", "SCHOOL_ADMIN")}

	assert.Equal(t, []string{"i1"}, ids(FilterTree(tree, "SCHOOL_ADMIN")))
	assert.Empty(t, FilterTree(tree, "TEACHER"))
	assert.Empty(t, FilterTree(tree, NoRole))
}

func TestFilterTree_OpenItemVisibleToEveryone(t *testing.T) {
	tree := []Node{item("open")}

	for _, role := range []string{"SCHOOL_ADMIN", "TEACHER", "PARENT", NoRole} {
		assert.Equal(t, []string{"open"}, ids(FilterTree(tree, role)), "role %q", role)
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		role  string
		want  bool
	}{
		{"empty list, real role", nil, "TEACHER", true},
		{"empty list, no role", nil, NoRole, true},
		{"listed", []string{"TEACHER", "PARENT"}, "PARENT", true},
		{"not listed", []string{"TEACHER"}, "PARENT", false},
		{"no role fails closed", []string{"TEACHER"}, NoRole, false},
		{"case sensitive", []string{"TEACHER"}, "teacher", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Visible(item("x", tt.roles...), tt.role))
		})
	}

	assert.False(t, Visible(nil, "TEACHER"))
	assert.False(t, Visible((*Item)(nil), "TEACHER"))
}

// =============================================================================
// PRUNING
// =============================================================================

func TestFilterTree_PrunesEmptyContainers(t *testing.T) {
	tree := []Node{
		group("g1",
			collapse("c1", nil, item("i1", "SCHOOL_ADMIN")),
		),
		group("g2", item("i2")),
	}

	got := FilterTree(tree, "TEACHER")
	assert.Equal(t, []string{"g2", "i2"}, ids(got))
}

func TestFilterTree_CollapseRoleCheckedBeforeChildren(t *testing.T) {
	// The child is open, but the collapse itself denies the role.
	tree := []Node{group("g", collapse("c", []string{"SCHOOL_ADMIN"}, item("open")))}

	assert.Empty(t, FilterTree(tree, "TEACHER"))
	assert.Empty(t, FilterTree(tree, NoRole))
	assert.Equal(t, []string{"g", "c", "open"}, ids(FilterTree(tree, "SCHOOL_ADMIN")))
}

func TestFilterTree_GroupRolesIgnored(t *testing.T) {
	g := group("g", item("open"))
	g.AllowedRoles = []string{"SUPER_ADMIN"}

	assert.Equal(t, []string{"g", "open"}, ids(FilterTree([]Node{g}, "TEACHER")))
}

func TestFilterTree_NilChildrenTreatedAsEmpty(t *testing.T) {
	tree := []Node{
		&Group{Common: Common{ID: "g"}},
		&Collapse{Common: Common{ID: "c"}},
		nil,
		(*Item)(nil),
		item("i"),
	}

	assert.Equal(t, []string{"i"}, ids(FilterTree(tree, "TEACHER")))
}

func TestFilterTree_EmptyInput(t *testing.T) {
	got := FilterTree(nil, "TEACHER")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterTree_PreservesOrderAndNesting(t *testing.T) {
	tree := []Node{
		group("g1",
			item("a"),
			item("b", "PARENT"),
			collapse("c", nil, item("d"), item("e", "TEACHER"), item("f")),
		),
		group("g2", item("h")),
	}

	got := FilterTree(tree, "TEACHER")
	entries := Flatten(got)

	var shape []string
	for _, e := range entries {
		shape = append(shape, string(rune('0'+e.Depth))+":"+e.Node.Meta().ID)
	}
	assert.Equal(t, []string{"0:g1", "1:a", "1:c", "2:d", "2:e", "2:f", "0:g2", "1:h"}, shape)
}

// =============================================================================
// PURITY
// =============================================================================

func TestFilterTree_DoesNotMutateInput(t *testing.T) {
	tree := []Node{
		group("g1",
			collapse("c1", []string{"SCHOOL_ADMIN"}, item("i1", "SCHOOL_ADMIN"), item("i2", "TEACHER")),
			item("i3"),
		),
	}
	before := Clone(tree)
	g1 := tree[0].(*Group)
	c1 := g1.Children[0].(*Collapse)

	first := FilterTree(tree, "SCHOOL_ADMIN")
	second := FilterTree(tree, "SCHOOL_ADMIN")

	assert.Equal(t, first, second)
	assert.Equal(t, before, tree)
	assert.Same(t, g1, tree[0])
	assert.Same(t, c1, g1.Children[0])
	assert.Len(t, c1.Children, 2)
}

func TestFilterTree_OutputSharesNothing(t *testing.T) {
	tree := []Node{group("g", item("i", "TEACHER"))}

	got := FilterTree(tree, "TEACHER")
	require.Len(t, got, 1)

	gotGroup := got[0].(*Group)
	gotItem := gotGroup.Children[0].(*Item)
	assert.NotSame(t, tree[0], got[0])
	assert.NotSame(t, tree[0].(*Group).Children[0], gotItem)

	gotItem.AllowedRoles[0] = "CHANGED"
	gotItem.Title = "changed"
	assert.Equal(t, "TEACHER", tree[0].(*Group).Children[0].(*Item).AllowedRoles[0])
	assert.Equal(t, "i", tree[0].(*Group).Children[0].(*Item).Title)
}

// =============================================================================
// END TO END
// =============================================================================

func TestFilterTree_Scenario(t *testing.T) {
	tree := []Node{
		&Group{
			Common: Common{ID: "g1"},
			Children: []Node{
				&Collapse{
					Common: Common{ID: "c1", AllowedRoles: []string{"SCHOOL_ADMIN"}},
					Children: []Node{
						&Item{Common: Common{ID: "i1", AllowedRoles: []string{"SCHOOL_ADMIN"}}},
					},
				},
			},
		},
	}

	teacher := FilterTree(tree, "TEACHER")
	require.NotNil(t, teacher)
	assert.Empty(t, teacher)

	admin := FilterTree(tree, "SCHOOL_ADMIN")
	assert.Equal(t, tree, admin)
}

func TestDefault_FiltersPerRole(t *testing.T) {
	tree := Default()

	parent := ids(FilterTree(tree, "PARENT"))
	assert.Contains(t, parent, "attendance")
	assert.Contains(t, parent, "fee-statements")
	assert.NotContains(t, parent, "fee-collection")
	assert.NotContains(t, parent, "administration")
	assert.NotContains(t, parent, "people")

	accountant := ids(FilterTree(tree, "ACCOUNTANT"))
	assert.Contains(t, accountant, "salary")
	assert.NotContains(t, accountant, "academics", "no academic entries admit accountants")

	anonymous := ids(FilterTree(tree, NoRole))
	assert.Equal(t, []string{"navigation", "dashboard", "announcements", "help", "documentation"}, anonymous)
}
