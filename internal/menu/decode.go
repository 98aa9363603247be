// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/schoolhub-tui/internal/roles"
)

// Format is a menu definition encoding.
type Format int

const (
	FormatTOML Format = iota
	FormatJSON
)

// ErrInvalidMenu is wrapped by every definition error.
var ErrInvalidMenu = errors.New("invalid menu definition")

// DecodeError locates a definition error in the tree.
type DecodeError struct {
	Path string
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("menu %s: %s", e.Path, e.Msg)
}

// Unwrap lets errors.Is match ErrInvalidMenu.
func (e *DecodeError) Unwrap() error { return ErrInvalidMenu }

// FormatFromPath picks a format from the file extension. Anything other than
// .json is treated as TOML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatTOML
}

// LoadFile reads and decodes a menu definition file.
func LoadFile(path string) ([]Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}
	nodes, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nodes, nil
}

// Decode parses a menu definition. The document holds a top-level "items"
// list; each entry has a "type" of group, collapse or item. A container
// whose children are missing or not a list decodes with no children.
func Decode(data []byte, format Format) ([]Node, error) {
	var doc map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse menu JSON: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse menu TOML: %w", err)
		}
	}

	d := &decoder{seen: make(map[string]string)}
	raw, ok := asList(doc["items"])
	if !ok {
		return nil, &DecodeError{Path: "items", Msg: "missing top-level items list"}
	}
	return d.list(raw, "items")
}

type decoder struct {
	seen map[string]string
}

func (d *decoder) list(raw []any, path string) ([]Node, error) {
	nodes := make([]Node, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &DecodeError{Path: fmt.Sprintf("%s[%d]", path, i), Msg: "entry is not a table"}
		}
		n, err := d.node(m, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (d *decoder) node(m map[string]any, path string) (Node, error) {
	common, err := d.common(m, path)
	if err != nil {
		return nil, err
	}

	kind := strings.ToLower(stringField(m, "type"))
	switch kind {
	case "item":
		return &Item{
			Common:      common,
			URL:         stringField(m, "url"),
			Breadcrumbs: boolField(m, "breadcrumbs", true),
			External:    boolField(m, "external", false),
			Target:      boolField(m, "target", false),
		}, nil

	case "collapse":
		children, err := d.children(m, path)
		if err != nil {
			return nil, err
		}
		return &Collapse{Common: common, Children: children}, nil

	case "group":
		children, err := d.children(m, path)
		if err != nil {
			return nil, err
		}
		return &Group{
			Common:   common,
			URL:      stringField(m, "url"),
			Parent:   boolField(m, "parent", false),
			Children: children,
		}, nil

	case "":
		return nil, &DecodeError{Path: path, Msg: "type is required"}
	default:
		return nil, &DecodeError{Path: path, Msg: fmt.Sprintf("unknown type %q", kind)}
	}
}

func (d *decoder) common(m map[string]any, path string) (Common, error) {
	id := stringField(m, "id")
	if id == "" {
		return Common{}, &DecodeError{Path: path, Msg: "id is required"}
	}
	if prev, dup := d.seen[id]; dup {
		return Common{}, &DecodeError{Path: path, Msg: fmt.Sprintf("duplicate id %q (first at %s)", id, prev)}
	}
	d.seen[id] = path

	c := Common{
		ID:    id,
		Title: stringField(m, "title"),
		Icon:  stringField(m, "icon"),
	}

	if v, present := m["roles"]; present {
		list, ok := asList(v)
		if !ok {
			return Common{}, &DecodeError{Path: path + ".roles", Msg: "must be a list of role codes"}
		}
		for _, r := range list {
			s, ok := r.(string)
			if !ok {
				return Common{}, &DecodeError{Path: path + ".roles", Msg: "must be a list of role codes"}
			}
			c.AllowedRoles = append(c.AllowedRoles, roles.Normalize(s))
		}
	}
	return c, nil
}

// children decodes a container's children. Missing or non-list values yield
// an empty slice.
func (d *decoder) children(m map[string]any, path string) ([]Node, error) {
	list, ok := asList(m["children"])
	if !ok {
		return []Node{}, nil
	}
	return d.list(list, path+".children")
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func boolField(m map[string]any, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

// =============================================================================
// ENCODING
// =============================================================================

// Document is the serialisable form of a menu tree, used by the CLI's JSON
// output.
type Document struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	URL         string     `json:"url,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	Breadcrumbs *bool      `json:"breadcrumbs,omitempty"`
	External    bool       `json:"external,omitempty"`
	Target      bool       `json:"target,omitempty"`
	Parent      bool       `json:"parent,omitempty"`
	Children    []Document `json:"children,omitempty"`
}

// ToDocuments converts a tree into its serialisable form.
func ToDocuments(nodes []Node) []Document {
	docs := make([]Document, 0, len(nodes))
	for _, n := range nodes {
		if isNil(n) {
			continue
		}
		meta := n.Meta()
		doc := Document{
			ID:    meta.ID,
			Type:  n.Kind().String(),
			Title: meta.Title,
			Icon:  meta.Icon,
			Roles: meta.AllowedRoles,
		}
		switch v := n.(type) {
		case *Item:
			b := v.Breadcrumbs
			doc.URL, doc.Breadcrumbs, doc.External, doc.Target = v.URL, &b, v.External, v.Target
		case *Group:
			doc.URL, doc.Parent = v.URL, v.Parent
			doc.Children = ToDocuments(v.Children)
		case *Collapse:
			doc.Children = ToDocuments(v.Children)
		}
		docs = append(docs, doc)
	}
	return docs
}
