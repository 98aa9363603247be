// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package menu

import (
	_ "embed"
	"sync"
)

//go:embed default_menu.toml
var defaultMenu []byte

var (
	defaultOnce  sync.Once
	defaultNodes []Node
)

// Default returns a copy of the built-in school menu.
func Default() []Node {
	defaultOnce.Do(func() {
		nodes, err := Decode(defaultMenu, FormatTOML)
		if err != nil {
			panic("menu: embedded default menu is invalid: " + err.Error())
		}
		defaultNodes = nodes
	})
	return Clone(defaultNodes)
}

// Load returns the menu at path, or the built-in menu when path is empty.
func Load(path string) ([]Node, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
