// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/schoolhub-tui/internal/config"
)

func runConfig(_ context.Context, c *cmdContext) error {
	if err := c.args.allow(); err != nil {
		return err
	}

	sub := "show"
	if len(c.args.Rest) > 0 {
		sub = strings.ToLower(c.args.Rest[0])
	}

	switch sub {
	case "show":
		return c.configShow()
	case "path":
		return c.configPath()
	case "keys":
		if err := c.args.maxArgs(1); err != nil {
			return err
		}
		if c.args.JSON {
			return c.emit(config.GetAllKeys())
		}
		for _, k := range config.GetAllKeys() {
			c.out.Line(k)
		}
		return nil
	case "get":
		if len(c.args.Rest) != 2 {
			return Usagef("usage: schoolhub config get KEY")
		}
		return c.configGet(c.args.Rest[1])
	case "set":
		if len(c.args.Rest) != 3 {
			return Usagef("usage: schoolhub config set KEY VALUE")
		}
		return c.configSet(c.args.Rest[1], c.args.Rest[2])
	}
	return Usagef("config: unknown subcommand %q (show, path, keys, get, set)", sub)
}

// configFile returns the file config set writes to.
func (c *cmdContext) configFile() (string, error) {
	if c.args.ConfigPath != "" {
		return c.args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func (c *cmdContext) configShow() error {
	if err := c.args.maxArgs(1); err != nil {
		return err
	}
	e, err := c.environment()
	if err != nil {
		return err
	}
	if c.args.JSON {
		return c.emit(e.cfg)
	}

	section := ""
	for _, key := range config.GetAllKeys() {
		name, field, _ := strings.Cut(key, ".")
		if name != section {
			if section != "" {
				c.out.Line("")
			}
			c.out.Title("[" + name + "]")
			section = name
		}
		v, err := e.cfg.Get(key)
		if err != nil {
			return err
		}
		c.out.Field(field, formatValue(v), 22)
	}
	return nil
}

func (c *cmdContext) configPath() error {
	if err := c.args.maxArgs(1); err != nil {
		return err
	}
	path, err := c.configFile()
	if err != nil {
		return &ConfigError{Err: err}
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if c.args.JSON {
		return c.emit(map[string]any{"path": path, "exists": exists})
	}
	c.out.Line(path)
	if !exists {
		c.errOut.Muted("(file does not exist; defaults are in use)")
	}
	return nil
}

func (c *cmdContext) configGet(key string) error {
	e, err := c.environment()
	if err != nil {
		return err
	}
	v, err := e.cfg.Get(key)
	if err != nil {
		return Usagef("config get: %v", err)
	}
	if c.args.JSON {
		return c.emit(map[string]any{"key": key, "value": v})
	}
	c.out.Line(formatValue(v))
	return nil
}

// configSet edits the file on disk. Environment overrides are not applied
// so they never leak into the saved file.
func (c *cmdContext) configSet(key, value string) error {
	path, err := c.configFile()
	if err != nil {
		return &ConfigError{Err: err}
	}
	isJSON := strings.HasSuffix(strings.ToLower(path), ".json")

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		load := config.LoadTOML
		if isJSON {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return &ConfigError{Path: path, Err: err}
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return &ConfigError{Path: path, Err: statErr}
	}

	if err := cfg.Set(key, value); err != nil {
		return Usagef("config set: %v", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Path: path, Err: err}
	}

	save := config.SaveTOML
	if isJSON {
		save = config.SaveJSON
	}
	if err := save(cfg, path); err != nil {
		return &ConfigError{Path: path, Err: err}
	}

	v, _ := cfg.Get(key)
	if c.args.JSON {
		return c.emit(map[string]any{"key": key, "value": v, "path": path})
	}
	c.out.Success("%s = %s", key, formatValue(v))
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		if x == "" {
			return `""`
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}
