// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and manages schoolhub configuration.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SCHOOLHUB_*)
//   - ~/.schoolhub/config.toml
//   - ~/.schoolhub/config.json
//   - Built-in defaults
//
// SCHOOLHUB_HOME relocates the whole ~/.schoolhub directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	idle := cfg.Session.IdleTimeoutSecs
package config
