// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the schoolhub packages.
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateWidth, PadRight: display-width aware text for terminal layout
//   - FormatCountdown: M:SS rendering of a seconds count
package util
