// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the schoolhub command line.
//
// Arguments are parsed by hand with ArgParser. Global flags may appear
// anywhere on the line:
//
//	schoolhub [--config PATH] [--json] [--verbose] [--no-color] <command> [args]
//
// Commands:
//
//	tui        Start the terminal UI (default)
//	login      Sign in and store the session
//	logout     Sign out and clear the stored session
//	whoami     Show the stored session
//	menu       Print the menu visible to a role
//	history    List recent sign-ins
//	config     Show, get or set configuration values
//	version    Print version information
//	help       Show usage
//
// With --json every command writes a JSONResponse envelope to stdout and
// human-readable messages go to stderr. Run returns one of the Exit*
// codes.
package cli
