// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level command.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdMenu
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[string]Command{
	"tui":     CmdTUI,
	"login":   CmdLogin,
	"logout":  CmdLogout,
	"whoami":  CmdWhoami,
	"menu":    CmdMenu,
	"history": CmdHistory,
	"config":  CmdConfig,
	"version": CmdVersion,
	"help":    CmdHelp,
}

// String returns the command word.
func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}

// ParseCommand maps a command word to a Command. The empty word starts the
// TUI.
func ParseCommand(word string) Command {
	if word == "" {
		return CmdTUI
	}
	if cmd, ok := commandNames[strings.ToLower(word)]; ok {
		return cmd
	}
	return CmdUnknown
}

// =============================================================================
// ARGUMENTS
// =============================================================================

// booleanFlags never take a value.
var booleanFlags = []string{
	"json", "verbose", "v", "no-color", "help", "h", "version",
	"password-stdin",
}

// globalFlags are accepted by every command.
var globalFlags = []string{"json", "verbose", "v", "no-color", "help", "h", "version", "config"}

// Args is a parsed command line.
type Args struct {
	Command Command
	// Word is the command as typed, kept for error messages.
	Word       string
	JSON       bool
	Verbose    bool
	NoColor    bool
	ConfigPath string

	// Rest holds the command's positional arguments after the command word.
	Rest []string
	p    *ArgParser
}

// ParseArgs parses argv, which excludes the program name.
func ParseArgs(argv []string) Args {
	p := NewArgParser(argv, booleanFlags...)
	a := Args{
		Word:       p.Subcommand(),
		JSON:       p.BoolFlag("json"),
		Verbose:    p.BoolFlag("verbose", "v"),
		NoColor:    p.BoolFlag("no-color"),
		ConfigPath: p.Flag("config"),
		Rest:       p.PositionalFrom(1),
		p:          p,
	}
	a.Command = ParseCommand(a.Word)

	switch {
	case p.BoolFlag("version") && a.Word == "":
		a.Command = CmdVersion
	case p.BoolFlag("help", "h"):
		a.Command = CmdHelp
		if a.Word != "" && ParseCommand(a.Word) != CmdUnknown {
			a.Rest = []string{a.Word}
		}
	}
	return a
}

// Flag returns a command flag value.
func (a Args) Flag(names ...string) string {
	if a.p == nil {
		return ""
	}
	return a.p.Flag(names...)
}

// BoolFlag reports whether a command boolean flag is set.
func (a Args) BoolFlag(names ...string) bool {
	if a.p == nil {
		return false
	}
	return a.p.BoolFlag(names...)
}

// FlagInt returns a positive integer flag or def.
func (a Args) FlagInt(name string, def int) (int, error) {
	if a.p == nil {
		return def, nil
	}
	return a.p.FlagInt(name, def)
}

// allow rejects flags outside the global set and extra.
func (a Args) allow(extra ...string) error {
	if a.p == nil {
		return nil
	}
	return a.p.requireNoUnknown(a.Command.String(), append(append([]string{}, globalFlags...), extra...)...)
}

// maxArgs rejects surplus positional arguments.
func (a Args) maxArgs(n int) error {
	if len(a.Rest) > n {
		return Usagef("%s: unexpected arguments %s", a.Command, describeArgs(a.Rest[n:]))
	}
	return nil
}

// =============================================================================
// ENTRY POINT
// =============================================================================

type handler func(ctx context.Context, c *cmdContext) error

var handlers = map[Command]handler{
	CmdTUI:     runTUI,
	CmdLogin:   runLogin,
	CmdLogout:  runLogout,
	CmdWhoami:  runWhoami,
	CmdMenu:    runMenu,
	CmdHistory: runHistory,
	CmdConfig:  runConfig,
	CmdVersion: runVersion,
	CmdHelp:    runHelp,
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, argv []string, streams IO) int {
	args := ParseArgs(argv)
	c := &cmdContext{args: args, io: &streams}
	c.out = newPrinter(streams.Out, ColorProfile(c.io, streams.Out, args.NoColor))
	c.errOut = newPrinter(streams.Err, ColorProfile(c.io, streams.Err, args.NoColor))

	var err error
	if args.Command == CmdUnknown {
		err = Usagef("unknown command %q (run 'schoolhub help')", args.Word)
	} else {
		err = handlers[args.Command](ctx, c)
	}
	if c.env != nil {
		c.env.Close()
	}

	code := ExitCode(err)
	if err == nil {
		return code
	}
	if args.JSON && !c.wroteJSON {
		_ = NewJSONErrorResponse(args.Command.String(), err).Write(streams.Out)
		return code
	}
	c.errOut.Failure("%s", userMessage(err))
	if code == ExitUsageError && !args.JSON {
		c.errOut.Muted("Run 'schoolhub help' for usage.")
	}
	return code
}

// cmdContext carries what a command handler needs.
type cmdContext struct {
	args   Args
	io     *IO
	out    *printer
	errOut *printer
	env    *env

	wroteJSON bool
}

// environment loads configuration and the logger once per run.
func (c *cmdContext) environment() (*env, error) {
	if c.env != nil {
		return c.env, nil
	}
	cfg, err := loadConfig(c.args.ConfigPath)
	if err != nil {
		return nil, err
	}
	e, err := newEnv(cfg, c.args.Verbose)
	if err != nil {
		return nil, err
	}
	c.env = e
	return e, nil
}

// emit writes data as a JSON envelope.
func (c *cmdContext) emit(data any) error {
	c.wroteJSON = true
	return NewJSONResponse(c.args.Command.String(), data).Write(c.io.Out)
}

// =============================================================================
// VERSION AND HELP
// =============================================================================

// VersionInfo describes the build.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func versionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func runVersion(_ context.Context, c *cmdContext) error {
	if err := c.args.allow(); err != nil {
		return err
	}
	info := versionInfo()
	if c.args.JSON {
		return c.emit(info)
	}
	c.out.Line(fmt.Sprintf("schoolhub %s (%s, built %s) %s %s",
		info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform))
	return nil
}

const usageText = `schoolhub - terminal client for the school management system

Usage:
  schoolhub [global flags] <command> [arguments]

Commands:
  tui                          Start the terminal UI (default)
  login [-u USER] [--password-stdin]
                               Sign in and store the session
  logout                       Sign out and clear the stored session
  whoami                       Show the stored session
  menu [--role CODE] [--file PATH]
                               Print the menu visible to a role
  history [--limit N]          List recent sign-ins
  config show|path|keys        Show configuration
  config get KEY               Print one value
  config set KEY VALUE         Change one value and save
  version                      Print version information
  help [COMMAND]               Show this help

Global flags:
  --config PATH                Use this configuration file
  --json                       Write a JSON envelope to stdout
  -v, --verbose                Log at debug level
  --no-color                   Disable colour (also NO_COLOR)

Environment:
  SCHOOLHUB_HOME               Configuration directory (default ~/.schoolhub)
  SCHOOLHUB_API_URL            Backend base URL
  SCHOOLHUB_IDLE_TIMEOUT       Idle seconds before the warning
  SCHOOLHUB_WARNING_COUNTDOWN  Warning countdown seconds
`

var commandHelp = map[Command]string{
	CmdLogin: `Usage: schoolhub login [-u|--username USER] [--password-stdin]

Signs in and stores the session. Without --username the name is prompted for.
The password is read without echo, or from the first line of stdin with
--password-stdin.
`,
	CmdMenu: `Usage: schoolhub menu [--role CODE] [--file PATH] [--json]

Prints the menu tree visible to CODE. Without --role the stored session's
role is used; when signed out only unrestricted entries are shown. --file
reads a TOML or JSON menu definition instead of the configured one.
`,
	CmdHistory: `Usage: schoolhub history [--limit N] [--json]

Lists the most recent sign-ins recorded on this machine (default 20).
`,
	CmdConfig: `Usage: schoolhub config [show|path|keys|get KEY|set KEY VALUE]

Keys use dot notation, e.g. session.idle_timeout_secs.
`,
}

func runHelp(_ context.Context, c *cmdContext) error {
	text := usageText
	if len(c.args.Rest) > 0 {
		if h, ok := commandHelp[ParseCommand(c.args.Rest[0])]; ok {
			text = h
		}
	}
	if c.args.JSON {
		return c.emit(map[string]string{"usage": text})
	}
	fmt.Fprint(c.io.Out, text)
	return nil
}
