// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// STREAMS
// =============================================================================

// IO holds the streams a command reads and writes. Tests substitute buffers.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Interactive reports whether In is a terminal that can be prompted.
	Interactive bool
	// ReadPassword reads a secret without echo. Nil means prompts fail
	// with ErrTTYRequired.
	ReadPassword func(prompt string) (string, error)
	// Getenv looks up environment variables; nil uses os.Getenv.
	Getenv func(string) string

	lines *bufio.Reader
}

// StdIO returns the process streams.
func StdIO() IO {
	return IO{
		In:           os.Stdin,
		Out:          os.Stdout,
		Err:          os.Stderr,
		Interactive:  IsTTY(),
		ReadPassword: readTerminalPassword,
	}
}

func (s *IO) getenv(key string) string {
	if s.Getenv != nil {
		return s.Getenv(key)
	}
	return os.Getenv(key)
}

// readLine reads one line from In without the trailing newline.
func (s *IO) readLine() (string, error) {
	if s.lines == nil {
		s.lines = bufio.NewReader(s.In)
	}
	line, err := s.lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// prompt asks for a line of input on an interactive terminal.
func (s *IO) prompt(label string) (string, error) {
	if !s.Interactive {
		return "", ErrTTYRequired
	}
	fmt.Fprint(s.Err, label)
	return s.readLine()
}

// secret asks for a password without echo.
func (s *IO) secret(label string) (string, error) {
	if !s.Interactive || s.ReadPassword == nil {
		return "", ErrTTYRequired
	}
	return s.ReadPassword(label)
}

func readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrTTYRequired
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// isTerminalWriter reports whether w is a terminal file.
func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// ColorsEnabled decides whether output to w may be coloured.
//
// NO_COLOR (any value) and --no-color disable colour; FORCE_COLOR enables
// it; otherwise colour follows whether w is a terminal. TERM=dumb disables
// colour.
func ColorsEnabled(s *IO, w io.Writer, noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	if _, set := lookupEnv(s, "NO_COLOR"); set {
		return false
	}
	if v := s.getenv("FORCE_COLOR"); v != "" && v != "0" {
		return true
	}
	if s.getenv("TERM") == "dumb" {
		return false
	}
	return isTerminalWriter(w)
}

// ColorProfile returns the termenv profile for w.
func ColorProfile(s *IO, w io.Writer, noColorFlag bool) termenv.Profile {
	if !ColorsEnabled(s, w, noColorFlag) {
		return termenv.Ascii
	}
	if f, ok := w.(*os.File); ok {
		return termenv.NewOutput(f).EnvColorProfile()
	}
	return termenv.ANSI256
}

func lookupEnv(s *IO, key string) (string, bool) {
	if s.Getenv != nil {
		v := s.Getenv(key)
		return v, v != ""
	}
	return os.LookupEnv(key)
}

// =============================================================================
// TERMINAL SIZE
// =============================================================================

// DefaultTerminalWidth is used when the width cannot be detected.
const DefaultTerminalWidth = 80

// TerminalWidth returns the width of w, or DefaultTerminalWidth.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}
