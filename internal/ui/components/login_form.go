// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
)

// LoginSubmitMsg carries the credentials entered in the form.
type LoginSubmitMsg struct {
	Username string
	Password string
}

const (
	fieldUsername = iota
	fieldPassword
)

// LoginForm is the sign-in screen.
type LoginForm struct {
	theme *styles.Theme
	keys  KeyMap

	username textinput.Model
	password textinput.Model
	focus    int

	busy   bool
	err    string
	notice string

	width  int
	height int
}

// NewLoginForm creates a form with the username field focused.
func NewLoginForm(theme *styles.Theme, keys KeyMap) LoginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 128
	user.Prompt = "> "
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 256
	pass.Prompt = "> "
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'

	return LoginForm{
		theme:    theme,
		keys:     keys,
		username: user,
		password: pass,
		focus:    fieldUsername,
	}
}

// Init starts the cursor blinking.
func (f LoginForm) Init() tea.Cmd {
	return textinput.Blink
}

// SetSize sets the screen dimensions.
func (f *LoginForm) SetSize(width, height int) {
	f.width = width
	f.height = height
}

// SetBusy marks a login as in progress; input is ignored meanwhile.
func (f *LoginForm) SetBusy(busy bool) {
	f.busy = busy
}

// Busy reports whether a login is in progress.
func (f LoginForm) Busy() bool {
	return f.busy
}

// SetError shows a failed login and clears the password.
func (f *LoginForm) SetError(msg string) {
	f.busy = false
	f.err = msg
	f.notice = ""
	f.password.Reset()
	f.setFocus(fieldPassword)
}

// SetNotice shows an informational line, such as why the user was signed out.
func (f *LoginForm) SetNotice(msg string) {
	f.notice = msg
	f.err = ""
}

// Reset clears both fields and any message except the notice.
func (f *LoginForm) Reset() {
	f.busy = false
	f.err = ""
	f.username.Reset()
	f.password.Reset()
	f.setFocus(fieldUsername)
}

// Username returns the entered username.
func (f LoginForm) Username() string {
	return f.username.Value()
}

func (f *LoginForm) setFocus(field int) {
	f.focus = field
	if field == fieldUsername {
		f.username.Focus()
		f.password.Blur()
	} else {
		f.password.Focus()
		f.username.Blur()
	}
}

// Update handles field navigation and submission.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		if f.focus == fieldUsername {
			f.username, cmd = f.username.Update(msg)
		} else {
			f.password, cmd = f.password.Update(msg)
		}
		return f, cmd
	}
	if f.busy {
		return f, nil
	}

	switch {
	case km.Type == tea.KeyEnter:
		if f.focus == fieldUsername {
			f.setFocus(fieldPassword)
			return f, nil
		}
		return f.submit()
	case key.Matches(km, f.keys.NextField):
		f.setFocus((f.focus + 1) % 2)
		return f, nil
	case key.Matches(km, f.keys.PrevField):
		f.setFocus((f.focus + 1) % 2)
		return f, nil
	}

	var cmd tea.Cmd
	if f.focus == fieldUsername {
		f.username, cmd = f.username.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return f, cmd
}

func (f LoginForm) submit() (LoginForm, tea.Cmd) {
	username := strings.TrimSpace(f.username.Value())
	password := f.password.Value()
	if username == "" {
		f.err = "Enter your username."
		f.setFocus(fieldUsername)
		return f, nil
	}
	if password == "" {
		f.err = "Enter your password."
		return f, nil
	}

	f.busy = true
	f.err = ""
	return f, func() tea.Msg {
		return LoginSubmitMsg{Username: username, Password: password}
	}
}

// View renders the form centred on screen.
func (f LoginForm) View() string {
	label := func(field int, text string) string {
		if f.focus == field {
			return f.theme.InputFocus.Render(text)
		}
		return f.theme.InputLabel.Render(text)
	}

	parts := []string{
		f.theme.LoginTitle.Render("schoolhub"),
		f.theme.InputLabel.Render("Sign in to continue"),
		"",
		label(fieldUsername, "Username"),
		f.username.View(),
		"",
		label(fieldPassword, "Password"),
		f.password.View(),
		"",
	}

	switch {
	case f.busy:
		parts = append(parts, f.theme.HintText.Render("Signing in..."))
	case f.err != "":
		parts = append(parts, styles.RenderError(f.err))
	case f.notice != "":
		parts = append(parts, styles.RenderInfo(f.notice))
	default:
		parts = append(parts, f.theme.HintText.Render("Tab to switch fields, Enter to sign in"))
	}

	box := f.theme.LoginBox.Width(44).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	if f.width == 0 || f.height == 0 {
		return box
	}
	return lipgloss.Place(f.width, f.height, lipgloss.Center, lipgloss.Center, box)
}
