// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/schoolhub-tui/internal/api"
	"github.com/jeranaias/schoolhub-tui/internal/idle"
	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/roles"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/ui/components"
	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Sessions is the part of *session.Manager the model uses.
type Sessions interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(ctx context.Context, reason string) error
	Current() *session.Session
}

// Activity is the part of *idle.Monitor the model uses.
type Activity interface {
	Notify(sig idle.Signal)
	AcknowledgeWarning()
	SetEnabled(enabled bool)
}

// DefaultMouseMoveRate caps how many pointer-move signals per second reach
// the idle monitor.
const DefaultMouseMoveRate = 2

// Options configures a Model.
type Options struct {
	Theme    *styles.Theme
	Sessions Sessions
	Monitor  Activity
	// Menu is the unfiltered tree; it is filtered per role.
	Menu           []menu.Node
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// MouseMoveRate is pointer-move signals per second (0 = default).
	MouseMoveRate float64
}

// =============================================================================
// MODEL
// =============================================================================

type screen int

const (
	screenLogin screen = iota
	screenHome
)

// Model is the root bubbletea model.
type Model struct {
	theme    *styles.Theme
	keys     components.KeyMap
	logger   *zap.Logger
	sessions Sessions
	monitor  Activity
	timeout  time.Duration

	screen   screen
	current  *session.Session
	tree     []menu.Node
	login    components.LoginForm
	menuView components.MenuView
	warning  components.IdleWarning

	moves *rate.Limiter

	// idleLogout is set once the monitor reports LOGGING_OUT.
	idleLogout bool
	// idleSeq is the Seq of the last monitor snapshot applied.
	idleSeq   uint64
	status    string
	statusErr bool

	width  int
	height int
}

// New creates the model. It starts on the home screen when Sessions already
// holds a session.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = api.DefaultTimeout
	}
	moveRate := opts.MouseMoveRate
	if moveRate <= 0 {
		moveRate = DefaultMouseMoveRate
	}
	tree := opts.Menu
	if tree == nil {
		tree = []menu.Node{}
	}

	keys := components.DefaultKeyMap()
	m := Model{
		theme:    opts.Theme,
		keys:     keys,
		logger:   logger,
		sessions: opts.Sessions,
		monitor:  opts.Monitor,
		timeout:  timeout,
		tree:     tree,
		login:    components.NewLoginForm(opts.Theme, keys),
		menuView: components.NewMenuView(opts.Theme, keys),
		warning:  components.NewIdleWarning(),
		moves:    rate.NewLimiter(rate.Limit(moveRate), 1),
	}

	if s := opts.Sessions.Current(); s != nil {
		m.screen = screenHome
		m.current = s
		m.menuView.SetNodes(menu.FilterTree(m.tree, s.User.RoleCode))
	}
	return m
}

// Init implements tea.Model. A restored session arms the idle monitor.
func (m Model) Init() tea.Cmd {
	if m.screen == screenHome {
		m.monitor.SetEnabled(true)
		return nil
	}
	return m.login.Init()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			var cmd tea.Cmd
			m.login, cmd = m.login.Update(msg)
			return m, cmd
		}
		return m.handleHomeKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case components.LoginSubmitMsg:
		return m, m.loginCmd(msg.Username, msg.Password)

	case loginDoneMsg:
		if msg.err != nil {
			m.login.SetError(loginErrorText(msg.err))
			return m, nil
		}
		m.enterHome(msg.session)
		return m, nil

	case logoutDoneMsg:
		if msg.err != nil {
			m.setStatus("Sign out failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.enterLogin()
		return m, nil

	case SessionChangedMsg:
		if msg.Session == nil {
			m.enterLogin()
		} else {
			m.enterHome(msg.Session)
		}
		return m, nil

	case IdleStateMsg:
		return m.handleIdleState(msg.State)

	case MenuReloadedMsg:
		if msg.Err != nil {
			m.logger.Warn("menu reload failed", zap.Error(msg.Err))
			m.setStatus("Menu reload failed; keeping the current menu.", true)
			return m, nil
		}
		m.tree = msg.Nodes
		m.refilter()
		m.setStatus("Menu updated.", false)
		return m, nil

	case components.MenuSelectedMsg:
		target := msg.Item.URL
		if target == "" {
			target = msg.Item.ID
		}
		m.setStatus(fmt.Sprintf("%s: %s", msg.Item.Title, target), false)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.warning, cmd = m.warning.Update(msg)
		return m, cmd
	}

	if m.screen == screenLogin {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) handleHomeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.warning.LoggingOut() {
		return m, nil
	}

	// While the warning is up a key only counts as "still here".
	if m.warning.Visible() {
		if key.Matches(msg, m.keys.StayIn) {
			m.monitor.AcknowledgeWarning()
		} else {
			m.monitor.Notify(idle.SignalKeyPress)
		}
		return m, nil
	}

	m.monitor.Notify(idle.SignalKeyPress)

	if key.Matches(msg, m.keys.Logout) {
		m.setStatus("Signing out...", false)
		return m, m.logoutCmd(session.ReasonUser)
	}

	var cmd tea.Cmd
	m.menuView, cmd = m.menuView.Update(msg)
	return m, cmd
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.screen != screenHome || m.warning.LoggingOut() {
		return m, nil
	}

	switch msg.Type {
	case tea.MouseMotion:
		if m.moves.Allow() {
			m.monitor.Notify(idle.SignalPointerMove)
		}
	case tea.MouseWheelUp:
		m.monitor.Notify(idle.SignalScroll)
		if !m.warning.Visible() {
			m.menuView.MoveUp()
		}
	case tea.MouseWheelDown:
		m.monitor.Notify(idle.SignalScroll)
		if !m.warning.Visible() {
			m.menuView.MoveDown()
		}
	case tea.MouseRelease:
	default:
		m.monitor.Notify(idle.SignalPointerPress)
	}
	return m, nil
}

func (m Model) handleIdleState(s idle.State) (tea.Model, tea.Cmd) {
	if s.Seq <= m.idleSeq {
		m.logger.Debug("dropping stale idle snapshot",
			zap.Uint64("seq", s.Seq),
			zap.Uint64("applied", m.idleSeq))
		return m, nil
	}
	m.idleSeq = s.Seq

	wasLoggingOut := m.warning.LoggingOut()
	cmd := m.warning.SetState(s)

	switch {
	case s.Phase == idle.PhaseLoggingOut:
		m.idleLogout = true
	case wasLoggingOut && m.screen == screenHome && m.current != nil:
		// The logout finished but nobody signed us out: it failed.
		m.idleLogout = false
		m.setStatus("Automatic sign out failed; you are still signed in.", true)
	}
	return m, cmd
}

// =============================================================================
// SCREEN CHANGES
// =============================================================================

func (m *Model) enterHome(s *session.Session) {
	if s == nil {
		return
	}
	m.current = s
	m.screen = screenHome
	m.idleLogout = false
	m.login.Reset()
	m.login.SetNotice("")
	m.refilter()
	m.setStatus(fmt.Sprintf("Welcome, %s.", s.User.DisplayName()), false)
	m.monitor.SetEnabled(true)
}

func (m *Model) enterLogin() {
	if m.screen == screenLogin && m.current == nil {
		return
	}
	m.monitor.SetEnabled(false)
	m.warning.SetState(idle.State{Phase: idle.PhaseActive})

	notice := "You have been signed out."
	if m.idleLogout {
		notice = "Signed out after inactivity."
	}
	m.idleLogout = false
	m.current = nil
	m.screen = screenLogin
	m.status = ""
	m.login.Reset()
	m.login.SetNotice(notice)
}

func (m *Model) refilter() {
	role := menu.NoRole
	if m.current != nil {
		role = m.current.User.RoleCode
	}
	m.menuView.SetNodes(menu.FilterTree(m.tree, role))
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	if m.theme != nil {
		m.theme.SetSize(width, height)
	}
	m.login.SetSize(width, height)
	m.warning.SetSize(width, height)
	// header (2) + status bar (1) + spacing (1)
	m.menuView.SetSize(width-2, height-4)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) loginCmd(username, password string) tea.Cmd {
	sessions, timeout := m.sessions, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s, err := sessions.Login(ctx, username, password)
		return loginDoneMsg{session: s, err: err}
	}
}

func (m Model) logoutCmd(reason string) tea.Cmd {
	sessions, timeout := m.sessions, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return logoutDoneMsg{err: sessions.Logout(ctx, reason)}
	}
}

func loginErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		return "Enter your username and password."
	case errors.Is(err, api.ErrUnauthorized):
		return "Invalid username or password."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server did not respond in time."
	case errors.Is(err, api.ErrServer):
		return "The server is unavailable. Try again shortly."
	}
	return "Sign in failed: " + err.Error()
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.screen == screenLogin {
		return m.login.View()
	}
	if m.warning.Visible() {
		return m.warning.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		" "+strings.ReplaceAll(m.menuView.View(), "\n", "\n "),
		m.viewStatus(),
	)
}

func (m Model) viewHeader() string {
	if m.current == nil {
		return ""
	}
	u := m.current.User
	parts := []string{
		m.theme.HeaderBrand.Render("schoolhub"),
		m.theme.HeaderUser.Render(u.DisplayName()),
		m.theme.HeaderMeta.Render(roles.DisplayName(u.RoleCode)),
	}
	if m.current.AcademicYear != "" {
		parts = append(parts, m.theme.HeaderMeta.Render("Year "+m.current.AcademicYear))
	}

	style := m.theme.Header
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(strings.Join(parts, "  |  "))
}

func (m Model) viewStatus() string {
	var text string
	switch {
	case m.status != "" && m.statusErr:
		text = styles.RenderError(m.status)
	case m.status != "":
		text = m.status
	default:
		help := make([]string, 0, 5)
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			help = append(help, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		text = strings.Join(help, "  ")
	}

	style := m.theme.StatusBar
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(text)
}
