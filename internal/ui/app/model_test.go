// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/schoolhub-tui/internal/api"
	"github.com/jeranaias/schoolhub-tui/internal/idle"
	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/ui/components"
	"github.com/jeranaias/schoolhub-tui/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSessions struct {
	mu        sync.Mutex
	current   *session.Session
	loginErr  error
	logoutErr error
	reasons   []string
}

func (f *fakeSessions) Login(ctx context.Context, username, password string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.current = teacherSession()
	return f.current, nil
}

func (f *fakeSessions) Logout(ctx context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.current = nil
	return nil
}

func (f *fakeSessions) Current() *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

type fakeMonitor struct {
	signals []idle.Signal
	acks    int
	enabled bool
}

func (f *fakeMonitor) Notify(sig idle.Signal) { f.signals = append(f.signals, sig) }
func (f *fakeMonitor) AcknowledgeWarning()    { f.acks++ }
func (f *fakeMonitor) SetEnabled(enabled bool) {
	f.enabled = enabled
}

func (f *fakeMonitor) count(sig idle.Signal) int {
	n := 0
	for _, s := range f.signals {
		if s == sig {
			n++
		}
	}
	return n
}

func teacherSession() *session.Session {
	return &session.Session{
		ID:           "s1",
		User:         session.User{Username: "alice", FullName: "Alice Smith", RoleCode: "TEACHER"},
		Token:        "tok",
		AcademicYear: "2025-2026",
	}
}

func testTree() []menu.Node {
	return []menu.Node{
		&menu.Group{
			Common: menu.Common{ID: "nav", Title: "Navigation"},
			Children: []menu.Node{
				&menu.Item{Common: menu.Common{ID: "dashboard", Title: "Dashboard"}, URL: "/dashboard"},
				&menu.Item{Common: menu.Common{ID: "marks", Title: "Marks Entry", AllowedRoles: []string{"TEACHER"}}},
				&menu.Item{Common: menu.Common{ID: "fees", Title: "Fee Collection", AllowedRoles: []string{"ACCOUNTANT"}}},
			},
		},
	}
}

func newModel(t *testing.T, sessions *fakeSessions) (Model, *fakeMonitor) {
	t.Helper()
	mon := &fakeMonitor{}
	m := New(Options{
		Theme:          styles.NewThemeWithProfile(styles.ModeDark, termenv.Ascii),
		Sessions:       sessions,
		Monitor:        mon,
		Menu:           testTree(),
		RequestTimeout: time.Second,
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, mon
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func signIn(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := updateCmd(t, m, components.LoginSubmitMsg{Username: "alice", Password: "pw"})
	require.NotNil(t, cmd)
	return update(t, m, cmd())
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// LOGIN
// =============================================================================

func TestModel_StartsOnLoginScreen(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{})
	assert.Equal(t, screenLogin, m.screen)
	assert.NotNil(t, m.Init())
	assert.False(t, mon.enabled)
	assert.Contains(t, m.View(), "Sign in to continue")
}

func TestModel_RestoredSessionStartsHome(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{current: teacherSession()})
	assert.Equal(t, screenHome, m.screen)
	assert.Nil(t, m.Init())
	assert.True(t, mon.enabled)
}

func TestModel_LoginShowsFilteredMenu(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{})
	m = signIn(t, m)

	assert.Equal(t, screenHome, m.screen)
	assert.True(t, mon.enabled)

	view := m.View()
	assert.Contains(t, view, "Alice Smith")
	assert.Contains(t, view, "Teacher")
	assert.Contains(t, view, "Year 2025-2026")
	assert.Contains(t, view, "Dashboard")
	assert.Contains(t, view, "Marks Entry")
	assert.NotContains(t, view, "Fee Collection")
}

func TestModel_LoginFailureShowsError(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{loginErr: &api.APIError{Status: 401}})
	m = signIn(t, m)

	assert.Equal(t, screenLogin, m.screen)
	assert.False(t, mon.enabled)
	assert.Contains(t, m.View(), "Invalid username or password.")
}

func TestLoginErrorText(t *testing.T) {
	assert.Equal(t, "The server is unavailable. Try again shortly.", loginErrorText(&api.APIError{Status: 502}))
	assert.Equal(t, "The server did not respond in time.", loginErrorText(context.DeadlineExceeded))
	assert.Equal(t, "Sign in failed: boom", loginErrorText(errors.New("boom")))
}

// =============================================================================
// ACTIVITY
// =============================================================================

func TestModel_KeysAndMouseNotifyMonitor(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{current: teacherSession()})

	m = update(t, m, keyMsg("j"))
	m = update(t, m, tea.MouseMsg{Type: tea.MouseLeft})
	m = update(t, m, tea.MouseMsg{Type: tea.MouseWheelDown})
	m = update(t, m, tea.MouseMsg{Type: tea.MouseRelease})

	assert.Equal(t, 1, mon.count(idle.SignalKeyPress))
	assert.Equal(t, 1, mon.count(idle.SignalPointerPress))
	assert.Equal(t, 1, mon.count(idle.SignalScroll))
	assert.Len(t, mon.signals, 3)
}

func TestModel_MouseMotionIsThrottled(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{current: teacherSession()})

	for i := 0; i < 10; i++ {
		m = update(t, m, tea.MouseMsg{Type: tea.MouseMotion})
	}
	assert.Equal(t, 1, mon.count(idle.SignalPointerMove))
}

func TestModel_NoSignalsOnLoginScreen(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{})
	m = update(t, m, keyMsg("a"))
	m = update(t, m, tea.MouseMsg{Type: tea.MouseLeft})
	assert.Empty(t, mon.signals)
}

// =============================================================================
// IDLE WARNING
// =============================================================================

func TestModel_WarningOverlay(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{current: teacherSession()})

	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseWarning, RemainingSeconds: 30, Seq: 1}})
	assert.Contains(t, m.View(), "0:30")

	// Any key counts as activity and is not passed to the menu.
	before := m.menuView.Selected()
	m = update(t, m, keyMsg("j"))
	assert.Equal(t, 1, mon.count(idle.SignalKeyPress))
	assert.Equal(t, before, m.menuView.Selected())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 1, mon.acks)

	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseActive, Seq: 2}})
	assert.NotContains(t, m.View(), "0:30")
	assert.Contains(t, m.View(), "Dashboard")
}

func TestModel_StaleIdleSnapshotIsDropped(t *testing.T) {
	m, _ := newModel(t, &fakeSessions{current: teacherSession()})

	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseWarning, RemainingSeconds: 5, Seq: 2}})
	require.True(t, m.warning.Visible())

	// A key press reset the monitor before the tick delivered its countdown.
	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseActive, Seq: 4}})
	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseWarning, RemainingSeconds: 4, Seq: 3}})

	assert.False(t, m.warning.Visible())
	assert.NotContains(t, m.View(), "0:04")
	assert.Contains(t, m.View(), "Dashboard")
}

func TestModel_IdleLogoutReturnsToLogin(t *testing.T) {
	m, mon := newModel(t, &fakeSessions{current: teacherSession()})
	m.Init()

	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseLoggingOut, Seq: 1}})
	assert.Contains(t, m.View(), "Signing out")

	// Input is ignored while the logout runs.
	m = update(t, m, keyMsg("j"))
	m = update(t, m, tea.MouseMsg{Type: tea.MouseLeft})
	assert.Empty(t, mon.signals)

	m = update(t, m, SessionChangedMsg{Session: nil})
	assert.Equal(t, screenLogin, m.screen)
	assert.False(t, mon.enabled)
	assert.Contains(t, m.View(), "Signed out after inactivity.")

	// The monitor's trailing snapshot does not disturb the login screen.
	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseActive, Seq: 2}})
	assert.Equal(t, screenLogin, m.screen)
	assert.Empty(t, m.status)
}

func TestModel_FailedIdleLogoutStaysHome(t *testing.T) {
	m, _ := newModel(t, &fakeSessions{current: teacherSession()})

	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseWarning, RemainingSeconds: 1, Seq: 1}})
	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseLoggingOut, Seq: 2}})
	m = update(t, m, IdleStateMsg{State: idle.State{Phase: idle.PhaseActive, Seq: 3}})

	assert.Equal(t, screenHome, m.screen)
	assert.Contains(t, m.View(), "Automatic sign out failed")
}

// =============================================================================
// LOGOUT, MENU, QUIT
// =============================================================================

func TestModel_UserLogout(t *testing.T) {
	sessions := &fakeSessions{current: teacherSession()}
	m, mon := newModel(t, sessions)
	m.Init()

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, cmd)
	m = update(t, m, cmd())

	assert.Equal(t, []string{session.ReasonUser}, sessions.reasons)
	assert.Equal(t, screenLogin, m.screen)
	assert.False(t, mon.enabled)
	assert.Contains(t, m.View(), "You have been signed out.")
}

func TestModel_UserLogoutFailureKeepsSession(t *testing.T) {
	sessions := &fakeSessions{current: teacherSession(), logoutErr: errors.New("network down")}
	m, _ := newModel(t, sessions)

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, cmd)
	m = update(t, m, cmd())

	assert.Equal(t, screenHome, m.screen)
	assert.Contains(t, m.View(), "Sign out failed: network down")
}

func TestModel_MenuReload(t *testing.T) {
	m, _ := newModel(t, &fakeSessions{current: teacherSession()})

	tree := testTree()
	tree[0].(*menu.Group).Children = append(tree[0].(*menu.Group).Children,
		&menu.Item{Common: menu.Common{ID: "timetable", Title: "Timetable", AllowedRoles: []string{"TEACHER"}}})

	m = update(t, m, MenuReloadedMsg{Nodes: tree})
	assert.Contains(t, m.View(), "Timetable")

	m = update(t, m, MenuReloadedMsg{Err: errors.New("bad toml")})
	assert.Contains(t, m.View(), "Timetable")
	assert.Contains(t, m.View(), "Menu reload failed")
}

func TestModel_MenuSelectionShowsTarget(t *testing.T) {
	m, _ := newModel(t, &fakeSessions{current: teacherSession()})

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = update(t, m, cmd())
	assert.Contains(t, m.View(), "Dashboard: /dashboard")
}

func TestModel_Quit(t *testing.T) {
	m, _ := newModel(t, &fakeSessions{})
	_, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

// =============================================================================
// BRIDGE
// =============================================================================

type collector struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *collector) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) snapshot() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tea.Msg(nil), c.msgs...)
}

func TestBridge_ForwardsInOrder(t *testing.T) {
	b := NewBridge(4)
	c := &collector{}

	// Queued before Run starts.
	b.Send(1)
	b.Send(2)

	done := make(chan struct{})
	go func() {
		b.Run(c)
		close(done)
	}()
	b.Send(3)

	assert.Eventually(t, func() bool { return len(c.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []tea.Msg{1, 2, 3}, c.snapshot())

	b.Close()
	<-done

	// Send after Close returns immediately.
	for i := 0; i < 10; i++ {
		b.Send(i)
	}
	b.Close()
}
