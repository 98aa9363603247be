// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/schoolhub-tui/internal/audit"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultLogoutTimeout bounds a single logout callback.
const DefaultLogoutTimeout = 30 * time.Second

// tickInterval is the countdown resolution during the warning phase.
const tickInterval = time.Second

// ErrInvalidConfig is returned by Configure for out-of-range values.
var ErrInvalidConfig = errors.New("invalid idle monitor configuration")

// =============================================================================
// TYPES
// =============================================================================

// Phase is the monitor's position in the idle cycle.
type Phase int

const (
	// PhaseActive means the user is considered present.
	PhaseActive Phase = iota
	// PhaseWarning means the countdown to logout is running.
	PhaseWarning
	// PhaseLoggingOut means the logout callback is in flight.
	PhaseLoggingOut
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "ACTIVE"
	case PhaseWarning:
		return "WARNING"
	case PhaseLoggingOut:
		return "LOGGING_OUT"
	default:
		return "UNKNOWN"
	}
}

// Signal is a recognised category of user activity.
type Signal int

const (
	SignalPointerPress Signal = iota
	SignalPointerMove
	SignalKeyPress
	SignalScroll
	SignalTouchStart
	// SignalAcknowledge is the explicit "stay signed in" action.
	SignalAcknowledge
)

// String returns the string representation of the signal.
func (s Signal) String() string {
	switch s {
	case SignalPointerPress:
		return "pointer_press"
	case SignalPointerMove:
		return "pointer_move"
	case SignalKeyPress:
		return "key_press"
	case SignalScroll:
		return "scroll"
	case SignalTouchStart:
		return "touch_start"
	case SignalAcknowledge:
		return "acknowledge"
	default:
		return "unknown"
	}
}

// Reason records why a logout started.
type Reason int

const (
	ReasonIdleTimeout Reason = iota
	ReasonForced
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	if r == ReasonForced {
		return "forced"
	}
	return "idle_timeout"
}

type reasonKey struct{}

// ReasonFrom returns the reason a logout callback was invoked for.
func ReasonFrom(ctx context.Context) (Reason, bool) {
	r, ok := ctx.Value(reasonKey{}).(Reason)
	return r, ok
}

// State is a read-only snapshot of the monitor.
type State struct {
	Phase            Phase
	RemainingSeconds int
	LastActivityAt   time.Time
	WarningDeadline  time.Time
	Enabled          bool
	// Seq increases with every published transition. Observers may receive
	// snapshots out of order and should drop any not newer than the last.
	Seq uint64
}

// LogoutFunc ends the user's session. It runs on its own goroutine.
type LogoutFunc func(ctx context.Context) error

// Auditor receives session lifecycle events. *audit.Recorder satisfies it.
type Auditor interface {
	Record(eventType string, metadata map[string]string)
	RecordFailure(eventType string, cause error, metadata map[string]string)
}

type nopAuditor struct{}

func (nopAuditor) Record(string, map[string]string)               {}
func (nopAuditor) RecordFailure(string, error, map[string]string) {}

// ConfigError describes a rejected Configure call.
type ConfigError struct {
	Field string
	Value int
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("idle: %s=%d: %s", e.Field, e.Value, e.Msg)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the time source. Tests inject a manual clock.
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(m *Monitor) {
		if a != nil {
			m.auditor = a
		}
	}
}

// WithObserver registers a callback invoked with a snapshot whenever the
// phase or countdown changes. It is called without the monitor lock held and
// may be called from timer goroutines, so deliveries can interleave; State.Seq
// gives their order.
func WithObserver(fn func(State)) Option {
	return func(m *Monitor) {
		m.observer = fn
	}
}

// WithLogoutTimeout bounds the context handed to the logout callback.
func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.logoutTimeout = d
		}
	}
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor tracks user activity and signs the user out after a period of
// inactivity followed by a visible countdown.
type Monitor struct {
	mu sync.Mutex

	clock         Clock
	logger        *zap.Logger
	auditor       Auditor
	observer      func(State)
	logoutTimeout time.Duration

	configured  bool
	idleTimeout time.Duration
	countdown   int
	onLogout    LogoutFunc

	enabled         bool
	phase           Phase
	lastActivityAt  time.Time
	warningDeadline time.Time
	remaining       int

	idleTimer Timer
	tickTimer Timer

	// gen is bumped whenever timers are cancelled; callbacks from an older
	// generation are ignored.
	gen uint64
	// cycle identifies a logout; a completion from an older cycle is ignored.
	cycle uint64
	// seq orders published snapshots.
	seq uint64

	inflight sync.WaitGroup
}

// New creates a disabled, unconfigured monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		clock:         RealClock{},
		logger:        zap.NewNop(),
		auditor:       nopAuditor{},
		logoutTimeout: DefaultLogoutTimeout,
		phase:         PhaseActive,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastActivityAt = m.clock.Now()
	return m
}

// Configure sets the idle period, the warning countdown (both in seconds) and
// the logout callback. Outstanding timers are cancelled; if the monitor is
// enabled the idle period restarts from now. While a logout is in flight the
// new values take effect when it completes.
func (m *Monitor) Configure(idleTimeoutSeconds, warningCountdownSeconds int, onLogout LogoutFunc) error {
	if idleTimeoutSeconds < 1 {
		return &ConfigError{Field: "idle_timeout_seconds", Value: idleTimeoutSeconds, Msg: "must be at least 1"}
	}
	if warningCountdownSeconds < 1 {
		return &ConfigError{Field: "warning_countdown_seconds", Value: warningCountdownSeconds, Msg: "must be at least 1"}
	}
	if onLogout == nil {
		return &ConfigError{Field: "on_logout", Msg: "callback is required"}
	}

	m.mu.Lock()
	m.configured = true
	m.idleTimeout = time.Duration(idleTimeoutSeconds) * time.Second
	m.countdown = warningCountdownSeconds
	m.onLogout = onLogout

	changed := false
	if m.enabled && m.phase != PhaseLoggingOut {
		changed = m.phase != PhaseActive
		m.resetActiveLocked()
		m.lastActivityAt = m.clock.Now()
		m.armIdleLocked()
	}
	snap, obs := m.publishLocked()
	m.mu.Unlock()

	m.logger.Debug("idle monitor configured",
		zap.Int("idle_timeout_seconds", idleTimeoutSeconds),
		zap.Int("warning_countdown_seconds", warningCountdownSeconds))
	if changed {
		notify(obs, snap)
	}
	return nil
}

// SetEnabled arms or disarms the monitor. Disabling cancels every timer and
// returns to ACTIVE without invoking the logout callback.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	if m.enabled == enabled {
		m.mu.Unlock()
		return
	}

	m.enabled = enabled
	if enabled {
		m.resetActiveLocked()
		m.lastActivityAt = m.clock.Now()
		if m.configured {
			m.armIdleLocked()
		}
	} else {
		m.cancelTimersLocked()
		if m.phase == PhaseLoggingOut {
			m.cycle++
		}
		m.resetActiveLocked()
	}
	snap, obs := m.publishLocked()
	m.mu.Unlock()

	m.logger.Debug("idle monitor enabled changed", zap.Bool("enabled", enabled))
	notify(obs, snap)
}

// NotifyActivity records generic user activity.
func (m *Monitor) NotifyActivity() {
	m.activity(SignalKeyPress, audit.EventSessionExtended)
}

// Notify records activity of a specific kind.
func (m *Monitor) Notify(sig Signal) {
	if sig == SignalAcknowledge {
		m.AcknowledgeWarning()
		return
	}
	m.activity(sig, audit.EventSessionExtended)
}

// AcknowledgeWarning handles the explicit "stay signed in" action. It behaves
// like NotifyActivity and is audited separately when it ends a warning.
func (m *Monitor) AcknowledgeWarning() {
	m.activity(SignalAcknowledge, audit.EventSessionAcknowledged)
}

func (m *Monitor) activity(sig Signal, eventType string) {
	m.mu.Lock()
	if !m.enabled || m.phase == PhaseLoggingOut {
		m.mu.Unlock()
		return
	}

	m.lastActivityAt = m.clock.Now()
	if !m.configured {
		m.mu.Unlock()
		return
	}

	wasWarning := m.phase == PhaseWarning
	remaining := m.remaining
	m.resetActiveLocked()
	m.armIdleLocked()
	snap, obs := m.publishLocked()
	m.mu.Unlock()

	if !wasWarning {
		return
	}
	m.logger.Info("session extended",
		zap.Stringer("signal", sig),
		zap.Int("remaining_seconds", remaining))
	m.auditor.Record(eventType, map[string]string{
		"signal":            sig.String(),
		"remaining_seconds": strconv.Itoa(remaining),
	})
	notify(obs, snap)
}

// ForceLogout starts a logout immediately and returns without waiting for
// it. It is a no-op while disabled, unconfigured or already logging out.
func (m *Monitor) ForceLogout() {
	m.mu.Lock()
	if !m.enabled || !m.configured || m.phase == PhaseLoggingOut {
		m.mu.Unlock()
		return
	}
	launch := m.beginLogoutLocked(ReasonForced)
	snap, obs := m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("forced logout")
	m.auditor.Record(audit.EventForcedLogout, map[string]string{"reason": ReasonForced.String()})
	notify(obs, snap)
	launch()
}

// State returns a snapshot of the monitor.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Close disables the monitor and drops the observer.
func (m *Monitor) Close() {
	m.SetEnabled(false)
	m.mu.Lock()
	m.observer = nil
	m.mu.Unlock()
}

// Wait blocks until every logout callback started so far has returned.
func (m *Monitor) Wait() {
	m.inflight.Wait()
}

// =============================================================================
// TIMER CALLBACKS
// =============================================================================

func (m *Monitor) onIdle(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.enabled || m.phase != PhaseActive {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.idleTimer = nil
	m.phase = PhaseWarning
	m.remaining = m.countdown
	m.warningDeadline = now.Add(time.Duration(m.countdown) * time.Second)
	m.scheduleTickLocked()
	idleFor := now.Sub(m.lastActivityAt)
	snap, obs := m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("session idle, warning started",
		zap.Duration("idle_for", idleFor),
		zap.Int("countdown_seconds", snap.RemainingSeconds))
	m.auditor.Record(audit.EventSessionWarning, map[string]string{
		"countdown_seconds": strconv.Itoa(snap.RemainingSeconds),
	})
	notify(obs, snap)
}

func (m *Monitor) onTick(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.enabled || m.phase != PhaseWarning {
		m.mu.Unlock()
		return
	}

	m.tickTimer = nil
	if m.remaining > 0 {
		m.remaining--
	}

	var launch func()
	if m.remaining == 0 {
		launch = m.beginLogoutLocked(ReasonIdleTimeout)
	} else {
		m.scheduleTickLocked()
	}
	snap, obs := m.publishLocked()
	m.mu.Unlock()

	if launch != nil {
		m.logger.Info("session timed out")
		m.auditor.Record(audit.EventSessionTimeout, map[string]string{"reason": ReasonIdleTimeout.String()})
	}
	notify(obs, snap)
	if launch != nil {
		launch()
	}
}

// =============================================================================
// LOGOUT
// =============================================================================

// beginLogoutLocked moves to LOGGING_OUT and returns a function that starts
// the callback. The caller runs it after releasing the lock.
func (m *Monitor) beginLogoutLocked(reason Reason) func() {
	m.cancelTimersLocked()
	m.phase = PhaseLoggingOut
	m.remaining = 0
	m.cycle++

	cycle := m.cycle
	fn := m.onLogout
	timeout := m.logoutTimeout
	m.inflight.Add(1)

	return func() {
		go m.runLogout(cycle, fn, timeout, reason)
	}
}

func (m *Monitor) runLogout(cycle uint64, fn LogoutFunc, timeout time.Duration, reason Reason) {
	defer m.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := callLogout(context.WithValue(ctx, reasonKey{}, reason), fn)

	m.mu.Lock()
	current := cycle == m.cycle
	var snap State
	var obs func(State)
	if current {
		m.resetActiveLocked()
		if m.enabled && m.configured {
			m.lastActivityAt = m.clock.Now()
			m.armIdleLocked()
		}
		snap, obs = m.publishLocked()
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("logout failed", zap.Stringer("reason", reason), zap.Error(err))
		m.auditor.RecordFailure(audit.EventLogoutFailed, err, map[string]string{"reason": reason.String()})
	} else {
		m.logger.Info("logout completed", zap.Stringer("reason", reason))
	}

	if !current {
		m.logger.Debug("ignoring stale logout completion", zap.Uint64("cycle", cycle))
		return
	}
	notify(obs, snap)
}

func callLogout(ctx context.Context, fn LogoutFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("logout callback panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Monitor) armIdleLocked() {
	m.cancelTimersLocked()
	gen := m.gen
	m.idleTimer = m.clock.AfterFunc(m.idleTimeout, func() { m.onIdle(gen) })
}

func (m *Monitor) scheduleTickLocked() {
	gen := m.gen
	m.tickTimer = m.clock.AfterFunc(tickInterval, func() { m.onTick(gen) })
}

func (m *Monitor) cancelTimersLocked() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	if m.tickTimer != nil {
		m.tickTimer.Stop()
		m.tickTimer = nil
	}
	m.gen++
}

func (m *Monitor) resetActiveLocked() {
	m.phase = PhaseActive
	m.remaining = 0
	m.warningDeadline = time.Time{}
}

// publishLocked stamps the next sequence number and returns the snapshot
// along with the observer to deliver it to.
func (m *Monitor) publishLocked() (State, func(State)) {
	m.seq++
	return m.snapshotLocked(), m.observer
}

func (m *Monitor) snapshotLocked() State {
	return State{
		Phase:            m.phase,
		RemainingSeconds: m.remaining,
		LastActivityAt:   m.lastActivityAt,
		WarningDeadline:  m.warningDeadline,
		Enabled:          m.enabled,
		Seq:              m.seq,
	}
}

func notify(fn func(State), s State) {
	if fn != nil {
		fn(s)
	}
}
