// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/schoolhub-tui/internal/audit"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in deadline order. Timers
// scheduled by callbacks fire too if they fall inside the window.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.fn()
	}
}

func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) Record(eventType string, _ map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
}

func (a *recordingAuditor) RecordFailure(eventType string, _ error, _ map[string]string) {
	a.Record(eventType, nil)
}

func (a *recordingAuditor) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

type harness struct {
	clock   *manualClock
	auditor *recordingAuditor
	states  *stateLog
	calls   atomic.Int32
	monitor *Monitor
}

func newHarness(t *testing.T, idleSecs, warnSecs int, logout LogoutFunc) *harness {
	t.Helper()
	h := &harness{
		clock:   newManualClock(),
		auditor: &recordingAuditor{},
		states:  &stateLog{},
	}
	h.monitor = New(
		WithClock(h.clock),
		WithAuditor(h.auditor),
		WithObserver(h.states.observe),
	)
	if logout == nil {
		logout = func(context.Context) error { return nil }
	}
	counted := func(ctx context.Context) error {
		h.calls.Add(1)
		return logout(ctx)
	}
	require.NoError(t, h.monitor.Configure(idleSecs, warnSecs, counted))
	t.Cleanup(func() {
		h.monitor.Close()
		h.monitor.Wait()
	})
	return h
}

func (h *harness) seconds(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
	}
}

// =============================================================================
// CONFIGURATION TESTS
// =============================================================================

func TestConfigure_RejectsInvalidValues(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name  string
		idle  int
		warn  int
		fn    LogoutFunc
		field string
	}{
		{"zero idle", 0, 60, noop, "idle_timeout_seconds"},
		{"negative idle", -5, 60, noop, "idle_timeout_seconds"},
		{"zero warning", 900, 0, noop, "warning_countdown_seconds"},
		{"nil callback", 900, 60, nil, "on_logout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(WithClock(newManualClock()))
			err := m.Configure(tt.idle, tt.warn, tt.fn)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfigure_RestartsIdlePeriod(t *testing.T) {
	h := newHarness(t, 10, 5, nil)
	h.monitor.SetEnabled(true)

	h.seconds(8)
	require.NoError(t, h.monitor.Configure(20, 5, func(context.Context) error { return nil }))

	h.seconds(19)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)

	h.seconds(1)
	assert.Equal(t, PhaseWarning, h.monitor.State().Phase)
	assert.Equal(t, 5, h.monitor.State().RemainingSeconds)
}

func TestConfigure_DuringWarningReturnsToActive(t *testing.T) {
	h := newHarness(t, 5, 10, nil)
	h.monitor.SetEnabled(true)

	h.seconds(7)
	require.Equal(t, PhaseWarning, h.monitor.State().Phase)

	require.NoError(t, h.monitor.Configure(5, 10, func(context.Context) error { return nil }))
	st := h.monitor.State()
	assert.Equal(t, PhaseActive, st.Phase)
	assert.Zero(t, st.RemainingSeconds)
	assert.True(t, st.WarningDeadline.IsZero())
}

// =============================================================================
// IDLE CYCLE TESTS
// =============================================================================

func TestIdleTransition_Timing(t *testing.T) {
	h := newHarness(t, 5, 60, nil)
	h.monitor.SetEnabled(true)

	for i := 1; i < 5; i++ {
		h.seconds(1)
		require.Equal(t, PhaseActive, h.monitor.State().Phase, "t=%ds", i)
	}
	h.seconds(1)
	assert.Equal(t, PhaseWarning, h.monitor.State().Phase)
}

func TestActivity_RepeatedDuringActiveKeepsPhase(t *testing.T) {
	h := newHarness(t, 5, 5, nil)
	h.monitor.SetEnabled(true)

	for i := 0; i < 10; i++ {
		h.monitor.NotifyActivity()
		assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	}
	assert.Len(t, h.states.all(), 1, "activity outside a warning must not notify observers")
}

func TestActivity_RestartsFullIdlePeriod(t *testing.T) {
	h := newHarness(t, 5, 10, nil)
	h.monitor.SetEnabled(true)

	h.seconds(5 + 6)
	require.Equal(t, 4, h.monitor.State().RemainingSeconds)
	h.monitor.NotifyActivity()

	h.seconds(4)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	h.seconds(1)
	st := h.monitor.State()
	assert.Equal(t, PhaseWarning, st.Phase)
	assert.Equal(t, 10, st.RemainingSeconds, "countdown restarts, it does not resume")
}

func TestIdleCycle_LogsOutExactlyOnce(t *testing.T) {
	h := newHarness(t, 900, 60, nil)
	h.monitor.SetEnabled(true)

	h.seconds(899)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)

	h.seconds(1)
	st := h.monitor.State()
	require.Equal(t, PhaseWarning, st.Phase)
	assert.Equal(t, 60, st.RemainingSeconds)
	assert.Equal(t, h.clock.Now().Add(60*time.Second), st.WarningDeadline)

	h.seconds(59)
	assert.Equal(t, PhaseWarning, h.monitor.State().Phase)
	assert.Equal(t, 1, h.monitor.State().RemainingSeconds)
	assert.Zero(t, h.calls.Load())

	h.seconds(1)
	h.monitor.Wait()

	assert.Equal(t, int32(1), h.calls.Load())
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)

	events := h.auditor.Events()
	assert.Contains(t, events, audit.EventSessionWarning)
	assert.Contains(t, events, audit.EventSessionTimeout)
	assert.NotContains(t, events, audit.EventLogoutFailed)
}

func TestIdleCycle_ObserverSeesLoggingOut(t *testing.T) {
	h := newHarness(t, 2, 2, nil)
	h.monitor.SetEnabled(true)

	h.seconds(4)
	h.monitor.Wait()

	var phases []Phase
	for _, s := range h.states.all() {
		phases = append(phases, s.Phase)
	}
	assert.Equal(t, []Phase{
		PhaseActive,     // enabled
		PhaseWarning,    // idle elapsed
		PhaseWarning,    // tick 2 -> 1
		PhaseLoggingOut, // tick 1 -> 0
		PhaseActive,     // logout resolved
	}, phases)
}

func TestObserver_SeqOrdersInterleavedDeliveries(t *testing.T) {
	clock := newManualClock()
	var (
		mu        sync.Mutex
		delivered []State
		once      sync.Once
		m         *Monitor
	)
	record := func(s State) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, s)
	}
	m = New(
		WithClock(clock),
		WithObserver(func(s State) {
			if s.Phase == PhaseWarning {
				// The user acknowledges before this snapshot is delivered.
				once.Do(func() {
					done := make(chan struct{})
					go func() {
						defer close(done)
						m.AcknowledgeWarning()
					}()
					<-done
				})
			}
			record(s)
		}),
	)
	require.NoError(t, m.Configure(2, 3, func(context.Context) error { return nil }))
	t.Cleanup(func() {
		m.Close()
		m.Wait()
	})

	m.SetEnabled(true)
	clock.Advance(2 * time.Second)

	mu.Lock()
	got := append([]State(nil), delivered...)
	mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, []Phase{PhaseActive, PhaseActive, PhaseWarning},
		[]Phase{got[0].Phase, got[1].Phase, got[2].Phase})

	// The late WARNING carries an older Seq than the acknowledgement.
	assert.Less(t, got[2].Seq, got[1].Seq)
	assert.Less(t, got[0].Seq, got[2].Seq)

	var latest State
	for _, s := range got {
		if s.Seq > latest.Seq {
			latest = s
		}
	}
	current := m.State()
	assert.Equal(t, PhaseActive, current.Phase)
	assert.Equal(t, current.Phase, latest.Phase)
	assert.Equal(t, current.Seq, latest.Seq)
}

func TestState_SeqIncreasesAcrossCycle(t *testing.T) {
	h := newHarness(t, 2, 2, nil)
	h.monitor.SetEnabled(true)

	h.seconds(4)
	h.monitor.Wait()

	states := h.states.all()
	require.NotEmpty(t, states)
	for i := 1; i < len(states); i++ {
		assert.Greater(t, states[i].Seq, states[i-1].Seq)
	}
	assert.Equal(t, states[len(states)-1].Seq, h.monitor.State().Seq)
}

func TestCountdown_DecreasesByOneAndNeverNegative(t *testing.T) {
	h := newHarness(t, 3, 5, nil)
	h.monitor.SetEnabled(true)

	h.seconds(3 + 5)
	h.monitor.Wait()

	var countdown []int
	for _, s := range h.states.all() {
		require.GreaterOrEqual(t, s.RemainingSeconds, 0)
		if s.Phase == PhaseWarning {
			countdown = append(countdown, s.RemainingSeconds)
		}
	}
	assert.Equal(t, []int{5, 4, 3, 2, 1}, countdown)
}

func TestActivity_PreventsLogout(t *testing.T) {
	h := newHarness(t, 10, 5, nil)
	h.monitor.SetEnabled(true)

	for i := 0; i < 5; i++ {
		h.seconds(9)
		h.monitor.NotifyActivity()
	}
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)

	// Into the warning, then interrupt with one second left.
	h.seconds(10 + 4)
	require.Equal(t, PhaseWarning, h.monitor.State().Phase)
	require.Equal(t, 1, h.monitor.State().RemainingSeconds)

	h.monitor.Notify(SignalPointerMove)
	st := h.monitor.State()
	assert.Equal(t, PhaseActive, st.Phase)
	assert.Zero(t, st.RemainingSeconds)
	assert.Equal(t, h.clock.Now(), st.LastActivityAt)

	h.seconds(9)
	h.monitor.Wait()
	assert.Zero(t, h.calls.Load())
	assert.Contains(t, h.auditor.Events(), audit.EventSessionExtended)
}

func TestAcknowledgeWarning_IsAudited(t *testing.T) {
	h := newHarness(t, 5, 30, nil)
	h.monitor.SetEnabled(true)

	// Outside a warning the acknowledgement is plain activity.
	h.monitor.AcknowledgeWarning()
	assert.NotContains(t, h.auditor.Events(), audit.EventSessionAcknowledged)

	h.seconds(5)
	require.Equal(t, PhaseWarning, h.monitor.State().Phase)

	h.monitor.Notify(SignalAcknowledge)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	assert.Contains(t, h.auditor.Events(), audit.EventSessionAcknowledged)
	assert.NotContains(t, h.auditor.Events(), audit.EventSessionExtended)
}

// =============================================================================
// ENABLE / DISABLE TESTS
// =============================================================================

func TestDisabled_NeverLogsOut(t *testing.T) {
	h := newHarness(t, 1, 1, nil)

	h.seconds(100)
	h.monitor.Wait()
	assert.Zero(t, h.calls.Load())
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	assert.False(t, h.monitor.State().Enabled)
}

func TestSetEnabledFalse_DuringWarningCancels(t *testing.T) {
	h := newHarness(t, 5, 10, nil)
	h.monitor.SetEnabled(true)

	h.seconds(8)
	require.Equal(t, PhaseWarning, h.monitor.State().Phase)

	h.monitor.SetEnabled(false)
	st := h.monitor.State()
	assert.Equal(t, PhaseActive, st.Phase)
	assert.Zero(t, st.RemainingSeconds)
	assert.Zero(t, h.clock.pending())

	h.seconds(60)
	h.monitor.Wait()
	assert.Zero(t, h.calls.Load())

	h.monitor.SetEnabled(true)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	assert.Zero(t, h.calls.Load())
}

func TestSetEnabled_SameValueIsNoop(t *testing.T) {
	h := newHarness(t, 5, 5, nil)
	h.monitor.SetEnabled(true)
	h.seconds(3)

	h.monitor.SetEnabled(true)
	h.seconds(2)
	assert.Equal(t, PhaseWarning, h.monitor.State().Phase, "second enable must not restart the idle period")
}

func TestNotify_IgnoredWhileDisabled(t *testing.T) {
	h := newHarness(t, 5, 5, nil)
	before := h.monitor.State().LastActivityAt

	h.seconds(3)
	h.monitor.NotifyActivity()
	assert.Equal(t, before, h.monitor.State().LastActivityAt)
}

func TestUnconfigured_StaysInert(t *testing.T) {
	clock := newManualClock()
	m := New(WithClock(clock))
	m.SetEnabled(true)

	clock.Advance(time.Hour)
	m.ForceLogout()
	m.Wait()

	assert.Equal(t, PhaseActive, m.State().Phase)
	assert.Zero(t, clock.pending())
}

// =============================================================================
// LOGOUT TESTS
// =============================================================================

func TestForceLogout_WhileLoggingOutIsNoop(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, 900, 60, func(context.Context) error {
		<-release
		return nil
	})
	h.monitor.SetEnabled(true)

	h.monitor.ForceLogout()
	require.Equal(t, PhaseLoggingOut, h.monitor.State().Phase)

	h.monitor.ForceLogout()
	h.monitor.NotifyActivity()
	assert.Equal(t, PhaseLoggingOut, h.monitor.State().Phase)

	close(release)
	h.monitor.Wait()

	assert.Equal(t, int32(1), h.calls.Load())
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	assert.Contains(t, h.auditor.Events(), audit.EventForcedLogout)
}

func TestLogoutFailure_ResetsAndRearms(t *testing.T) {
	h := newHarness(t, 3, 2, func(context.Context) error {
		return errors.New("backend unavailable")
	})
	h.monitor.SetEnabled(true)

	h.seconds(5)
	h.monitor.Wait()

	st := h.monitor.State()
	assert.Equal(t, PhaseActive, st.Phase)
	assert.True(t, st.Enabled)
	assert.Contains(t, h.auditor.Events(), audit.EventLogoutFailed)

	// Still enabled: the next idle cycle runs normally.
	h.seconds(3)
	assert.Equal(t, PhaseWarning, h.monitor.State().Phase)

	// So does a fresh enable cycle.
	h.monitor.SetEnabled(false)
	h.monitor.SetEnabled(true)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	h.seconds(3 + 2)
	h.monitor.Wait()
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestLogoutPanic_TreatedAsFailure(t *testing.T) {
	h := newHarness(t, 1, 1, func(context.Context) error {
		panic("boom")
	})
	h.monitor.SetEnabled(true)

	h.monitor.ForceLogout()
	h.monitor.Wait()

	assert.Equal(t, PhaseActive, h.monitor.State().Phase)
	assert.Contains(t, h.auditor.Events(), audit.EventLogoutFailed)
}

func TestDisableDuringLogout_IgnoresLateCompletion(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, 2, 1, func(context.Context) error {
		<-release
		return nil
	})
	h.monitor.SetEnabled(true)

	h.seconds(3)
	require.Equal(t, PhaseLoggingOut, h.monitor.State().Phase)

	h.monitor.SetEnabled(false)
	assert.Equal(t, PhaseActive, h.monitor.State().Phase)

	h.monitor.SetEnabled(true)
	close(release)
	h.monitor.Wait()

	// The stale completion must not re-arm a second idle timer.
	assert.Equal(t, 1, h.clock.pending())
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestLogout_ReceivesBoundedContext(t *testing.T) {
	clock := newManualClock()
	m := New(WithClock(clock), WithLogoutTimeout(50*time.Millisecond))
	t.Cleanup(m.Close)

	var sawDeadline atomic.Bool
	require.NoError(t, m.Configure(1, 1, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		<-ctx.Done()
		return ctx.Err()
	}))
	m.SetEnabled(true)
	m.ForceLogout()
	m.Wait()

	assert.True(t, sawDeadline.Load())
	assert.Equal(t, PhaseActive, m.State().Phase)
}

func TestLogout_ContextCarriesReason(t *testing.T) {
	reasons := make(chan Reason, 2)
	h := newHarness(t, 2, 1, func(ctx context.Context) error {
		r, ok := ReasonFrom(ctx)
		if ok {
			reasons <- r
		}
		return nil
	})
	h.monitor.SetEnabled(true)

	h.monitor.ForceLogout()
	h.monitor.Wait()
	h.seconds(3)
	h.monitor.Wait()

	require.Len(t, reasons, 2)
	assert.Equal(t, ReasonForced, <-reasons)
	assert.Equal(t, ReasonIdleTimeout, <-reasons)
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "ACTIVE", PhaseActive.String())
	assert.Equal(t, "WARNING", PhaseWarning.String())
	assert.Equal(t, "LOGGING_OUT", PhaseLoggingOut.String())
	assert.Equal(t, "UNKNOWN", Phase(42).String())
}
