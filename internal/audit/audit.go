// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit records session lifecycle events as JSON lines with secret redaction.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Session lifecycle event types.
const (
	EventSessionStarted      = "SESSION_STARTED"
	EventSessionEnded        = "SESSION_ENDED"
	EventSessionWarning      = "SESSION_WARNING"
	EventSessionExtended     = "SESSION_EXTENDED"
	EventSessionAcknowledged = "SESSION_ACKNOWLEDGED"
	EventSessionTimeout      = "SESSION_TIMEOUT"
	EventForcedLogout        = "SESSION_FORCED_LOGOUT"
	EventLogoutFailed        = "SESSION_LOGOUT_FAILED"
	EventLoginFailed         = "LOGIN_FAILED"
	EventMenuReloaded        = "MENU_RELOADED"
)

// DefaultMaxFileSize is the default max file size before rotation (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// ErrClosed is returned when logging to a closed logger.
var ErrClosed = errors.New("audit log is closed")

// =============================================================================
// AUDIT EVENT
// =============================================================================

// Event represents a single audit log entry.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"event_type"`
	SessionID string            `json:"session_id,omitempty"`
	User      string            `json:"user,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event as a single human-readable line.
func (e *Event) ToLogLine() string {
	status := "SUCCESS"
	if !e.Success {
		status = "FAILURE"
		if e.Error != "" {
			status = "ERROR: " + e.Error
		}
	}

	var meta []string
	for _, k := range sortedKeys(e.Metadata) {
		meta = append(meta, k+"="+e.Metadata[k])
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s | %s",
		e.Timestamp.Format("2006-01-02 15:04:05"),
		e.Type,
		e.SessionID,
		e.User,
		strings.Join(meta, " "),
		status,
	)
}

// =============================================================================
// REDACTION
// =============================================================================

// Redactor replaces sensitive data in a string.
type Redactor interface {
	Redact(input string) string
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// NewPatternRedactor creates a new pattern-based redactor.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{name: name, pattern: pattern, replace: replace}
}

// Redact replaces matches with the replacement string.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllString(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
	replace string
}{
	{"JWT", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
	{"Bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"},
	{"Token", regexp.MustCompile(`(?i)(token|secret)\s*[=:]\s*\S+`), "[TOKEN_REDACTED]"},
}

func defaultRedactors() []Redactor {
	redactors := make([]Redactor, 0, len(secretPatterns))
	for _, sp := range secretPatterns {
		redactors = append(redactors, NewPatternRedactor(sp.name, sp.pattern, sp.replace))
	}
	return redactors
}

// RedactSecrets applies the default redaction patterns to the input string.
func RedactSecrets(input string) string {
	result := input
	for _, sp := range secretPatterns {
		result = sp.pattern.ReplaceAllString(result, sp.replace)
	}
	return result
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger appends audit events to a file. It is safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	enabled   bool
	maxSize   int64
	redactors []Redactor
	now       func() time.Time
}

// Open opens (or creates) the audit log at path.
func Open(path string) (*Logger, error) {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		path:      path,
		file:      file,
		enabled:   true,
		maxSize:   DefaultMaxFileSize,
		redactors: defaultRedactors(),
		now:       time.Now,
	}, nil
}

// Log writes an event. Missing IDs and timestamps are filled in. A nil
// Logger discards events.
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return nil
	}
	if l.file == nil {
		return ErrClosed
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.Error = l.redactLocked(event.Error)
	if len(event.Metadata) > 0 {
		clean := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			clean[k] = l.redactLocked(v)
		}
		event.Metadata = clean
	}

	if err := l.checkRotationLocked(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// LogEvent logs a successful event of the given type.
func (l *Logger) LogEvent(sessionID, eventType string, metadata map[string]string) error {
	return l.Log(Event{
		Type:      eventType,
		SessionID: sessionID,
		Success:   true,
		Metadata:  metadata,
	})
}

// LogFailure logs a failed event of the given type.
func (l *Logger) LogFailure(sessionID, eventType string, cause error, metadata map[string]string) error {
	event := Event{
		Type:      eventType,
		SessionID: sessionID,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	return l.Log(event)
}

// Session returns a Recorder bound to one session and user.
func (l *Logger) Session(sessionID, user string) *Recorder {
	return &Recorder{logger: l, sessionID: sessionID, user: user}
}

// Redact applies all redactors to the input string.
func (l *Logger) Redact(input string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.redactLocked(input)
}

func (l *Logger) redactLocked(input string) string {
	result := input
	for _, r := range l.redactors {
		result = r.Redact(result)
	}
	return result
}

// AddRedactor adds a custom redactor.
func (l *Logger) AddRedactor(r Redactor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redactors = append(l.redactors, r)
}

// SetEnabled enables or disables logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetMaxSize sets the maximum file size before rotation. Zero disables rotation.
func (l *Logger) SetMaxSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxSize = size
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// rotateLocked moves the current file aside with a timestamp suffix and
// starts a new one.
func (l *Logger) rotateLocked() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}

	ext := filepath.Ext(l.path)
	rotated := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(l.path, ext), l.now().Format("20060102_150405.000000000"), ext)
	if err := os.Rename(l.path, rotated); err != nil {
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		l.file = nil
		return fmt.Errorf("failed to create new audit log after rotation: %w", err)
	}
	l.file = file
	return nil
}

func (l *Logger) checkRotationLocked() error {
	if l.maxSize <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return nil
	}
	if info.Size() >= l.maxSize {
		return l.rotateLocked()
	}
	return nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		l.file = nil
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// DefaultPath returns the default audit log path (~/.schoolhub/audit.log).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".schoolhub", "audit.log")
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder logs events for a single session. A nil Recorder discards events.
type Recorder struct {
	logger    *Logger
	sessionID string
	user      string
}

// Record logs a successful event.
func (r *Recorder) Record(eventType string, metadata map[string]string) {
	if r == nil || r.logger == nil {
		return
	}
	_ = r.logger.Log(Event{
		Type:      eventType,
		SessionID: r.sessionID,
		User:      r.user,
		Success:   true,
		Metadata:  metadata,
	})
}

// RecordFailure logs a failed event.
func (r *Recorder) RecordFailure(eventType string, cause error, metadata map[string]string) {
	if r == nil || r.logger == nil {
		return
	}
	event := Event{
		Type:      eventType,
		SessionID: r.sessionID,
		User:      r.user,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	_ = r.logger.Log(event)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
