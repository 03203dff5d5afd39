package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// testSink is the output shared by a TestLogger and every logger derived
// from it, so a parent sees what its children wrote.
type testSink struct {
	mu    sync.Mutex
	buf   *bytes.Buffer
	level Level
}

func (s *testSink) enabled(level Level) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level <= level
}

// TestLogger captures records as JSON lines in memory. It is safe for use
// from the boosting library's worker goroutines.
type TestLogger struct {
	sink *testSink
	// bound holds the key/value pairs added with With, in order.
	bound []any
}

// NewTestLogger creates a TestLogger capturing messages at or above level.
//
//	logger, buffer := log.NewTestLogger(log.LevelDebug)
//	logger.Info("round evaluated", log.IterationKey, 3)
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	sink := &testSink{buf: &bytes.Buffer{}, level: level}
	return &TestLogger{sink: sink}, sink.buf
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.log(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.log(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.log(LevelError, msg, fields) }

// With returns a logger writing to the same sink with fields bound.
func (t *TestLogger) With(fields ...any) Logger {
	bound := make([]any, 0, len(t.bound)+len(fields))
	bound = append(bound, t.bound...)
	bound = append(bound, fields...)
	return &TestLogger{sink: t.sink, bound: bound}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.sink.enabled(level)
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	if !t.sink.enabled(level) {
		return
	}
	entry := map[string]any{
		"level":   level.String(),
		"message": msg,
	}
	addFields(entry, t.bound)
	// A leading error is recorded under "error", as the zerolog logger does.
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			entry["error"] = err.Error()
			fields = fields[1:]
		}
	}
	addFields(entry, fields)

	line, err := json.Marshal(entry)
	if err != nil {
		line, _ = json.Marshal(map[string]any{
			"level":   level.String(),
			"message": msg,
			"error":   err.Error(),
		})
	}

	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.buf.Write(line)
	t.sink.buf.WriteByte('\n')
}

func addFields(entry map[string]any, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			entry[key] = err.Error()
			continue
		}
		entry[key] = fields[i+1]
	}
}

// GetLogEntries decodes the captured lines. Numbers come back as float64.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	t.sink.mu.Lock()
	out := t.sink.buf.String()
	t.sink.mu.Unlock()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured record's message contains
// message.
func (t *TestLogger) ContainsMessage(message string) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if msg, ok := entry["message"].(string); ok && strings.Contains(msg, message) {
			return true
		}
	}
	return false
}

// ContainsField reports whether a captured record carries key with value.
// Pass numbers as float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops captured output.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.buf.Reset()
}

// TestLoggerProvider is a LoggerProvider whose loggers all write to one
// TestLogger. Install it with SetProvider to capture what packages log
// through GetLoggerWithName.
type TestLoggerProvider struct {
	root *TestLogger
}

// NewTestLoggerProvider creates a provider capturing messages at or above
// level.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *TestLogger) {
	root, _ := NewTestLogger(level)
	return &TestLoggerProvider{root: root}, root
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.root }

// GetLoggerWithName tags records with ComponentKey like the zerolog provider.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

// SetLevel changes the level of every logger handed out so far.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.root.sink.mu.Lock()
	defer p.root.sink.mu.Unlock()
	p.root.sink.level = level
}
