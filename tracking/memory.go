package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// MetricEntry is one logged scalar value.
type MetricEntry struct {
	Name  string
	Value float64
	Time  time.Time
}

// ImageEntry is one logged image.
type ImageEntry struct {
	Channel string
	Image   Image
}

// Memory is the debug backend. It keeps every run in memory and lets tests
// inspect what was logged.
type Memory struct {
	mu     sync.Mutex
	runs   []*MemoryRun
	closed bool
	logger log.Logger
}

// NewMemory creates an empty in-memory session.
func NewMemory() *Memory {
	return &Memory{logger: log.GetLoggerWithName("tracking")}
}

// StartRun implements Session.
func (m *Memory) StartRun(_ context.Context, name string, params map[string]any) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.NewValueError("tracking.Memory.StartRun", "session is closed")
	}
	run := &MemoryRun{
		id:     "DEBUG-" + uuid.NewString(),
		name:   name,
		params: copyParams(params),
	}
	m.runs = append(m.runs, run)
	m.logger.Debug("Run started", log.RunIDKey, run.id, "name", name)
	return run, nil
}

// Close implements Session.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Runs returns the runs started so far.
func (m *Memory) Runs() []*MemoryRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MemoryRun(nil), m.runs...)
}

// MemoryRun is a run of the debug backend.
type MemoryRun struct {
	mu      sync.Mutex
	id      string
	name    string
	params  map[string]any
	metrics []MetricEntry
	images  []ImageEntry
	tags    []string
	stopped bool
}

func (r *MemoryRun) ID() string { return r.id }

// Name returns the run name.
func (r *MemoryRun) Name() string { return r.name }

// Params returns a copy of the run parameters.
func (r *MemoryRun) Params() map[string]any { return copyParams(r.params) }

func (r *MemoryRun) LogMetric(_ context.Context, name string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errStopped("LogMetric")
	}
	r.metrics = append(r.metrics, MetricEntry{Name: name, Value: value, Time: time.Now()})
	return nil
}

func (r *MemoryRun) LogImage(_ context.Context, name string, img Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errStopped("LogImage")
	}
	r.images = append(r.images, ImageEntry{Channel: name, Image: img})
	return nil
}

func (r *MemoryRun) AddTag(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errStopped("AddTag")
	}
	r.tags = append(r.tags, tag)
	return nil
}

func (r *MemoryRun) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

// Metrics returns every logged metric entry in order.
func (r *MemoryRun) Metrics() []MetricEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MetricEntry(nil), r.metrics...)
}

// MetricValues returns the values logged under name.
func (r *MemoryRun) MetricValues(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []float64
	for _, m := range r.metrics {
		if m.Name == name {
			values = append(values, m.Value)
		}
	}
	return values
}

// Images returns every logged image in order.
func (r *MemoryRun) Images() []ImageEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ImageEntry(nil), r.images...)
}

// Tags returns the tags added so far.
func (r *MemoryRun) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

// Stopped reports whether Stop was called.
func (r *MemoryRun) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func errStopped(op string) error {
	return errors.NewValueError("tracking."+op, "run is stopped")
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
