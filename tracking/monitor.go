package tracking

import (
	"context"
	"sync"

	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// Monitor forwards per-round training metrics to a run. It satisfies the
// boosting library's Observer interface. Observe cannot fail, so the first
// logging error is kept and reported by Err; later rounds are dropped.
type Monitor struct {
	ctx    context.Context
	run    Run
	logger log.Logger

	mu  sync.Mutex
	err error
}

// NewMonitor creates a monitor logging to run.
func NewMonitor(ctx context.Context, run Run, logger log.Logger) *Monitor {
	if logger == nil {
		logger = log.GetLoggerWithName("tracking")
	}
	return &Monitor{ctx: ctx, run: run, logger: logger}
}

// Observe logs value under the metric channel, e.g. "valid_multi_logloss".
func (m *Monitor) Observe(round int, metric string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return
	}
	if err := m.run.LogMetric(m.ctx, metric, value); err != nil {
		m.err = err
		m.logger.Error("Failed to log training metric", err,
			log.ChannelKey, metric,
			log.IterationKey, round,
		)
		return
	}
	m.logger.Debug("Training metric logged",
		log.ChannelKey, metric,
		log.IterationKey, round,
		log.LossKey, value,
	)
}

// Err returns the first error returned by the run, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
