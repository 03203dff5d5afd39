// Package tracking is a small experiment-tracking client. A Session
// connects to a backend and starts Runs; a Run receives scalar metrics,
// images and tags for one training run.
//
// Three backends are available:
//
//   - sync: HTTP/JSON client for a remote tracking server.
//   - offline: writes the run to a local directory (run.yaml plus images).
//   - debug: keeps everything in memory; used by tests.
package tracking

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// Backend modes.
const (
	ModeSync    = "sync"
	ModeOffline = "offline"
	ModeDebug   = "debug"
)

// DefaultTimeout bounds every request of the sync backend.
const DefaultTimeout = 30 * time.Second

// Image is an encoded picture attached to a run.
type Image struct {
	Name   string
	Format string // "png"
	Data   []byte
}

// Session is an authenticated connection to a tracking backend.
type Session interface {
	// StartRun creates a new run with the given name and parameters.
	StartRun(ctx context.Context, name string, params map[string]any) (Run, error)
	// Close releases the session.
	Close() error
}

// Run records the results of one training run. Every Log call appends a
// new entry to the named channel.
type Run interface {
	ID() string
	LogMetric(ctx context.Context, name string, value float64) error
	LogImage(ctx context.Context, name string, img Image) error
	AddTag(ctx context.Context, tag string) error
	Stop(ctx context.Context) error
}

// Options configures Open.
type Options struct {
	Mode       string
	Project    string
	APIToken   string
	URL        string
	OfflineDir string
	Timeout    time.Duration

	// HTTPClient overrides the client of the sync backend.
	HTTPClient *http.Client
	Logger     log.Logger
}

// Open connects to the backend selected by opts.Mode. The sync backend
// verifies the credentials before returning.
func Open(ctx context.Context, opts Options) (Session, error) {
	if opts.Logger == nil {
		opts.Logger = log.GetLoggerWithName("tracking")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	mode := strings.ToLower(opts.Mode)
	if mode == "" {
		mode = ModeSync
	}
	opts.Logger = opts.Logger.With(log.BackendKey, mode, log.ProjectKey, opts.Project)

	switch mode {
	case ModeSync:
		return openHTTP(ctx, opts)
	case ModeOffline:
		return openOffline(opts)
	case ModeDebug:
		m := NewMemory()
		m.logger = opts.Logger
		return m, nil
	default:
		return nil, errors.NewInvalidParameterError("TRACKING_MODE", "must be one of sync, offline, debug", opts.Mode)
	}
}
