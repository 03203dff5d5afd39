package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/sklearn/lightgbm"
)

// fakeServer records the requests of the sync backend.
type fakeServer struct {
	mu       sync.Mutex
	token    string
	requests []string
	metrics  []metricRequest
	tags     []string
	images   []imageRequest
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/projects/team/wine":
		_ = json.NewEncoder(w).Encode(projectResponse{ID: "p-1", Name: "team/wine"})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/projects/team/wine/runs":
		var req startRunRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(startRunResponse{ID: "WINE-7"})
	case r.URL.Path == "/api/v1/runs/WINE-7/metrics":
		var req metricRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.metrics = append(f.metrics, req)
	case r.URL.Path == "/api/v1/runs/WINE-7/images":
		var req imageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.images = append(f.images, req)
	case r.URL.Path == "/api/v1/runs/WINE-7/tags":
		var req tagRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.tags = append(f.tags, req.Tag)
	case r.URL.Path == "/api/v1/runs/WINE-7/stop":
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func TestHTTPSession_RunLifecycle(t *testing.T) {
	fake := &fakeServer{token: "secret"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	session, err := Open(ctx, Options{Mode: ModeSync, Project: "team/wine", APIToken: "secret", URL: srv.URL})
	require.NoError(t, err)
	defer session.Close()

	run, err := session.StartRun(ctx, "lightGBM-on-wine", map[string]any{"num_leaves": 8})
	require.NoError(t, err)
	assert.Equal(t, "WINE-7", run.ID())

	require.NoError(t, run.LogMetric(ctx, "accuracy", 0.9))
	require.NoError(t, run.LogMetric(ctx, "accuracy", 0.95))
	require.NoError(t, run.LogImage(ctx, "performance charts", Image{Name: "roc", Format: "png", Data: []byte{0x89, 'P', 'N', 'G'}}))
	require.NoError(t, run.AddTag(ctx, "ci-pipeline"))
	require.NoError(t, run.Stop(ctx))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.metrics, 2)
	assert.Equal(t, "accuracy", fake.metrics[1].Channel)
	assert.Equal(t, 0.95, fake.metrics[1].Value)
	require.Len(t, fake.images, 1)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, fake.images[0].Data)
	assert.Equal(t, []string{"ci-pipeline"}, fake.tags)
}

func TestHTTPSession_Errors(t *testing.T) {
	fake := &fakeServer{token: "secret"}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		_, err := Open(ctx, Options{Mode: ModeSync, Project: "team/wine", URL: srv.URL})
		var ae *errors.AuthenticationError
		assert.True(t, errors.As(err, &ae))
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := Open(ctx, Options{Mode: ModeSync, APIToken: "secret", URL: srv.URL})
		var ae *errors.AuthenticationError
		assert.True(t, errors.As(err, &ae))
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := Open(ctx, Options{Mode: ModeSync, Project: "team/wine", APIToken: "wrong", URL: srv.URL})
		var ae *errors.AuthenticationError
		assert.True(t, errors.As(err, &ae))
	})

	t.Run("server error", func(t *testing.T) {
		_, err := Open(ctx, Options{Mode: ModeSync, Project: "other", APIToken: "secret", URL: srv.URL})
		var ce *errors.ConnectivityError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("unreachable", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.URL
		closed.Close()
		_, err := Open(ctx, Options{Mode: ModeSync, Project: "team/wine", APIToken: "secret", URL: addr})
		var ce *errors.ConnectivityError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := Open(ctx, Options{Mode: ModeSync, Project: "team/wine", APIToken: "secret"})
		var pe *errors.InvalidParameterError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := Open(ctx, Options{Mode: "async"})
		var pe *errors.InvalidParameterError
		assert.True(t, errors.As(err, &pe))
	})
}

func TestOfflineSession(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	session, err := Open(ctx, Options{Mode: ModeOffline, OfflineDir: dir, Project: "team/wine"})
	require.NoError(t, err)
	run, err := session.StartRun(ctx, "lightGBM-on-wine", map[string]any{"num_class": 3})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(run.ID(), "OFFLINE-"))

	require.NoError(t, run.LogMetric(ctx, "f1_score", 0.9))
	require.NoError(t, run.LogImage(ctx, "performance charts", Image{Format: "png", Data: []byte("png-bytes")}))
	require.NoError(t, run.LogImage(ctx, "performance charts", Image{Format: "png", Data: []byte("more")}))
	require.NoError(t, run.AddTag(ctx, "ci-pipeline"))
	require.NoError(t, run.Stop(ctx))
	assert.Error(t, run.LogMetric(ctx, "late", 1))

	runDir := filepath.Join(dir, run.ID())
	rec, err := ReadOfflineRecord(runDir)
	require.NoError(t, err)
	assert.Equal(t, run.ID(), rec.ID)
	assert.Equal(t, "team/wine", rec.Project)
	assert.Equal(t, []string{"ci-pipeline"}, rec.Tags)
	require.Len(t, rec.Metrics["f1_score"], 1)
	assert.Equal(t, 0.9, rec.Metrics["f1_score"][0].Value)
	require.Len(t, rec.Images, 2)
	assert.Equal(t, "performance_charts_1.png", rec.Images[1].File)
	assert.NotNil(t, rec.Stopped)

	data, err := os.ReadFile(filepath.Join(runDir, rec.Images[0].File))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestMemorySession(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	run, err := mem.StartRun(ctx, "lightGBM-on-wine", map[string]any{"a": 1})
	require.NoError(t, err)
	require.NoError(t, run.LogMetric(ctx, "accuracy", 0.5))
	require.NoError(t, run.LogMetric(ctx, "accuracy", 0.7))
	require.NoError(t, run.AddTag(ctx, "x"))

	runs := mem.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, []float64{0.5, 0.7}, runs[0].MetricValues("accuracy"))
	assert.Equal(t, []string{"x"}, runs[0].Tags())
	assert.Equal(t, 1, runs[0].Params()["a"])

	require.NoError(t, mem.Close())
	_, err = mem.StartRun(ctx, "again", nil)
	assert.Error(t, err)
}

func TestMonitor(t *testing.T) {
	ctx := context.Background()
	run, err := NewMemory().StartRun(ctx, "run", nil)
	require.NoError(t, err)

	var obs lightgbm.Observer = NewMonitor(ctx, run, nil)
	obs.Observe(1, "valid_multi_logloss", 1.0)
	obs.Observe(2, "valid_multi_logloss", 0.8)

	mrun := run.(*MemoryRun)
	assert.Equal(t, []float64{1.0, 0.8}, mrun.MetricValues("valid_multi_logloss"))

	require.NoError(t, run.Stop(ctx))
	mon := obs.(*Monitor)
	obs.Observe(3, "valid_multi_logloss", 0.7)
	assert.Error(t, mon.Err())
}
