package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestZerologProvider_Fields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug)

	logger := p.GetLoggerWithName("lightgbm.trainer").With(ModelNameKey, "Booster")
	logger.Info("Training completed", TreesKey, 30, AccuracyKey, 0.97)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "Training completed", e["message"])
	assert.Equal(t, "lightgbm.trainer", e[ComponentKey])
	assert.Equal(t, "Booster", e[ModelNameKey])
	assert.Equal(t, float64(30), e[TreesKey])
	assert.InDelta(t, 0.97, e[AccuracyKey], 1e-12)
}

func TestZerologProvider_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelWarn)
	logger := p.GetLogger()

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])

	p.SetLevel(LevelDebug)
	p.GetLogger().Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestZerologLogger_ErrorCarriesStackAndDetail(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelInfo).GetLogger()

	err := scierrors.NewAuthenticationError("http", "wine", "missing API token")
	logger.Error("Run failed", err, OperationKey, OperationTrack)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Contains(t, e["error"], "authentication failed")
	assert.NotEmpty(t, e["stack"])
	detail, ok := e["detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AuthenticationError", detail["type"])
	assert.Equal(t, "wine", detail["project"])
	assert.Equal(t, OperationTrack, e[OperationKey])
}

func TestSetup(t *testing.T) {
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo))
	defer scierrors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	require.NoError(t, Setup("debug", "json", &buf))

	GetLoggerWithName("pipeline").Debug("hello")
	assert.Contains(t, buf.String(), `"`+ComponentKey+`":"pipeline"`)

	scierrors.Warn(scierrors.NewUndefinedMetricWarning("f1", "no predicted samples", 0))
	assert.Contains(t, buf.String(), "ill-defined")
	assert.Contains(t, buf.String(), `"`+ComponentKey+`":"warnings"`)
}

func TestSetup_Invalid(t *testing.T) {
	err := Setup("verbose", "json", &bytes.Buffer{})
	var ipe *scierrors.InvalidParameterError
	require.True(t, scierrors.As(err, &ipe))
	assert.Equal(t, "LOG_LEVEL", ipe.ParamName)

	err = Setup("info", "xml", &bytes.Buffer{})
	require.True(t, scierrors.As(err, &ipe))
	assert.Equal(t, "LOG_FORMAT", ipe.ParamName)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"", LevelInfo},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTestLogger(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	logger.Debug("dropped")
	logger.With(RunIDKey, "OFFLINE-1").Info("metric logged", MetricNameKey, "accuracy")

	assert.False(t, logger.ContainsMessage("dropped"))
	assert.True(t, logger.ContainsMessage("metric logged"))
	assert.True(t, logger.ContainsField(RunIDKey, "OFFLINE-1"))
	assert.True(t, logger.ContainsField(MetricNameKey, "accuracy"))

	logger.Clear()
	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTestLoggerProvider(t *testing.T) {
	provider, logger := NewTestLoggerProvider(LevelInfo)
	SetProvider(provider)
	t.Cleanup(func() { SetProvider(NewZerologProvider(os.Stderr, LevelInfo)) })

	GetLoggerWithName("tracking").Info("run started", RunIDKey, "OFFLINE-2")
	GetLogger().Debug("dropped")
	provider.SetLevel(LevelDebug)
	GetLoggerWithName("pipeline").Debug("split seed fixed")

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "tracking", entries[0][ComponentKey])
	assert.Equal(t, "OFFLINE-2", entries[0][RunIDKey])
	assert.Equal(t, "pipeline", entries[1][ComponentKey])
	assert.Equal(t, "DEBUG", entries[1]["level"])
	assert.False(t, logger.ContainsMessage("dropped"))
}

func TestTestLogger_Concurrent(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With(IterationKey, i).Info("round evaluated")
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}
