package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, "gbdt", p.String("boosting_type"))
	assert.Equal(t, "multiclass", p.String("objective"))
	assert.Equal(t, 3, p.Int("num_class"))
	assert.Equal(t, 8, p.Int("num_leaves"))
	assert.Equal(t, 0.01, p.Float("learning_rate"))
	assert.Equal(t, 0.9, p.Float("feature_fraction"))
	assert.Equal(t, []string{"boosting_type", "feature_fraction", "learning_rate", "num_class", "num_leaves", "objective"}, p.Keys())
	assert.Equal(t, 10, NumBoostRound)
	assert.Equal(t, "lightGBM-on-wine", ExperimentName)
}

func TestParams_MapIsACopy(t *testing.T) {
	p := Default()
	m := p.Map()
	m["num_leaves"] = 31
	delete(m, "objective")

	assert.Equal(t, 8, p.Int("num_leaves"))
	_, ok := p.Get("objective")
	assert.True(t, ok)
	assert.Equal(t, 6, p.Len())
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TRACKING_CONFIG", "TRACKING_PROJECT", "TRACKING_API_TOKEN", "TRACKING_URL",
		"TRACKING_MODE", "TRACKING_OFFLINE_DIR", "TRACKING_TIMEOUT", "CI",
		"LOG_LEVEL", "LOG_FORMAT", "SPLIT_SEED", "WINE_DATA_HOME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	clearEnv(t)

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, ModeSync, env.Mode)
	assert.Equal(t, 30*time.Second, env.Timeout)
	assert.Equal(t, ".tracking", env.OfflineDir)
	assert.Equal(t, "info", env.LogLevel)
	assert.Equal(t, "json", env.LogFormat)
	assert.Nil(t, env.SplitSeed)
	assert.False(t, env.CI)
}

func TestLoadEnvYAMLAndEnvOverride(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "tracking.yaml")
	content := `
project: "yaml/wine"
api_token: "yaml-token"
url: "https://tracking.internal"
mode: "offline"
timeout: "5s"
split_seed: 7
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	t.Setenv("TRACKING_CONFIG", cfgPath)
	t.Setenv("TRACKING_API_TOKEN", "env-token")
	t.Setenv("TRACKING_MODE", "debug")
	t.Setenv("CI", "true")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "yaml/wine", env.Project)
	assert.Equal(t, "env-token", env.APIToken)
	assert.Equal(t, "https://tracking.internal", env.URL)
	assert.Equal(t, ModeDebug, env.Mode)
	assert.Equal(t, 5*time.Second, env.Timeout)
	require.NotNil(t, env.SplitSeed)
	assert.Equal(t, int64(7), *env.SplitSeed)
	assert.True(t, env.CI)
}

func TestLoadEnvCIMustBeExactlyTrue(t *testing.T) {
	clearEnv(t)
	for _, v := range []string{"1", "TRUE", "yes", "True"} {
		t.Setenv("CI", v)
		env, err := LoadEnv()
		require.NoError(t, err)
		assert.False(t, env.CI, v)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TRACKING_TIMEOUT", "soon"},
		{"TRACKING_TIMEOUT", "-1s"},
		{"SPLIT_SEED", "abc"},
		{"TRACKING_MODE", "async"},
		{"LOG_LEVEL", "trace"},
		{"LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadEnv()
			var ipe *scierrors.InvalidParameterError
			require.True(t, scierrors.As(err, &ipe), "got %v", err)
			assert.Equal(t, tt.key, ipe.ParamName)
		})
	}
}

func TestLoadEnvMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKING_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadEnv()
	assert.Error(t, err)
}
