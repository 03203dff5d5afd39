package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// Tracking modes.
const (
	ModeSync    = "sync"
	ModeOffline = "offline"
	ModeDebug   = "debug"
)

const (
	defaultTrackingTimeout = 30 * time.Second
	defaultOfflineDir      = ".tracking"
)

// Env is the process environment of a training run. Tracking connection
// settings may come from the YAML file named by TRACKING_CONFIG; environment
// variables override it.
type Env struct {
	Project    string        `yaml:"project"`
	APIToken   string        `yaml:"api_token"`
	URL        string        `yaml:"url"`
	Mode       string        `yaml:"mode"`
	OfflineDir string        `yaml:"offline_dir"`
	Timeout    time.Duration `yaml:"timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// DataHome is the directory caching downloaded datasets.
	DataHome string `yaml:"data_home"`
	// SplitSeed fixes the train/test split when set.
	SplitSeed *int64 `yaml:"split_seed"`

	// CI is true only when the CI variable is exactly "true".
	CI bool `yaml:"-"`
}

// LoadEnv reads the run environment.
func LoadEnv() (*Env, error) {
	env := &Env{
		Mode:       ModeSync,
		OfflineDir: defaultOfflineDir,
		Timeout:    defaultTrackingTimeout,
		LogLevel:   "info",
		LogFormat:  "json",
	}

	if path := os.Getenv("TRACKING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, scierrors.Wrapf(err, "read tracking config %s", path)
		}
		if err := yaml.Unmarshal(data, env); err != nil {
			return nil, scierrors.Wrapf(err, "parse tracking config %s", path)
		}
	}

	envOverride(&env.Project, "TRACKING_PROJECT")
	envOverride(&env.APIToken, "TRACKING_API_TOKEN")
	envOverride(&env.URL, "TRACKING_URL")
	envOverride(&env.Mode, "TRACKING_MODE")
	envOverride(&env.OfflineDir, "TRACKING_OFFLINE_DIR")
	envOverride(&env.LogLevel, "LOG_LEVEL")
	envOverride(&env.LogFormat, "LOG_FORMAT")
	envOverride(&env.DataHome, "WINE_DATA_HOME")
	if err := envOverrideDuration(&env.Timeout, "TRACKING_TIMEOUT"); err != nil {
		return nil, err
	}
	if err := envOverrideSeed(&env.SplitSeed, "SPLIT_SEED"); err != nil {
		return nil, err
	}
	env.CI = os.Getenv("CI") == "true"

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate checks enumerated and ranged settings.
func (e *Env) Validate() error {
	e.Mode = strings.ToLower(strings.TrimSpace(e.Mode))
	switch e.Mode {
	case ModeSync, ModeOffline, ModeDebug:
	default:
		return scierrors.NewInvalidParameterError("TRACKING_MODE", "must be one of sync, offline, debug", e.Mode)
	}
	switch strings.ToLower(e.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return scierrors.NewInvalidParameterError("LOG_LEVEL", "must be one of debug, info, warn, error", e.LogLevel)
	}
	switch strings.ToLower(e.LogFormat) {
	case "json", "console":
	default:
		return scierrors.NewInvalidParameterError("LOG_FORMAT", "must be json or console", e.LogFormat)
	}
	if e.Timeout <= 0 {
		return scierrors.NewInvalidParameterError("TRACKING_TIMEOUT", "must be positive", e.Timeout)
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return scierrors.NewInvalidParameterError(envKey, "not a Go duration", val)
	}
	*field = parsed
	return nil
}

func envOverrideSeed(field **int64, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return scierrors.NewInvalidParameterError(envKey, "not an integer", val)
	}
	*field = &parsed
	return nil
}
