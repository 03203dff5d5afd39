package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-wine/config"
	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
	"github.com/YuminosukeSato/scigo-wine/sklearn/datasets"
	"github.com/YuminosukeSato/scigo-wine/tracking"
)

// syntheticWine returns 120 samples whose first feature separates three
// classes; the others are noise.
func syntheticWine() *datasets.Dataset {
	const n = 120
	X := mat.NewDense(n, 4, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		class := i % 3
		X.Set(i, 0, float64(class)*5+float64(i%17)/10)
		X.Set(i, 1, float64(i%11))
		X.Set(i, 2, float64((i*7)%13))
		X.Set(i, 3, float64(i%5)/2)
		y[i] = class
	}
	return &datasets.Dataset{
		Data:         X,
		Target:       y,
		FeatureNames: []string{"signal", "noise_a", "noise_b", "noise_c"},
		TargetNames:  datasets.WineTargetNames,
		Source:       "synthetic",
	}
}

func seed(v int64) *int64 { return &v }

func onlyRun(t *testing.T, mem *tracking.Memory) *tracking.MemoryRun {
	t.Helper()
	runs := mem.Runs()
	require.Len(t, runs, 1)
	return runs[0]
}

func TestRun_LogsMetricsAndCharts(t *testing.T) {
	mem := tracking.NewMemory()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	dir := t.TempDir()

	res, err := Run(context.Background(), mem, Options{
		Seed:    seed(42),
		Data:    syntheticWine(),
		WorkDir: dir,
		Logger:  logger,
	})
	require.NoError(t, err)

	run := onlyRun(t, mem)
	assert.Equal(t, res.RunID, run.ID())
	assert.Equal(t, config.ExperimentName, run.Name())
	assert.Equal(t, config.Default().Map(), run.Params())
	assert.True(t, run.Stopped())

	assert.Equal(t, 90, res.NumTrain)
	assert.Equal(t, 30, res.NumTest)
	assert.Equal(t, config.NumBoostRound, res.Booster.CurrentIteration())
	assert.Greater(t, res.Scores.Accuracy, 0.9)

	var final []string
	for _, m := range run.Metrics() {
		if !strings.HasPrefix(m.Name, TrainName+"_") && !strings.HasPrefix(m.Name, ValidName+"_") {
			final = append(final, m.Name)
		}
	}
	assert.Equal(t, []string{MetricAccuracy, MetricF1}, final)
	assert.Equal(t, []float64{res.Scores.Accuracy}, run.MetricValues(MetricAccuracy))
	assert.Equal(t, []float64{res.Scores.F1Macro}, run.MetricValues(MetricF1))
	assert.Len(t, run.MetricValues("train_multi_logloss"), config.NumBoostRound)
	assert.Len(t, run.MetricValues("valid_multi_logloss"), config.NumBoostRound)

	images := run.Images()
	require.Len(t, images, 3)
	names := make([]string, len(images))
	for i, img := range images {
		assert.Equal(t, ImageChannel, img.Channel)
		assert.Equal(t, "png", img.Image.Format)
		assert.True(t, strings.HasPrefix(string(img.Image.Data), "\x89PNG"))
		names[i] = img.Image.Name
	}
	assert.Equal(t, []string{"roc", "confusion_matrix", "precision_recall"}, names)

	assert.Empty(t, run.Tags())
	_, err = os.Stat(filepath.Join(dir, ExperimentIDFile))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, logger.ContainsMessage("Run finished"))
	assert.True(t, logger.ContainsField(log.RunIDKey, res.RunID))
}

func TestRun_TrainerLogsCarryRunID(t *testing.T) {
	provider, logger := log.NewTestLoggerProvider(log.LevelInfo)
	log.SetProvider(provider)
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo)) })

	res, err := Run(context.Background(), tracking.NewMemory(), Options{
		Seed:    seed(5),
		Data:    syntheticWine(),
		WorkDir: t.TempDir(),
	})
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var started map[string]interface{}
	for _, e := range entries {
		if e["message"] == "Training started" {
			started = e
		}
	}
	require.NotNil(t, started)
	assert.Equal(t, "lightgbm", started[log.ComponentKey])
	assert.Equal(t, res.RunID, started[log.RunIDKey])
	assert.True(t, logger.ContainsField(log.ComponentKey, "pipeline"))
}

func TestRun_CI(t *testing.T) {
	mem := tracking.NewMemory()
	dir := t.TempDir()
	path := filepath.Join(dir, ExperimentIDFile)
	require.NoError(t, os.WriteFile(path, []byte("stale-id-from-a-previous-run"), 0o644))

	res, err := Run(context.Background(), mem, Options{
		Seed:    seed(7),
		Data:    syntheticWine(),
		CI:      true,
		WorkDir: dir,
	})
	require.NoError(t, err)

	run := onlyRun(t, mem)
	assert.Equal(t, []string{CITag}, run.Tags())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, string(data))
}

func TestRun_SameSeedSameSplit(t *testing.T) {
	a, err := Run(context.Background(), tracking.NewMemory(), Options{Seed: seed(3), Data: syntheticWine(), WorkDir: t.TempDir()})
	require.NoError(t, err)
	b, err := Run(context.Background(), tracking.NewMemory(), Options{Seed: seed(3), Data: syntheticWine(), WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, a.Scores, b.Scores)
	assert.NotEqual(t, a.RunID, b.RunID)
}

// failingSession hands out runs that reject images.
type failingSession struct {
	*tracking.Memory
}

type imageRejectingRun struct {
	tracking.Run
}

func (r imageRejectingRun) LogImage(context.Context, string, tracking.Image) error {
	return errors.NewConnectivityError("/api/v1/runs/images", errors.New("connection reset"))
}

func (s failingSession) StartRun(ctx context.Context, name string, params map[string]any) (tracking.Run, error) {
	run, err := s.Memory.StartRun(ctx, name, params)
	if err != nil {
		return nil, err
	}
	return imageRejectingRun{run}, nil
}

func TestRun_FailsFast(t *testing.T) {
	t.Run("image upload", func(t *testing.T) {
		mem := tracking.NewMemory()
		dir := t.TempDir()
		_, err := Run(context.Background(), failingSession{mem}, Options{
			Seed:    seed(1),
			Data:    syntheticWine(),
			CI:      true,
			WorkDir: dir,
		})
		require.Error(t, err)
		var ce *errors.ConnectivityError
		assert.True(t, errors.As(err, &ce))

		run := onlyRun(t, mem)
		assert.Empty(t, run.Tags())
		assert.False(t, run.Stopped())
		_, statErr := os.Stat(filepath.Join(dir, ExperimentIDFile))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("closed session", func(t *testing.T) {
		mem := tracking.NewMemory()
		require.NoError(t, mem.Close())
		_, err := Run(context.Background(), mem, Options{Data: syntheticWine()})
		assert.Error(t, err)
	})

	t.Run("invalid test size", func(t *testing.T) {
		_, err := Run(context.Background(), tracking.NewMemory(), Options{Data: syntheticWine(), TestSize: 1.5})
		assert.Error(t, err)
	})

	t.Run("invalid params", func(t *testing.T) {
		params := config.Default().Map()
		params["num_class"] = 1
		_, err := Run(context.Background(), tracking.NewMemory(), Options{
			Params: config.FromMap(params),
			Data:   syntheticWine(),
		})
		var pe *errors.InvalidParameterError
		assert.True(t, errors.As(err, &pe))
	})
}

func TestRun_Wine(t *testing.T) {
	data, err := datasets.LoadWine(context.Background(),
		datasets.WithDownload(false), datasets.WithDataHome(t.TempDir()))
	if errors.Is(err, datasets.ErrDataUnavailable) {
		t.Skip("sklearn/datasets/data/wine.data is not committed")
	}
	require.NoError(t, err)
	require.Equal(t, datasets.SourceBundled, data.Source)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	mem := tracking.NewMemory()
	dir := t.TempDir()
	res, err := Run(ctx, mem, Options{Seed: seed(42), Data: data, CI: true, WorkDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 133, res.NumTrain)
	assert.Equal(t, 45, res.NumTest)
	assert.Greater(t, res.Scores.Accuracy, 0.8)
	assert.Greater(t, res.Scores.F1Macro, 0.8)

	run := onlyRun(t, mem)
	assert.Equal(t, []float64{res.Scores.Accuracy}, run.MetricValues(MetricAccuracy))
	assert.Equal(t, []float64{res.Scores.F1Macro}, run.MetricValues(MetricF1))
	assert.Len(t, run.Images(), 3)
	assert.Equal(t, []string{CITag}, run.Tags())

	id, err := os.ReadFile(filepath.Join(dir, ExperimentIDFile))
	require.NoError(t, err)
	assert.Equal(t, res.RunID, string(id))
}
