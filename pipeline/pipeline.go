// Package pipeline runs one tracked training run: it starts a run, loads and
// splits the wine data, fits a multiclass booster, scores the holdout set,
// logs metrics and performance charts and, under CI, tags the run and
// writes its ID to experiment_id.txt.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"

	"github.com/YuminosukeSato/scigo-wine/config"
	"github.com/YuminosukeSato/scigo-wine/metrics"
	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
	"github.com/YuminosukeSato/scigo-wine/plots"
	"github.com/YuminosukeSato/scigo-wine/sklearn/datasets"
	"github.com/YuminosukeSato/scigo-wine/sklearn/lightgbm"
	"github.com/YuminosukeSato/scigo-wine/sklearn/model_selection"
	"github.com/YuminosukeSato/scigo-wine/tracking"
)

// Names used on the tracking backend.
const (
	MetricAccuracy   = "accuracy"
	MetricF1         = "f1_score"
	ImageChannel     = "performance charts"
	CITag            = "ci-pipeline"
	ExperimentIDFile = "experiment_id.txt"
	TrainName        = "train"
	ValidName        = "valid"
)

// Options configures Run. Zero values take the defaults from package config.
type Options struct {
	Params        config.Params
	NumBoostRound int
	TestSize      float64
	RunName       string

	// Seed fixes the train/test split; nil gives a different split per run.
	Seed *int64
	// CI enables tagging and writing the run ID file.
	CI bool
	// WorkDir is where experiment_id.txt is written. Defaults to ".".
	WorkDir string

	// Data skips loading when set.
	Data        *datasets.Dataset
	DataOptions []datasets.Option

	Logger log.Logger
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Scores   metrics.Scores
	Booster  *lightgbm.Booster
	NumTrain int
	NumTest  int
	Images   int
}

func (o *Options) setDefaults() {
	if o.Params.Len() == 0 {
		o.Params = config.Default()
	}
	if o.NumBoostRound == 0 {
		o.NumBoostRound = config.NumBoostRound
	}
	if o.TestSize == 0 {
		o.TestSize = config.TestSize
	}
	if o.RunName == "" {
		o.RunName = config.ExperimentName
	}
	if o.WorkDir == "" {
		o.WorkDir = "."
	}
	if o.Logger == nil {
		o.Logger = log.GetLoggerWithName("pipeline")
	}
}

// Run executes the training run against session. Any failure aborts the
// run and is returned; nothing is retried.
func Run(ctx context.Context, session tracking.Session, opts Options) (*Result, error) {
	opts.setDefaults()
	logger := opts.Logger
	start := time.Now()

	run, err := session.StartRun(ctx, opts.RunName, opts.Params.Map())
	if err != nil {
		return nil, errors.Wrap(err, "start run")
	}
	logger = logger.With(log.RunIDKey, run.ID())
	logger.Info("Run started", log.HyperParamsKey, opts.Params.Map())

	res, err := execute(ctx, run, opts, logger)
	if err != nil {
		return nil, err
	}

	if opts.CI {
		if err := finalizeCI(ctx, run, opts.WorkDir); err != nil {
			return nil, err
		}
		logger.Info("CI finalize done", "tag", CITag, "file", ExperimentIDFile)
	}

	if err := run.Stop(ctx); err != nil {
		return nil, errors.Wrap(err, "stop run")
	}
	res.RunID = run.ID()
	logger.Info("Run finished",
		log.AccuracyKey, res.Scores.Accuracy,
		log.F1ScoreKey, res.Scores.F1Macro,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func execute(ctx context.Context, run tracking.Run, opts Options, logger log.Logger) (*Result, error) {
	// Data acquisition
	data := opts.Data
	if data == nil {
		var err error
		data, err = datasets.LoadWine(ctx, opts.DataOptions...)
		if err != nil {
			return nil, errors.Wrap(err, "load data")
		}
	}
	var splitOpts []model_selection.SplitOption
	if opts.Seed != nil {
		splitOpts = append(splitOpts, model_selection.WithRandomState(*opts.Seed))
		logger.Debug("Split seed fixed", log.RandomSeedKey, *opts.Seed)
	}
	split, err := model_selection.TrainTestSplit(data.Data, data.Target, opts.TestSize, splitOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "split data")
	}
	logger.Info("Data split",
		log.OperationKey, log.OperationSplit,
		"train", len(split.YTrain),
		"test", len(split.YTest),
	)

	// Model fitting
	trainSet, err := lightgbm.NewDataset(split.XTrain, split.YTrain, lightgbm.WithFeatureNames(data.FeatureNames))
	if err != nil {
		return nil, errors.Wrap(err, "build training set")
	}
	validSet, err := lightgbm.NewDataset(split.XTest, split.YTest, lightgbm.WithReference(trainSet))
	if err != nil {
		return nil, errors.Wrap(err, "build validation set")
	}
	monitor := tracking.NewMonitor(ctx, run, logger)
	// The training set is evaluated too so its loss curve sits next to the
	// holdout one on the tracker.
	booster, err := lightgbm.Train(opts.Params.Map(), trainSet, opts.NumBoostRound, []*lightgbm.Dataset{trainSet, validSet},
		lightgbm.WithValidNames(TrainName, ValidName),
		lightgbm.WithObservers(monitor),
		lightgbm.WithCallbacks(lightgbm.LogEvaluation(logger, 1)),
		lightgbm.WithLogger(log.GetLoggerWithName("lightgbm").With(log.RunIDKey, run.ID())),
	)
	if err != nil {
		return nil, errors.Wrap(err, "train")
	}
	if err := monitor.Err(); err != nil {
		return nil, errors.Wrap(err, "log training metrics")
	}

	// Evaluation
	proba, err := booster.Predict(split.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	scores, err := metrics.Score(split.YTest, proba)
	if err != nil {
		return nil, errors.Wrap(err, "score")
	}
	if err := run.LogMetric(ctx, MetricAccuracy, scores.Accuracy); err != nil {
		return nil, errors.Wrap(err, "log accuracy")
	}
	if err := run.LogMetric(ctx, MetricF1, scores.F1Macro); err != nil {
		return nil, errors.Wrap(err, "log f1_score")
	}
	logger.Info("Holdout scored",
		log.OperationKey, log.OperationScore,
		log.AccuracyKey, scores.Accuracy,
		log.F1ScoreKey, scores.F1Macro,
	)

	// Reporting
	images, err := renderCharts(split.YTest, proba)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		if err := run.LogImage(ctx, ImageChannel, img); err != nil {
			return nil, errors.Wrapf(err, "log chart %s", img.Name)
		}
	}
	logger.Info("Charts logged", log.ChannelKey, ImageChannel, "count", len(images))

	return &Result{
		Scores:   scores,
		Booster:  booster,
		NumTrain: len(split.YTrain),
		NumTest:  len(split.YTest),
		Images:   len(images),
	}, nil
}

type chart struct {
	name  string
	build func() (*plot.Plot, error)
}

// renderCharts builds and encodes the ROC, confusion matrix and
// precision-recall charts in that order.
func renderCharts(yTest []int, proba *mat.Dense) ([]tracking.Image, error) {
	charts := []chart{
		{"roc", func() (*plot.Plot, error) { return plots.ROC(yTest, proba) }},
		{"confusion_matrix", func() (*plot.Plot, error) { return plots.ConfusionMatrix(yTest, metrics.ArgMax(proba)) }},
		{"precision_recall", func() (*plot.Plot, error) { return plots.PrecisionRecall(yTest, proba) }},
	}

	images := make([]tracking.Image, 0, len(charts))
	for _, c := range charts {
		p, err := c.build()
		if err != nil {
			return nil, errors.Wrapf(err, "build chart %s", c.name)
		}
		data, err := plots.Render(p, plots.FormatPNG)
		if err != nil {
			return nil, errors.Wrapf(err, "render chart %s", c.name)
		}
		images = append(images, tracking.Image{Name: c.name, Format: plots.FormatPNG, Data: data})
	}
	return images, nil
}

// finalizeCI tags the run and writes its ID as the only content of
// experiment_id.txt.
func finalizeCI(ctx context.Context, run tracking.Run, dir string) error {
	if err := run.AddTag(ctx, CITag); err != nil {
		return errors.Wrap(err, "add CI tag")
	}
	path := filepath.Join(dir, ExperimentIDFile)
	if err := os.WriteFile(path, []byte(run.ID()), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
