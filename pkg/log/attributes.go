// Standard attribute keys for the training pipeline. Keys follow a
// hierarchical naming convention ("model.name", "data.samples") so logs can
// be filtered by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model, e.g. "Booster".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "split", "render", "track"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline phase.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct classes.
	ClassesKey = "data.classes"

	// SourceKey names where a dataset was read from (embedded, cache, url).
	SourceKey = "data.source"
)

// Training and Evaluation
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// F1ScoreKey records the macro-averaged F1 score.
	F1ScoreKey = "metrics.f1_score"

	// LossKey records a loss value during training or evaluation.
	LossKey = "metrics.loss"

	// MetricNameKey names an evaluation metric, e.g. "valid_multi_logloss".
	MetricNameKey = "metrics.name"

	// IterationKey records the current boosting round.
	IterationKey = "training.iteration"

	// TreesKey records the number of trees in the ensemble.
	TreesKey = "training.trees"
)

// Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// LearningRateKey records the learning rate.
	LearningRateKey = "hyperparams.learning_rate"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Tracking
const (
	// RunIDKey is the tracking backend's identifier for the active run.
	RunIDKey = "tracking.run_id"

	// ProjectKey is the tracking project identifier.
	ProjectKey = "tracking.project"

	// BackendKey names the tracking mode ("sync", "offline", "debug").
	BackendKey = "tracking.backend"

	// ChannelKey names a logged metric or image channel.
	ChannelKey = "tracking.channel"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSplit   = "split"
	OperationRender  = "render"
	OperationTrack   = "track"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseReporting  = "reporting"
)
