package lightgbm

import (
	"fmt"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// trainingDatasetName is the evaluation name of the training set when it
// is also passed as a validation set.
const trainingDatasetName = "training"

type trainConfig struct {
	validNames []string
	callbacks  []Callback
	observers  []Observer
	logger     log.Logger
}

// TrainOption configures Train.
type TrainOption func(*trainConfig)

// WithValidNames names the validation sets in order. Unnamed sets default to
// "valid_<i>".
func WithValidNames(names ...string) TrainOption {
	return func(c *trainConfig) { c.validNames = names }
}

// WithCallbacks adds callbacks run after every boosting round.
func WithCallbacks(callbacks ...Callback) TrainOption {
	return func(c *trainConfig) { c.callbacks = append(c.callbacks, callbacks...) }
}

// WithObservers adds observers receiving every evaluation result.
func WithObservers(observers ...Observer) TrainOption {
	return func(c *trainConfig) { c.observers = append(c.observers, observers...) }
}

// WithLogger overrides the training logger.
func WithLogger(logger log.Logger) TrainOption {
	return func(c *trainConfig) { c.logger = logger }
}

// Train fits a multiclass booster for numBoostRound rounds. After every
// round each metric in params["metric"] is computed on every validation set
// and passed to the observers and callbacks.
func Train(params map[string]any, trainSet *Dataset, numBoostRound int, validSets []*Dataset, opts ...TrainOption) (*Booster, error) {
	cfg := &trainConfig{logger: log.GetLoggerWithName("lightgbm")}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger.With(log.ModelNameKey, "Booster")

	if trainSet == nil {
		return nil, scierrors.NewValueError("lightgbm.Train", "training dataset is nil")
	}
	if numBoostRound < 1 {
		return nil, scierrors.NewInvalidParameterError("num_boost_round", "must be at least 1", numBoostRound)
	}

	tp, unknown, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	for _, key := range unknown {
		logger.Warn("Unknown parameter", "param", key, "value", fmt.Sprintf("%v", params[key]))
	}
	if err := checkLabels(trainSet.labels, tp.NumClass, true); err != nil {
		return nil, err
	}
	if _, ok := params["max_bin"]; ok && tp.MaxBin != trainSet.maxBin {
		trainSet.maxBin = tp.MaxBin
		trainSet.reference = nil
		trainSet.construct(buildMappers(trainSet))
	}

	if len(cfg.validNames) > len(validSets) {
		return nil, scierrors.NewShapeMismatchError("lightgbm.Train.valid_names", len(validSets), len(cfg.validNames), 0)
	}
	evalSets := make([]*evalSet, 0, len(validSets))
	for i, vs := range validSets {
		if vs == nil {
			return nil, scierrors.NewValueError("lightgbm.Train", fmt.Sprintf("validation set %d is nil", i))
		}
		name := fmt.Sprintf("valid_%d", i)
		if vs == trainSet {
			name = trainingDatasetName
		}
		if i < len(cfg.validNames) {
			name = cfg.validNames[i]
		}
		if vs != trainSet {
			// Bin boundaries must match the training set exactly.
			if err := vs.rebin(trainSet); err != nil {
				return nil, err
			}
			if err := checkLabels(vs.labels, tp.NumClass, false); err != nil {
				return nil, err
			}
		}
		evalSets = append(evalSets, &evalSet{name: name, data: vs})
	}

	logger.Debug("Parsed parameters", log.HyperParamsKey, tp.ToMap())
	t := newTrainer(tp, trainSet, evalSets, &trainConfig{
		callbacks: cfg.callbacks,
		observers: cfg.observers,
		logger:    logger,
	})
	return t.run(numBoostRound)
}

// checkLabels verifies labels lie in [0, numClass). For the training set
// every class must also be present.
func checkLabels(labels []int, numClass int, requireAll bool) error {
	seen := make([]bool, numClass)
	distinct := 0
	for _, c := range labels {
		if c < 0 || c >= numClass {
			return scierrors.NewInvalidParameterError("num_class",
				fmt.Sprintf("label %d is outside [0, %d)", c, numClass), numClass)
		}
		if !seen[c] {
			seen[c] = true
			distinct++
		}
	}
	if requireAll && distinct != numClass {
		return scierrors.NewInvalidParameterError("num_class",
			fmt.Sprintf("training labels contain %d distinct classes", distinct), numClass)
	}
	return nil
}
