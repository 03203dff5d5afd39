package lightgbm

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Task
	Objective    ObjectiveType
	BoostingType BoostingType
	NumClass     int
	Metrics      []string

	// Tree growth
	NumLeaves           int
	MaxDepth            int // <= 0 means no limit
	MinDataInLeaf       int
	MinSumHessianInLeaf float64
	MinGainToSplit      float64
	LearningRate        float64

	// Regularization
	LambdaL2 float64

	// Sampling
	FeatureFraction     float64
	FeatureFractionSeed int64

	// Histogram
	MaxBin int

	// Other
	NumThreads int // <= 0 means one per CPU core
	Verbosity  int
}

// DefaultTrainingParams returns LightGBM's defaults for a multiclass task.
func DefaultTrainingParams() TrainingParams {
	return TrainingParams{
		Objective:           ObjectiveMulticlass,
		BoostingType:        GBDT,
		NumClass:            1,
		NumLeaves:           31,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		LearningRate:        0.1,
		FeatureFraction:     1.0,
		FeatureFractionSeed: 2,
		MaxBin:              255,
		Verbosity:           1,
	}
}

// paramAliases maps LightGBM parameter aliases to their canonical names.
var paramAliases = map[string]string{
	"objective_type":           "objective",
	"app":                      "objective",
	"application":              "objective",
	"loss":                     "objective",
	"boosting":                 "boosting_type",
	"boost":                    "boosting_type",
	"num_classes":              "num_class",
	"metrics":                  "metric",
	"metric_types":             "metric",
	"num_leaf":                 "num_leaves",
	"max_leaves":               "num_leaves",
	"max_leaf":                 "num_leaves",
	"shrinkage_rate":           "learning_rate",
	"eta":                      "learning_rate",
	"min_data_per_leaf":        "min_data_in_leaf",
	"min_data":                 "min_data_in_leaf",
	"min_child_samples":        "min_data_in_leaf",
	"min_sum_hessian_per_leaf": "min_sum_hessian_in_leaf",
	"min_sum_hessian":          "min_sum_hessian_in_leaf",
	"min_hessian":              "min_sum_hessian_in_leaf",
	"min_child_weight":         "min_sum_hessian_in_leaf",
	"min_split_gain":           "min_gain_to_split",
	"reg_lambda":               "lambda_l2",
	"lambda":                   "lambda_l2",
	"l2_regularization":        "lambda_l2",
	"sub_feature":              "feature_fraction",
	"colsample_bytree":         "feature_fraction",
	"num_thread":               "num_threads",
	"nthread":                  "num_threads",
	"nthreads":                 "num_threads",
	"n_jobs":                   "num_threads",
	"verbose":                  "verbosity",
}

// ParseParams converts a LightGBM style parameter map into TrainingParams.
// Unknown parameter names are returned in the second result so the caller
// can warn about them; values of the wrong type are rejected.
func ParseParams(params map[string]any) (TrainingParams, []string, error) {
	tp := DefaultTrainingParams()
	var unknown []string

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		name := key
		if canonical, ok := paramAliases[key]; ok {
			name = canonical
		}

		var err error
		switch name {
		case "objective":
			var s string
			if s, err = asString(key, value); err == nil {
				tp.Objective, err = parseObjective(key, s)
			}
		case "boosting_type":
			var s string
			if s, err = asString(key, value); err == nil {
				tp.BoostingType = BoostingType(strings.ToLower(s))
			}
		case "num_class":
			tp.NumClass, err = asInt(key, value)
		case "metric":
			tp.Metrics, err = asMetrics(key, value)
		case "num_leaves":
			tp.NumLeaves, err = asInt(key, value)
		case "max_depth":
			tp.MaxDepth, err = asInt(key, value)
		case "min_data_in_leaf":
			tp.MinDataInLeaf, err = asInt(key, value)
		case "min_sum_hessian_in_leaf":
			tp.MinSumHessianInLeaf, err = asFloat(key, value)
		case "min_gain_to_split":
			tp.MinGainToSplit, err = asFloat(key, value)
		case "learning_rate":
			tp.LearningRate, err = asFloat(key, value)
		case "lambda_l2":
			tp.LambdaL2, err = asFloat(key, value)
		case "feature_fraction":
			tp.FeatureFraction, err = asFloat(key, value)
		case "feature_fraction_seed":
			var seed int
			seed, err = asInt(key, value)
			tp.FeatureFractionSeed = int64(seed)
		case "max_bin":
			tp.MaxBin, err = asInt(key, value)
		case "num_threads":
			tp.NumThreads, err = asInt(key, value)
		case "verbosity":
			tp.Verbosity, err = asInt(key, value)
		default:
			unknown = append(unknown, key)
		}
		if err != nil {
			return tp, nil, err
		}
	}

	if len(tp.Metrics) == 0 {
		tp.Metrics = []string{MetricMultiLogLoss}
	}
	return tp, unknown, tp.Validate()
}

// Validate checks parameter ranges.
func (tp TrainingParams) Validate() error {
	switch {
	case tp.Objective != ObjectiveMulticlass:
		return scierrors.NewInvalidParameterError("objective", "only multiclass (softmax) is supported", string(tp.Objective))
	case tp.BoostingType != GBDT:
		return scierrors.NewInvalidParameterError("boosting_type", "only gbdt is supported", string(tp.BoostingType))
	case tp.NumClass < 2:
		return scierrors.NewInvalidParameterError("num_class", "must be at least 2 for multiclass", tp.NumClass)
	case tp.NumLeaves < 2:
		return scierrors.NewInvalidParameterError("num_leaves", "must be at least 2", tp.NumLeaves)
	case tp.MinDataInLeaf < 0:
		return scierrors.NewInvalidParameterError("min_data_in_leaf", "must be non-negative", tp.MinDataInLeaf)
	case tp.MinSumHessianInLeaf < 0:
		return scierrors.NewInvalidParameterError("min_sum_hessian_in_leaf", "must be non-negative", tp.MinSumHessianInLeaf)
	case tp.MinGainToSplit < 0:
		return scierrors.NewInvalidParameterError("min_gain_to_split", "must be non-negative", tp.MinGainToSplit)
	case !(tp.LearningRate > 0) || math.IsInf(tp.LearningRate, 0):
		return scierrors.NewInvalidParameterError("learning_rate", "must be positive", tp.LearningRate)
	case tp.LambdaL2 < 0:
		return scierrors.NewInvalidParameterError("lambda_l2", "must be non-negative", tp.LambdaL2)
	case !(tp.FeatureFraction > 0 && tp.FeatureFraction <= 1):
		return scierrors.NewInvalidParameterError("feature_fraction", "must be in (0, 1]", tp.FeatureFraction)
	case tp.MaxBin < 2 || tp.MaxBin > maxSupportedBins:
		return scierrors.NewInvalidParameterError("max_bin", fmt.Sprintf("must be in [2, %d]", maxSupportedBins), tp.MaxBin)
	}
	for _, m := range tp.Metrics {
		if m != MetricMultiLogLoss && m != MetricMultiError {
			return scierrors.NewInvalidParameterError("metric", "supported metrics are multi_logloss and multi_error", m)
		}
	}
	return nil
}

// ToMap returns the canonical parameter names and values, used to record
// the configuration of a trained booster.
func (tp TrainingParams) ToMap() map[string]any {
	return map[string]any{
		"objective":               string(tp.Objective),
		"boosting_type":           string(tp.BoostingType),
		"num_class":               tp.NumClass,
		"metric":                  strings.Join(tp.Metrics, ","),
		"num_leaves":              tp.NumLeaves,
		"max_depth":               tp.MaxDepth,
		"min_data_in_leaf":        tp.MinDataInLeaf,
		"min_sum_hessian_in_leaf": tp.MinSumHessianInLeaf,
		"min_gain_to_split":       tp.MinGainToSplit,
		"learning_rate":           tp.LearningRate,
		"lambda_l2":               tp.LambdaL2,
		"feature_fraction":        tp.FeatureFraction,
		"feature_fraction_seed":   tp.FeatureFractionSeed,
		"max_bin":                 tp.MaxBin,
		"num_threads":             tp.NumThreads,
	}
}

func parseObjective(key, s string) (ObjectiveType, error) {
	switch strings.ToLower(s) {
	case "multiclass", "softmax":
		return ObjectiveMulticlass, nil
	default:
		return "", scierrors.NewInvalidParameterError(key, "only multiclass (softmax) is supported", s)
	}
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", scierrors.NewInvalidParameterError(key, "expected a string", v)
	}
	return s, nil
}

func asInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, scierrors.NewInvalidParameterError(key, "expected an integer", v)
}

func asFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, scierrors.NewInvalidParameterError(key, "expected a number", v)
}

func asMetrics(key string, v any) ([]string, error) {
	var names []string
	switch m := v.(type) {
	case string:
		for _, s := range strings.Split(m, ",") {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
	case []string:
		names = append(names, m...)
	default:
		return nil, scierrors.NewInvalidParameterError(key, "expected a string or []string", v)
	}
	for i, n := range names {
		switch strings.ToLower(n) {
		case "multi_logloss", "multiclass", "softmax", "multiclassova", "multiclass_ova", "ova", "ovr":
			names[i] = MetricMultiLogLoss
		case "multi_error":
			names[i] = MetricMultiError
		}
	}
	return names, nil
}

// SamplingStrategy draws the feature subset used by each tree.
type SamplingStrategy struct {
	rng             *rand.Rand
	featureFraction float64
}

// NewSamplingStrategy creates a sampling strategy seeded with
// feature_fraction_seed, so that runs with the same parameters grow the
// same trees.
func NewSamplingStrategy(params TrainingParams) *SamplingStrategy {
	return &SamplingStrategy{
		rng:             rand.New(rand.NewSource(params.FeatureFractionSeed)),
		featureFraction: params.FeatureFraction,
	}
}

// SampleFeatures returns the sorted feature indices available to the next
// tree. The sample size is round(numFeatures * feature_fraction), at least 1.
func (s *SamplingStrategy) SampleFeatures(numFeatures int) []int {
	if s.featureFraction >= 1.0 {
		features := make([]int, numFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}

	numSample := int(float64(numFeatures)*s.featureFraction + 0.5)
	numSample = max(1, min(numSample, numFeatures))

	// partial Fisher-Yates
	perm := make([]int, numFeatures)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < numSample; i++ {
		j := i + s.rng.Intn(numFeatures-i)
		perm[i], perm[j] = perm[j], perm[i]
	}

	features := perm[:numSample]
	sort.Ints(features)
	return features
}
