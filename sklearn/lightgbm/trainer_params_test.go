package lightgbm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

func TestParseParams_Aliases(t *testing.T) {
	tp, unknown, err := ParseParams(map[string]any{
		"application":       "softmax",
		"num_classes":       3,
		"eta":               0.05,
		"colsample_bytree":  0.5,
		"min_child_samples": 5,
		"reg_lambda":        1.0,
		"n_jobs":            2,
		"metrics":           []string{"multi_error"},
		"early_stop":        10,
	})
	require.NoError(t, err)

	assert.Equal(t, ObjectiveMulticlass, tp.Objective)
	assert.Equal(t, 3, tp.NumClass)
	assert.Equal(t, 0.05, tp.LearningRate)
	assert.Equal(t, 0.5, tp.FeatureFraction)
	assert.Equal(t, 5, tp.MinDataInLeaf)
	assert.Equal(t, 1.0, tp.LambdaL2)
	assert.Equal(t, 2, tp.NumThreads)
	assert.Equal(t, []string{MetricMultiError}, tp.Metrics)
	assert.Equal(t, []string{"early_stop"}, unknown)
}

func TestParseParams_Defaults(t *testing.T) {
	tp, _, err := ParseParams(map[string]any{"objective": "multiclass", "num_class": 3.0})
	require.NoError(t, err)

	assert.Equal(t, 31, tp.NumLeaves)
	assert.Equal(t, 20, tp.MinDataInLeaf)
	assert.Equal(t, 0.1, tp.LearningRate)
	assert.Equal(t, 255, tp.MaxBin)
	assert.Equal(t, []string{MetricMultiLogLoss}, tp.Metrics)
}

func TestParseParams_Invalid(t *testing.T) {
	base := func(k string, v any) map[string]any {
		return map[string]any{"objective": "multiclass", "num_class": 3, k: v}
	}
	tests := []struct {
		name   string
		params map[string]any
		param  string
	}{
		{"learning rate type", base("learning_rate", "fast"), "learning_rate"},
		{"negative learning rate", base("learning_rate", -0.1), "learning_rate"},
		{"fractional leaves", base("num_leaves", 2.5), "num_leaves"},
		{"boosting", base("boosting", "dart"), "boosting_type"},
		{"lambda", base("lambda_l2", -1.0), "lambda_l2"},
		{"max_bin", base("max_bin", 1), "max_bin"},
		{"metric", base("metric", "auc"), "metric"},
		{"single class", map[string]any{"objective": "multiclass", "num_class": 1}, "num_class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseParams(tt.params)
			var pe *scierrors.InvalidParameterError
			require.True(t, scierrors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.param, pe.ParamName)
		})
	}
}

func TestSamplingStrategy(t *testing.T) {
	params := DefaultTrainingParams()
	params.FeatureFraction = 0.5

	a := NewSamplingStrategy(params).SampleFeatures(13)
	b := NewSamplingStrategy(params).SampleFeatures(13)

	require.Len(t, a, 7)
	assert.Equal(t, a, b)
	assert.IsIncreasing(t, a)

	params.FeatureFraction = 1.0
	assert.Equal(t, []int{0, 1, 2}, NewSamplingStrategy(params).SampleFeatures(3))

	params.FeatureFraction = 0.01
	assert.Len(t, NewSamplingStrategy(params).SampleFeatures(13), 1)
}

func TestMulticlassSoftmax_Gradients(t *testing.T) {
	obj := NewMulticlassSoftmax(3)
	labels := []int{0, 2}
	init := obj.InitScores(labels)
	assert.InDelta(t, math.Log(0.5), init[0], 1e-12)
	assert.InDelta(t, math.Log(1e-15), init[1], 1e-12)

	scores := []float64{0, 0, 0, 0, 0, 0}
	grad := make([]float64, 6)
	hess := make([]float64, 6)
	obj.GetGradients(labels, scores, grad, hess, 1)

	// class-major layout: g[k*n+i]
	assert.InDelta(t, 1.0/3-1, grad[0], 1e-12)
	assert.InDelta(t, 1.0/3, grad[1], 1e-12)
	assert.InDelta(t, 1.0/3-1, grad[5], 1e-12)
	assert.InDelta(t, 1.5*(1.0/3)*(2.0/3), hess[2], 1e-12)
}

func TestEvalMetric(t *testing.T) {
	scores := []float64{5, 0, 0, 0, 5, 0}
	loss, err := evalMetric(MetricMultiLogLoss, []int{0, 1}, scores, 3)
	require.NoError(t, err)
	assert.Less(t, loss, 0.05)

	errRate, err := evalMetric(MetricMultiError, []int{0, 2}, scores, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.5, errRate)

	proba := probabilities(scores, 2, 3)
	assert.InDelta(t, 1.0, mat.Sum(proba.RowView(0)), 1e-12)
}
