package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-wine/core/parallel"
	"github.com/YuminosukeSato/scigo-wine/metrics"
	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// ObjectiveType names a training objective.
type ObjectiveType string

// ObjectiveMulticlass is the softmax multiclass objective.
const ObjectiveMulticlass ObjectiveType = "multiclass"

// BoostingType names a boosting algorithm.
type BoostingType string

// GBDT is plain gradient boosted decision trees.
const GBDT BoostingType = "gbdt"

// Evaluation metric names.
const (
	MetricMultiLogLoss = "multi_logloss"
	MetricMultiError   = "multi_error"
)

// MulticlassSoftmax implements the multiclass cross-entropy objective with
// a softmax link. Scores are stored sample-major: score[i*K+k].
type MulticlassSoftmax struct {
	numClass int
	// factor rescales hessians by K/(K-1), matching LightGBM.
	factor float64
}

// NewMulticlassSoftmax creates the objective for numClass classes.
func NewMulticlassSoftmax(numClass int) *MulticlassSoftmax {
	return &MulticlassSoftmax{
		numClass: numClass,
		factor:   float64(numClass) / float64(numClass-1),
	}
}

// Name returns the objective name.
func (m *MulticlassSoftmax) Name() string {
	return string(ObjectiveMulticlass)
}

// InitScores returns log(class prior) for every class.
func (m *MulticlassSoftmax) InitScores(labels []int) []float64 {
	counts := make([]float64, m.numClass)
	for _, c := range labels {
		counts[c]++
	}
	init := make([]float64, m.numClass)
	for k := range init {
		init[k] = scierrors.StabilizeLog(counts[k] / float64(len(labels)))
	}
	return init
}

// GetGradients fills grad and hess (both n*K, class-major: g[k*n+i]) from
// the current raw scores.
func (m *MulticlassSoftmax) GetGradients(labels []int, scores, grad, hess []float64, workers int) {
	n, K := len(labels), m.numClass
	parallel.ParallelizeWithThreshold(n, 1024, workers, func(start, end int) {
		p := make([]float64, K)
		for i := start; i < end; i++ {
			softmaxInto(p, scores[i*K:(i+1)*K])
			for k := 0; k < K; k++ {
				g := p[k]
				if k == labels[i] {
					g -= 1
				}
				grad[k*n+i] = g
				hess[k*n+i] = m.factor * p[k] * (1 - p[k])
			}
		}
	})
}

// softmaxInto writes softmax(logits) into dst.
func softmaxInto(dst, logits []float64) {
	lse := scierrors.LogSumExp(logits)
	for k, v := range logits {
		dst[k] = math.Exp(v - lse)
	}
}

// probabilities converts sample-major raw scores into an n×K probability
// matrix.
func probabilities(scores []float64, n, K int) *mat.Dense {
	out := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		softmaxInto(out.RawRowView(i), scores[i*K:(i+1)*K])
	}
	return out
}

// evalMetric computes a named metric on raw scores.
func evalMetric(name string, labels []int, scores []float64, K int) (float64, error) {
	proba := probabilities(scores, len(labels), K)
	switch name {
	case MetricMultiLogLoss:
		return metrics.MultiLogLoss(labels, proba)
	case MetricMultiError:
		pred := metrics.ArgMax(proba)
		wrong := 0
		for i := range labels {
			if pred[i] != labels[i] {
				wrong++
			}
		}
		return float64(wrong) / float64(len(labels)), nil
	default:
		return 0, scierrors.NewInvalidParameterError("metric", "unsupported metric", name)
	}
}
