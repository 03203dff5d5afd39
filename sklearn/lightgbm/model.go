package lightgbm

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-wine/core/model"
	"github.com/YuminosukeSato/scigo-wine/core/parallel"
	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// Node represents a single node in a decision tree
type Node struct {
	LeftChild  int // -1 if leaf
	RightChild int // -1 if leaf

	// Split information (internal nodes)
	SplitFeature int
	ThresholdBin uint16  // Samples with bin <= ThresholdBin go left
	Threshold    float64 // Raw value upper bound of ThresholdBin
	DefaultLeft  bool    // Direction for missing values
	Gain         float64

	// Leaf information
	LeafValue float64 // Already scaled by the learning rate
	Count     int
	Depth     int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a single regression tree fitted to one class's gradients.
// Nodes[0] is the root.
type Tree struct {
	Nodes []Node
	Class int
}

// NumLeaves returns the number of leaf nodes.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Predict returns the tree output for one raw feature row.
func (t *Tree) Predict(features []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue
		}
		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			id = pick(node.DefaultLeft, node)
		case v <= node.Threshold:
			id = node.LeftChild
		default:
			id = node.RightChild
		}
	}
}

// predictBinned walks the tree using pre-binned features of row i.
func (t *Tree) predictBinned(d *Dataset, i int) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue
		}
		id = pick(d.bin(node.SplitFeature, i) <= node.ThresholdBin, node)
	}
}

func pick(left bool, node *Node) int {
	if left {
		return node.LeftChild
	}
	return node.RightChild
}

// Booster is a trained multiclass gradient boosting model.
// Trees are stored iteration-major: tree j belongs to class j % NumClass.
type Booster struct {
	state *model.StateManager

	params       TrainingParams
	numClass     int
	initScores   []float64
	trees        []Tree
	featureNames []string

	bestIteration int
	evalHistory   map[string]map[string][]float64
}

var (
	_ model.ProbabilisticClassifier = (*Booster)(nil)
	_ model.FeatureImportancer      = (*Booster)(nil)
)

func newBooster(params TrainingParams, initScores []float64, train *Dataset) *Booster {
	b := &Booster{
		state:        model.NewStateManager(),
		params:       params,
		numClass:     params.NumClass,
		initScores:   initScores,
		featureNames: train.FeatureNames(),
		evalHistory:  make(map[string]map[string][]float64),
	}
	b.state.SetFitted(train.NumFeatures(), train.NumData())
	return b
}

// Predict returns an (n_samples, num_class) matrix of class probabilities.
// When early stopping recorded a best iteration, only the trees up to that
// round are used.
func (b *Booster) Predict(X mat.Matrix) (*mat.Dense, error) {
	raw, err := b.PredictRaw(X)
	if err != nil {
		return nil, err
	}
	rows, _ := raw.Dims()
	for i := 0; i < rows; i++ {
		row := raw.RawRowView(i)
		softmaxInto(row, append([]float64(nil), row...))
	}
	return raw, nil
}

// PredictRaw returns raw scores before the softmax, using the same trees as
// Predict.
func (b *Booster) PredictRaw(X mat.Matrix) (*mat.Dense, error) {
	if err := b.state.RequireFitted("Booster", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := b.state.CheckFeatures("Booster.Predict", cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, scierrors.NewValueError("Booster.Predict", "empty input")
	}

	out := mat.NewDense(rows, b.numClass, nil)
	parallel.ParallelizeWithThreshold(rows, 256, b.params.NumThreads, func(start, end int) {
		features := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(features, i, X)
			copy(out.RawRowView(i), b.rawScore(features))
		}
	})
	return out, nil
}

func (b *Booster) rawScore(features []float64) []float64 {
	score := append([]float64(nil), b.initScores...)
	trees := b.predictionTrees()
	for j := range trees {
		score[trees[j].Class] += trees[j].Predict(features)
	}
	return score
}

// predictionTrees returns the trees of the first BestIteration rounds, or all
// trees when no best iteration is set.
func (b *Booster) predictionTrees() []Tree {
	if n := b.bestIteration * b.numClass; n > 0 && n < len(b.trees) {
		return b.trees[:n]
	}
	return b.trees
}

// Classes returns the class labels 0..num_class-1.
func (b *Booster) Classes() []int {
	classes := make([]int, b.numClass)
	for i := range classes {
		classes[i] = i
	}
	return classes
}

// NumClass returns the number of classes.
func (b *Booster) NumClass() int { return b.numClass }

// NumTrees returns the total number of trees (iterations * num_class).
func (b *Booster) NumTrees() int { return len(b.trees) }

// CurrentIteration returns the number of completed boosting rounds.
func (b *Booster) CurrentIteration() int { return len(b.trees) / b.numClass }

// BestIteration returns the best round found by early stopping, or 0.
func (b *Booster) BestIteration() int { return b.bestIteration }

// Params returns the parameters the booster was trained with.
func (b *Booster) Params() map[string]any { return b.params.ToMap() }

// FeatureNames returns the training column names.
func (b *Booster) FeatureNames() []string {
	return append([]string(nil), b.featureNames...)
}

// Trees returns the fitted trees.
func (b *Booster) Trees() []Tree { return b.trees }

// FeatureImportance returns per-feature split counts ("split") or total
// gain ("gain"), not normalized.
func (b *Booster) FeatureImportance(importanceType string) ([]float64, error) {
	if err := b.state.RequireFitted("Booster", "FeatureImportance"); err != nil {
		return nil, err
	}
	nFeatures, _ := b.state.Dimensions()
	importance := make([]float64, nFeatures)
	useGain := false
	switch strings.ToLower(importanceType) {
	case "split":
	case "gain":
		useGain = true
	default:
		return nil, scierrors.NewInvalidParameterError("importance_type", "must be split or gain", importanceType)
	}
	for _, tree := range b.trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			if useGain {
				importance[node.SplitFeature] += node.Gain
			} else {
				importance[node.SplitFeature]++
			}
		}
	}
	return importance, nil
}

// EvalHistory returns dataset name -> metric name -> per-round values.
func (b *Booster) EvalHistory() map[string]map[string][]float64 {
	out := make(map[string]map[string][]float64, len(b.evalHistory))
	for ds, byMetric := range b.evalHistory {
		out[ds] = make(map[string][]float64, len(byMetric))
		for m, values := range byMetric {
			out[ds][m] = append([]float64(nil), values...)
		}
	}
	return out
}

// EvalDatasets returns the names of the evaluated datasets in sorted order.
func (b *Booster) EvalDatasets() []string {
	names := make([]string, 0, len(b.evalHistory))
	for name := range b.evalHistory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Booster) record(dataset, metric string, value float64) {
	if b.evalHistory[dataset] == nil {
		b.evalHistory[dataset] = make(map[string][]float64)
	}
	b.evalHistory[dataset][metric] = append(b.evalHistory[dataset][metric], value)
}
