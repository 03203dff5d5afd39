package lightgbm

import (
	"time"

	"github.com/YuminosukeSato/scigo-wine/core/parallel"
	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// kMinScore is the smallest gain treated as an improvement.
const kMinScore = 1e-10

// SplitInfo describes the best split found for a leaf
type SplitInfo struct {
	Feature    int
	Bin        uint16
	Gain       float64
	LeftGrad   float64
	LeftHess   float64
	LeftCount  int
	RightGrad  float64
	RightHess  float64
	RightCount int
}

// valid reports whether the split improves the objective.
func (s SplitInfo) valid() bool {
	return s.Feature >= 0 && s.Gain > kMinScore
}

// Histogram holds per-bin gradient statistics of one feature
type Histogram struct {
	Grad  []float64
	Hess  []float64
	Count []int
}

// leaf is a growable leaf of the tree under construction.
type leaf struct {
	node    int
	indices []int
	sumGrad float64
	sumHess float64
	depth   int
	best    SplitInfo
}

// treeLearner grows one leaf-wise tree on a binned dataset.
type treeLearner struct {
	params   TrainingParams
	data     *Dataset
	features []int
	workers  int
	grad     []float64
	hess     []float64
}

// grow builds a tree by repeatedly splitting the leaf with the largest gain
// until num_leaves is reached or no leaf can be split.
func (l *treeLearner) grow(class int) Tree {
	n := l.data.NumData()
	root := &leaf{indices: make([]int, n)}
	for i := range root.indices {
		root.indices[i] = i
		root.sumGrad += l.grad[i]
		root.sumHess += l.hess[i]
	}

	tree := Tree{Class: class}
	tree.Nodes = append(tree.Nodes, Node{
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  l.leafOutput(root.sumGrad, root.sumHess),
		Count:      n,
	})
	root.best = l.findBestSplit(root)
	leaves := []*leaf{root}

	for len(leaves) < l.params.NumLeaves {
		bestIdx := -1
		for i, lf := range leaves {
			if !lf.best.valid() || lf.best.Gain <= l.params.MinGainToSplit {
				continue
			}
			if bestIdx < 0 || lf.best.Gain > leaves[bestIdx].best.Gain {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		parent := leaves[bestIdx]
		left, right := l.split(&tree, parent)
		leaves[bestIdx] = left
		leaves = append(leaves, right)
		left.best = l.findBestSplit(left)
		right.best = l.findBestSplit(right)
	}
	return tree
}

// split turns parent into an internal node and returns its two children.
func (l *treeLearner) split(tree *Tree, parent *leaf) (*leaf, *leaf) {
	s := parent.best
	leftIdx := make([]int, 0, s.LeftCount)
	rightIdx := make([]int, 0, s.RightCount)
	for _, i := range parent.indices {
		if l.data.bin(s.Feature, i) <= s.Bin {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	left := &leaf{node: len(tree.Nodes), indices: leftIdx, sumGrad: s.LeftGrad, sumHess: s.LeftHess, depth: parent.depth + 1}
	right := &leaf{node: len(tree.Nodes) + 1, indices: rightIdx, sumGrad: s.RightGrad, sumHess: s.RightHess, depth: parent.depth + 1}
	tree.Nodes = append(tree.Nodes,
		Node{LeftChild: -1, RightChild: -1, LeafValue: l.leafOutput(s.LeftGrad, s.LeftHess), Count: len(leftIdx), Depth: left.depth},
		Node{LeftChild: -1, RightChild: -1, LeafValue: l.leafOutput(s.RightGrad, s.RightHess), Count: len(rightIdx), Depth: right.depth},
	)

	node := &tree.Nodes[parent.node]
	node.LeftChild = left.node
	node.RightChild = right.node
	node.SplitFeature = s.Feature
	node.ThresholdBin = s.Bin
	node.Threshold = l.data.BinMapper(s.Feature).Upper[s.Bin]
	// NaN maps to bin 0, which is always on the left.
	node.DefaultLeft = true
	node.Gain = s.Gain
	node.LeafValue = 0
	return left, right
}

// findBestSplit searches the sampled features in parallel and keeps the
// highest gain, preferring the lower feature index on ties.
func (l *treeLearner) findBestSplit(lf *leaf) SplitInfo {
	none := SplitInfo{Feature: -1}
	if l.params.MaxDepth > 0 && lf.depth >= l.params.MaxDepth {
		return none
	}
	if len(lf.indices) < 2*max(1, l.params.MinDataInLeaf) {
		return none
	}

	results := make([]SplitInfo, len(l.features))
	parallel.Parallelize(len(l.features), l.workers, func(start, end int) {
		for j := start; j < end; j++ {
			results[j] = l.findBestSplitForFeature(lf, l.features[j])
		}
	})

	best := none
	for _, s := range results {
		if s.valid() && (best.Feature < 0 || s.Gain > best.Gain) {
			best = s
		}
	}
	return best
}

func (l *treeLearner) findBestSplitForFeature(lf *leaf, feature int) SplitInfo {
	best := SplitInfo{Feature: -1}
	hist := l.buildHistogram(lf, feature)
	numBins := len(hist.Count)
	if numBins < 2 {
		return best
	}

	parentGain := l.leafGain(lf.sumGrad, lf.sumHess)
	total := len(lf.indices)
	var gl, hl float64
	cl := 0
	for b := 0; b < numBins-1; b++ {
		gl += hist.Grad[b]
		hl += hist.Hess[b]
		cl += hist.Count[b]
		if hist.Count[b] == 0 {
			continue
		}
		cr := total - cl
		if cl < l.params.MinDataInLeaf || hl < l.params.MinSumHessianInLeaf {
			continue
		}
		if cr < l.params.MinDataInLeaf || cr == 0 {
			break
		}
		gr, hr := lf.sumGrad-gl, lf.sumHess-hl
		if hr < l.params.MinSumHessianInLeaf {
			break
		}

		gain := l.leafGain(gl, hl) + l.leafGain(gr, hr) - parentGain
		if gain > best.Gain {
			best = SplitInfo{
				Feature: feature, Bin: uint16(b), Gain: gain,
				LeftGrad: gl, LeftHess: hl, LeftCount: cl,
				RightGrad: gr, RightHess: hr, RightCount: cr,
			}
		}
	}
	return best
}

func (l *treeLearner) buildHistogram(lf *leaf, feature int) Histogram {
	numBins := l.data.BinMapper(feature).NumBins()
	hist := Histogram{
		Grad:  make([]float64, numBins),
		Hess:  make([]float64, numBins),
		Count: make([]int, numBins),
	}
	for _, i := range lf.indices {
		b := l.data.bin(feature, i)
		hist.Grad[b] += l.grad[i]
		hist.Hess[b] += l.hess[i]
		hist.Count[b]++
	}
	return hist
}

func (l *treeLearner) leafGain(g, h float64) float64 {
	return g * g / (h + l.params.LambdaL2)
}

func (l *treeLearner) leafOutput(g, h float64) float64 {
	denom := h + l.params.LambdaL2
	if denom <= 0 {
		return 0
	}
	return -g / denom * l.params.LearningRate
}

// evalSet is a dataset evaluated after each round together with its running
// raw scores.
type evalSet struct {
	name   string
	data   *Dataset
	scores []float64
}

// trainer runs the boosting loop.
type trainer struct {
	params    TrainingParams
	train     *Dataset
	evalSets  []*evalSet
	objective *MulticlassSoftmax
	sampler   *SamplingStrategy
	workers   int
	logger    log.Logger

	booster     *Booster
	trainScores []float64
	grad        []float64
	hess        []float64

	callbacks *CallbackList
	observers []Observer
}

func newTrainer(params TrainingParams, train *Dataset, evalSets []*evalSet, cfg *trainConfig) *trainer {
	n, K := train.NumData(), params.NumClass
	objective := NewMulticlassSoftmax(K)
	initScores := objective.InitScores(train.labels)

	t := &trainer{
		params:      params,
		train:       train,
		evalSets:    evalSets,
		objective:   objective,
		sampler:     NewSamplingStrategy(params),
		workers:     parallel.Workers(params.NumThreads),
		logger:      cfg.logger,
		booster:     newBooster(params, initScores, train),
		trainScores: initialScores(n, initScores),
		grad:        make([]float64, n*K),
		hess:        make([]float64, n*K),
		callbacks:   NewCallbackList(cfg.callbacks...),
		observers:   cfg.observers,
	}
	for _, es := range evalSets {
		if es.data != train {
			es.scores = initialScores(es.data.NumData(), initScores)
		}
	}
	return t
}

func initialScores(n int, init []float64) []float64 {
	scores := make([]float64, n*len(init))
	for i := 0; i < n; i++ {
		copy(scores[i*len(init):], init)
	}
	return scores
}

// run executes up to numRounds boosting iterations.
func (t *trainer) run(numRounds int) (*Booster, error) {
	start := time.Now()
	t.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, t.train.NumData(),
		log.FeaturesKey, t.train.NumFeatures(),
		log.ClassesKey, t.params.NumClass,
		"rounds", numRounds,
	)

	for iter := 0; iter < numRounds; iter++ {
		finished := t.trainOneIter()
		if finished {
			t.logger.Warn("Stopped training because there are no more leaves that meet the split requirements",
				log.IterationKey, iter+1)
			break
		}

		results, err := t.evaluate(iter)
		if err != nil {
			return nil, scierrors.Wrapf(err, "lightgbm: evaluation failed at iteration %d", iter+1)
		}
		for _, r := range results {
			for _, obs := range t.observers {
				obs.Observe(iter+1, r.DatasetName+"_"+r.MetricName, r.Value)
			}
		}

		stop, err := t.callbacks.AfterIteration(iter, numRounds, t.booster, results)
		if err != nil {
			return nil, scierrors.Wrapf(err, "lightgbm: callback failed at iteration %d", iter+1)
		}
		if stop {
			break
		}
	}

	t.logger.Info("Training finished",
		log.OperationKey, log.OperationFit,
		log.IterationKey, t.booster.CurrentIteration(),
		log.TreesKey, t.booster.NumTrees(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return t.booster, nil
}

// trainOneIter grows one tree per class. It reports true when no tree in
// the iteration could split, in which case nothing is added.
func (t *trainer) trainOneIter() bool {
	n, K := t.train.NumData(), t.params.NumClass
	t.objective.GetGradients(t.train.labels, t.trainScores, t.grad, t.hess, t.workers)

	trees := make([]Tree, K)
	anySplit := false
	for k := 0; k < K; k++ {
		learner := &treeLearner{
			params:   t.params,
			data:     t.train,
			features: t.sampler.SampleFeatures(t.train.NumFeatures()),
			workers:  t.workers,
			grad:     t.grad[k*n : (k+1)*n],
			hess:     t.hess[k*n : (k+1)*n],
		}
		trees[k] = learner.grow(k)
		if len(trees[k].Nodes) > 1 {
			anySplit = true
		}
	}
	if !anySplit {
		return true
	}

	t.booster.trees = append(t.booster.trees, trees...)
	t.addScores(t.train, t.trainScores, trees)
	for _, es := range t.evalSets {
		if es.data != t.train {
			t.addScores(es.data, es.scores, trees)
		}
	}
	return false
}

func (t *trainer) addScores(d *Dataset, scores []float64, trees []Tree) {
	K := t.params.NumClass
	parallel.ParallelizeWithThreshold(d.NumData(), 1024, t.workers, func(start, end int) {
		for i := start; i < end; i++ {
			for k := range trees {
				scores[i*K+k] += trees[k].predictBinned(d, i)
			}
		}
	})
}

func (t *trainer) evaluate(iter int) ([]EvalResult, error) {
	var results []EvalResult
	for _, es := range t.evalSets {
		scores := es.scores
		if es.data == t.train {
			scores = t.trainScores
		}
		for _, metric := range t.params.Metrics {
			v, err := evalMetric(metric, es.data.labels, scores, t.params.NumClass)
			if err != nil {
				return nil, err
			}
			if err := scierrors.CheckScalar(es.name+"_"+metric, v, iter+1); err != nil {
				return nil, err
			}
			t.booster.record(es.name, metric, v)
			results = append(results, EvalResult{
				DatasetName:  es.name,
				MetricName:   metric,
				Value:        v,
				HigherBetter: false,
				Training:     es.data == t.train,
			})
		}
	}
	return results, nil
}
