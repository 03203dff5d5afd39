package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// Averaging strategies for F1Score.
const (
	AverageMacro    = "macro"
	AverageMicro    = "micro"
	AverageWeighted = "weighted"
)

// Scores は学習結果の評価値
type Scores struct {
	Accuracy float64
	F1Macro  float64
}

// Score は確率行列からargmaxでクラスを決め、正解率とマクロF1を計算する。
//
// マクロF1は yTrue に現れるクラスごとのF1の単純平均。真陽性も予測も0件の
// クラスのF1は0として平均に含める。
func Score(yTrue []int, proba mat.Matrix) (Scores, error) {
	if _, _, err := checkProba("Score", yTrue, proba); err != nil {
		return Scores{}, err
	}

	yPred := ArgMax(proba)
	f1, err := F1Score(yTrue, yPred, AverageMacro)
	if err != nil {
		return Scores{}, err
	}
	return Scores{
		Accuracy: accuracy(yTrue, yPred),
		F1Macro:  f1,
	}, nil
}

// classStats はクラスごとの TP / FP / FN / support
type classStats struct {
	tp, fp, fn, support int
}

// F1Score はyTrueに現れるクラスについてF1スコアを計算する。
// average は "macro"、"micro"、"weighted" のいずれか。
func F1Score(yTrue, yPred []int, average string) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("F1Score", "empty input")
	}
	if len(yTrue) != len(yPred) {
		return 0, errors.NewShapeMismatchError("F1Score", len(yTrue), len(yPred), 0)
	}

	stats := make(map[int]*classStats)
	for _, c := range yTrue {
		if stats[c] == nil {
			stats[c] = &classStats{}
		}
		stats[c].support++
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t == p {
			stats[t].tp++
			continue
		}
		stats[t].fn++
		if s, ok := stats[p]; ok {
			s.fp++
		}
	}

	labels := make([]int, 0, len(stats))
	for c := range stats {
		labels = append(labels, c)
	}
	sort.Ints(labels)

	switch average {
	case AverageMicro:
		var tp, fp, fn int
		for _, c := range labels {
			tp += stats[c].tp
			fp += stats[c].fp
			fn += stats[c].fn
		}
		return f1FromCounts(tp, fp, fn), nil
	case AverageMacro, AverageWeighted:
		var sum, weights float64
		for _, c := range labels {
			s := stats[c]
			if s.tp+s.fp == 0 {
				errors.Warn(errors.NewUndefinedMetricWarning("f1_score",
					"no predicted samples for a class present in y_true", 0))
			}
			w := 1.0
			if average == AverageWeighted {
				w = float64(s.support)
			}
			sum += w * f1FromCounts(s.tp, s.fp, s.fn)
			weights += w
		}
		return sum / weights, nil
	default:
		return 0, errors.NewInvalidParameterError("average", "must be one of macro, micro, weighted", average)
	}
}

// f1FromCounts は 2TP / (2TP + FP + FN)。分母が0なら0。
func f1FromCounts(tp, fp, fn int) float64 {
	denom := 2*tp + fp + fn
	if denom == 0 {
		return 0
	}
	return float64(2*tp) / float64(denom)
}

// ConfusionMatrix は (nClasses, nClasses) の混同行列を返す。行が正解、列が予測。
// nClasses <= 0 の場合はラベルの最大値+1を使う。
func ConfusionMatrix(yTrue, yPred []int, nClasses int) (*mat.Dense, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "empty input")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewShapeMismatchError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	if nClasses <= 0 {
		for i := range yTrue {
			nClasses = max(nClasses, yTrue[i]+1, yPred[i]+1)
		}
		if nClasses <= 0 {
			return nil, errors.NewValueError("ConfusionMatrix", "no non-negative labels to infer n_classes from")
		}
	}

	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, errors.NewValueError("ConfusionMatrix", "label outside [0, n_classes)")
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}
