// Package metrics は分類モデルの評価指標を提供します。
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// logLossEps はlog(0)を避けるための確率クリップ幅
const logLossEps = 1e-15

// checkBinaryVecs は二値ラベルとスコアのベクトルを検証する
func checkBinaryVecs(op string, yTrue, yScore *mat.VecDense) (int, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError(op, "input vectors must not be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yScore.Len() != n {
		return 0, errors.NewShapeMismatchError(op, n, yScore.Len(), 0)
	}
	for i := 0; i < n; i++ {
		if v := yTrue.AtVec(i); v != 0 && v != 1 {
			return 0, errors.NewValueError(op, "y_true must contain only 0 and 1")
		}
	}
	return n, nil
}

// binaryClfCurve はスコア降順の各ユニーク閾値における累積TP/FPを返す
func binaryClfCurve(yTrue, yScore *mat.VecDense) (fps, tps, thresholds []float64) {
	n := yTrue.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yScore.AtVec(order[a]) > yScore.AtVec(order[b])
	})

	var tp, fp float64
	for k, idx := range order {
		if yTrue.AtVec(idx) == 1 {
			tp++
		} else {
			fp++
		}
		// 同じスコアはまとめて1点にする
		if k+1 < n && yScore.AtVec(order[k+1]) == yScore.AtVec(idx) {
			continue
		}
		tps = append(tps, tp)
		fps = append(fps, fp)
		thresholds = append(thresholds, yScore.AtVec(idx))
	}
	return fps, tps, thresholds
}

// ROCCurve は二値分類のROC曲線を計算する。
// 返り値の先頭は (0, 0)、閾値は +Inf から降順。
// 正例または負例が存在しない場合は該当軸を0で埋め、UndefinedMetricWarningを出す。
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	if _, err := checkBinaryVecs("ROCCurve", yTrue, yScore); err != nil {
		return nil, nil, nil, err
	}

	fps, tps, thr := binaryClfCurve(yTrue, yScore)
	fps = append([]float64{0}, fps...)
	tps = append([]float64{0}, tps...)
	thresholds = append([]float64{math.Inf(1)}, thr...)

	negatives := fps[len(fps)-1]
	positives := tps[len(tps)-1]
	if negatives == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_curve", "no negative samples in y_true, false positive rate is meaningless", 0))
	}
	if positives == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_curve", "no positive samples in y_true, true positive rate is meaningless", 0))
	}

	fpr = make([]float64, len(fps))
	tpr = make([]float64, len(tps))
	for i := range fps {
		if negatives > 0 {
			fpr[i] = fps[i] / negatives
		}
		if positives > 0 {
			tpr[i] = tps[i] / positives
		}
	}
	return fpr, tpr, thresholds, nil
}

// AUC はROC曲線下面積を計算する。
// 正例のみ・負例のみの場合は定義できないため0.5を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkBinaryVecs("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	positives := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			positives++
		}
	}
	if positives == 0 || positives == n {
		return 0.5, nil
	}

	fpr, tpr, _, err := ROCCurve(yTrue, yScore)
	if err != nil {
		return 0, err
	}
	return Trapezoid(fpr, tpr), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する（先頭列を使用）
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "input matrices must not be nil")
	}
	rTrue, cTrue := yTrue.Dims()
	rScore, cScore := yScore.Dims()
	if rTrue == 0 || cTrue == 0 || rScore == 0 || cScore == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rScore {
		return 0, errors.NewShapeMismatchError("AUCMatrix", rTrue, rScore, 0)
	}

	return AUC(
		mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)),
		mat.NewVecDense(rScore, mat.Col(nil, 0, yScore)),
	)
}

// Trapezoid は台形公式で曲線下面積を計算する
func Trapezoid(x, y []float64) float64 {
	area := 0.0
	for i := 1; i < len(x) && i < len(y); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return math.Abs(area)
}

// BinaryLogLoss は二値分類の対数損失を計算する
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkBinaryVecs("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := clip(yPred.AtVec(i))
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// MultiLogLoss は多クラス分類の対数損失（multi_logloss）を計算する。
// proba は (n_samples, n_classes) のクラス確率行列。
func MultiLogLoss(yTrue []int, proba mat.Matrix) (float64, error) {
	n, k, err := checkProba("MultiLogLoss", yTrue, proba)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i, c := range yTrue {
		if c < 0 || c >= k {
			return 0, errors.NewValueError("MultiLogLoss", "label outside the probability columns")
		}
		sum -= math.Log(clip(proba.At(i, c)))
	}
	return sum / float64(n), nil
}

func clip(p float64) float64 {
	return math.Max(logLossEps, math.Min(1-logLossEps, p))
}

func checkProba(op string, yTrue []int, proba mat.Matrix) (int, int, error) {
	if proba == nil {
		return 0, 0, errors.NewValueError(op, "probability matrix must not be nil")
	}
	n, k := proba.Dims()
	if len(yTrue) == 0 || n == 0 || k == 0 {
		return 0, 0, errors.NewValueError(op, "empty input")
	}
	if n != len(yTrue) {
		return 0, 0, errors.NewShapeMismatchError(op, len(yTrue), n, 0)
	}
	return n, k, nil
}

// toLabels は浮動小数のラベルベクトルを整数ラベルに変換する
func toLabels(op string, v *mat.VecDense) ([]int, error) {
	out := make([]int, v.Len())
	for i := range out {
		f := v.AtVec(i)
		if f != math.Trunc(f) {
			return nil, errors.NewValueError(op, "labels must be integral")
		}
		out[i] = int(f)
	}
	return out, nil
}

func checkLabelVecs(op string, yTrue, yPred *mat.VecDense) ([]int, []int, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "input vectors must not be nil")
	}
	if yTrue.Len() == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if yTrue.Len() != yPred.Len() {
		return nil, nil, errors.NewShapeMismatchError(op, yTrue.Len(), yPred.Len(), 0)
	}
	t, err := toLabels(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := toLabels(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := checkLabelVecs("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return accuracy(t, p), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

func accuracy(yTrue, yPred []int) float64 {
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ArgMax は確率行列の各行で最大確率のクラス番号を返す。同値の場合は小さい番号。
func ArgMax(proba mat.Matrix) []int {
	n, k := proba.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// LabelBinarize は整数ラベルを (n_samples, nClasses) のone-hot行列に変換する
func LabelBinarize(y []int, nClasses int) (*mat.Dense, error) {
	if len(y) == 0 || nClasses <= 0 {
		return nil, errors.NewValueError("LabelBinarize", "empty input")
	}
	out := mat.NewDense(len(y), nClasses, nil)
	for i, c := range y {
		if c < 0 || c >= nClasses {
			return nil, errors.NewValueError("LabelBinarize", "label outside [0, n_classes)")
		}
		out.Set(i, c, 1)
	}
	return out, nil
}
