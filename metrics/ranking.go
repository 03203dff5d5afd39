package metrics

import (
	"gonum.org/v1/gonum/mat"
)

// PrecisionRecallCurve は二値分類の適合率-再現率曲線を計算する。
//
// 閾値は昇順で、precision と recall は閾値より1要素長く、
// 末尾は precision=1, recall=0 の点。
func PrecisionRecallCurve(yTrue, yScore *mat.VecDense) (precision, recall, thresholds []float64, err error) {
	if _, err := checkBinaryVecs("PrecisionRecallCurve", yTrue, yScore); err != nil {
		return nil, nil, nil, err
	}

	fps, tps, thr := binaryClfCurve(yTrue, yScore)
	positives := tps[len(tps)-1]

	m := len(thr)
	precision = make([]float64, 0, m+1)
	recall = make([]float64, 0, m+1)
	thresholds = make([]float64, 0, m)
	// 閾値の昇順に並べ替える
	for i := m - 1; i >= 0; i-- {
		p := 0.0
		if tps[i]+fps[i] > 0 {
			p = tps[i] / (tps[i] + fps[i])
		}
		r := 0.0
		if positives > 0 {
			r = tps[i] / positives
		}
		precision = append(precision, p)
		recall = append(recall, r)
		thresholds = append(thresholds, thr[i])
	}
	precision = append(precision, 1)
	recall = append(recall, 0)
	return precision, recall, thresholds, nil
}

// AveragePrecision は平均適合率を計算する。
// AP = Σ (R_n - R_{n-1}) P_n。正例が無い場合は0。
func AveragePrecision(yTrue, yScore *mat.VecDense) (float64, error) {
	precision, recall, _, err := PrecisionRecallCurve(yTrue, yScore)
	if err != nil {
		return 0, err
	}

	ap := 0.0
	for i := 0; i < len(recall)-1; i++ {
		ap += (recall[i] - recall[i+1]) * precision[i]
	}
	return ap, nil
}
