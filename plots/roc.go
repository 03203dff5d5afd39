package plots

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scigo-wine/metrics"
	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// ROC plots one ROC curve per class (one-vs-rest) plus the micro- and
// macro-averaged curves. Classes that are absent from yTrue, or that make
// up every sample, have no curve.
func ROC(yTrue []int, proba mat.Matrix) (*plot.Plot, error) {
	_, nClasses, err := checkProba("plots.ROC", yTrue, proba)
	if err != nil {
		return nil, err
	}

	p := newUnitPlot("ROC Curves", "False Positive Rate", "True Positive Rate")
	var allFPR [][]float64
	var allTPR [][]float64
	for k := 0; k < nClasses; k++ {
		target, score, ok := oneVsRest(yTrue, proba, k)
		if !ok {
			continue
		}
		fpr, tpr, _, err := metrics.ROCCurve(target, score)
		if err != nil {
			return nil, errors.Wrapf(err, "plots: ROC for class %d", k)
		}
		label := fmt.Sprintf("ROC curve of class %d (area = %0.2f)", k, metrics.Trapezoid(fpr, tpr))
		if err := addCurve(p, fpr, tpr, label, k, vg.Points(2), false); err != nil {
			return nil, err
		}
		allFPR = append(allFPR, fpr)
		allTPR = append(allTPR, tpr)
	}
	if len(allFPR) == 0 {
		return nil, errors.NewValueError("plots.ROC", "no class has both positive and negative samples")
	}

	target, score := flatten(yTrue, proba)
	fpr, tpr, _, err := metrics.ROCCurve(target, score)
	if err != nil {
		return nil, errors.Wrap(err, "plots: micro-average ROC")
	}
	label := fmt.Sprintf("micro-average ROC curve (area = %0.2f)", metrics.Trapezoid(fpr, tpr))
	if err := addCurve(p, fpr, tpr, label, nClasses, vg.Points(4), true); err != nil {
		return nil, err
	}

	grid, meanTPR := macroAverage(allFPR, allTPR)
	label = fmt.Sprintf("macro-average ROC curve (area = %0.2f)", metrics.Trapezoid(grid, meanTPR))
	if err := addCurve(p, grid, meanTPR, label, nClasses+1, vg.Points(4), true); err != nil {
		return nil, err
	}

	if err := addDiagonal(p); err != nil {
		return nil, err
	}
	p.Legend.Top = false
	p.Legend.Left = false
	return p, nil
}

// macroAverage interpolates every curve on the union of their FPR values and
// averages the TPRs.
func macroAverage(fprs, tprs [][]float64) ([]float64, []float64) {
	seen := make(map[float64]bool)
	var grid []float64
	for _, fpr := range fprs {
		for _, x := range fpr {
			if !seen[x] {
				seen[x] = true
				grid = append(grid, x)
			}
		}
	}
	sort.Float64s(grid)

	mean := make([]float64, len(grid))
	for i := range fprs {
		for g, y := range interp(grid, fprs[i], tprs[i]) {
			mean[g] += y
		}
	}
	for g := range mean {
		mean[g] /= float64(len(fprs))
	}
	return grid, mean
}
