package plots

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scigo-wine/metrics"
	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// PrecisionRecall plots one precision-recall curve per class plus the
// micro-averaged curve. Legend entries carry the average precision.
func PrecisionRecall(yTrue []int, proba mat.Matrix) (*plot.Plot, error) {
	_, nClasses, err := checkProba("plots.PrecisionRecall", yTrue, proba)
	if err != nil {
		return nil, err
	}

	p := newUnitPlot("Precision-Recall Curve", "Recall", "Precision")
	drawn := 0
	for k := 0; k < nClasses; k++ {
		target, score, ok := oneVsRest(yTrue, proba, k)
		if !ok {
			continue
		}
		precision, recall, _, err := metrics.PrecisionRecallCurve(target, score)
		if err != nil {
			return nil, errors.Wrapf(err, "plots: precision-recall for class %d", k)
		}
		ap, err := metrics.AveragePrecision(target, score)
		if err != nil {
			return nil, err
		}
		label := fmt.Sprintf("Precision-recall curve of class %d (area = %0.3f)", k, ap)
		if err := addCurve(p, recall, precision, label, k, vg.Points(2), false); err != nil {
			return nil, err
		}
		drawn++
	}
	if drawn == 0 {
		return nil, errors.NewValueError("plots.PrecisionRecall", "no class has both positive and negative samples")
	}

	target, score := flatten(yTrue, proba)
	precision, recall, _, err := metrics.PrecisionRecallCurve(target, score)
	if err != nil {
		return nil, errors.Wrap(err, "plots: micro-average precision-recall")
	}
	ap, err := metrics.AveragePrecision(target, score)
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("micro-average Precision-recall curve (area = %0.3f)", ap)
	if err := addCurve(p, recall, precision, label, nClasses, vg.Points(4), true); err != nil {
		return nil, err
	}

	p.Legend.Top = false
	p.Legend.Left = true
	return p, nil
}
