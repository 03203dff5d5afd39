// Package plots renders classifier performance charts with gonum/plot:
// one-vs-rest ROC and precision-recall curves and a confusion matrix heat
// map.
package plots

import (
	"bytes"
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// Figure size used by Render.
const (
	Width  = 12 * vg.Inch
	Height = 10 * vg.Inch
)

// FormatPNG is the default image format.
const FormatPNG = "png"

// Render draws p at Width×Height and returns the encoded image.
// Panics raised while drawing are returned as errors.
func Render(p *plot.Plot, format string) ([]byte, error) {
	if p == nil {
		return nil, errors.NewValueError("plots.Render", "plot is nil")
	}
	if format == "" {
		format = FormatPNG
	}

	var buf bytes.Buffer
	err := errors.SafeExecute("plots.Render", func() error {
		wt, err := p.WriterTo(Width, Height, format)
		if err != nil {
			return errors.Wrapf(err, "plots: unsupported format %q", format)
		}
		_, err = wt.WriteTo(&buf)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.GetLoggerWithName("plots").Debug("Chart rendered",
		log.OperationKey, log.OperationRender,
		"title", p.Title.Text,
		"bytes", buf.Len(),
	)
	return buf.Bytes(), nil
}

// checkProba validates an (n_samples, n_classes) probability matrix against
// the labels and returns its dimensions.
func checkProba(op string, yTrue []int, proba mat.Matrix) (int, int, error) {
	if proba == nil || len(yTrue) == 0 {
		return 0, 0, errors.NewValueError(op, "empty input")
	}
	rows, cols := proba.Dims()
	if rows != len(yTrue) {
		return 0, 0, errors.NewShapeMismatchError(op, len(yTrue), rows, 0)
	}
	for _, c := range yTrue {
		if c < 0 || c >= cols {
			return 0, 0, errors.NewValueError(op, fmt.Sprintf("label %d has no probability column (n_classes=%d)", c, cols))
		}
	}
	return rows, cols, nil
}

// oneVsRest returns the binary targets and scores for class k.
func oneVsRest(yTrue []int, proba mat.Matrix, k int) (*mat.VecDense, *mat.VecDense, bool) {
	n := len(yTrue)
	target := mat.NewVecDense(n, nil)
	positives := 0
	for i, c := range yTrue {
		if c == k {
			target.SetVec(i, 1)
			positives++
		}
	}
	score := mat.NewVecDense(n, mat.Col(nil, k, proba))
	return target, score, positives > 0 && positives < n
}

// flatten stacks all one-vs-rest problems into one, for micro averages.
func flatten(yTrue []int, proba mat.Matrix) (*mat.VecDense, *mat.VecDense) {
	rows, cols := proba.Dims()
	target := mat.NewVecDense(rows*cols, nil)
	score := mat.NewVecDense(rows*cols, nil)
	for i := 0; i < rows; i++ {
		for k := 0; k < cols; k++ {
			if yTrue[i] == k {
				target.SetVec(i*cols+k, 1)
			}
			score.SetVec(i*cols+k, proba.At(i, k))
		}
	}
	return target, score
}

// addCurve adds a styled line with a legend entry.
func addCurve(p *plot.Plot, xs, ys []float64, label string, style int, width vg.Length, dashed bool) error {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrapf(err, "plots: curve %q", label)
	}
	line.LineStyle.Width = width
	line.LineStyle.Color = plotutil.Color(style)
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	}
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

// addDiagonal adds the chance line y = x.
func addDiagonal(p *plot.Plot) error {
	line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	line.LineStyle = draw.LineStyle{
		Color:  color.Gray{Y: 0x40},
		Width:  vg.Points(1),
		Dashes: []vg.Length{vg.Points(3), vg.Points(3)},
	}
	p.Add(line)
	return nil
}

// newUnitPlot creates a plot with both axes fixed to [0, 1.05].
func newUnitPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Add(plotter.NewGrid())
	return p
}

// interp linearly interpolates y(x) at each grid point; xs must be sorted
// ascending.
func interp(grid, xs, ys []float64) []float64 {
	out := make([]float64, len(grid))
	for g, x := range grid {
		j := sort.SearchFloat64s(xs, x)
		switch {
		case j == 0:
			out[g] = ys[0]
		case j >= len(xs):
			out[g] = ys[len(ys)-1]
		case xs[j] == x:
			// rightmost point at x, as numpy.interp does for repeated xs
			for j+1 < len(xs) && xs[j+1] == x {
				j++
			}
			out[g] = ys[j]
		default:
			t := (x - xs[j-1]) / (xs[j] - xs[j-1])
			out[g] = ys[j-1] + t*(ys[j]-ys[j-1])
		}
	}
	return out
}
