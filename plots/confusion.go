package plots

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"

	"github.com/YuminosukeSato/scigo-wine/metrics"
	"github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// confusionGrid exposes a confusion matrix as a plotter.GridXYZ with the
// first class in the top row.
type confusionGrid struct {
	cm *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	rows, cols := g.cm.Dims()
	return cols, rows
}

func (g confusionGrid) Z(c, r int) float64 {
	rows, _ := g.cm.Dims()
	return g.cm.At(rows-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionMatrix plots the confusion matrix of predicted labels as a heat
// map with the count written in every cell. Rows are true labels, columns
// are predicted labels.
func ConfusionMatrix(yTrue, yPred []int) (*plot.Plot, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("plots.ConfusionMatrix", "empty input")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewShapeMismatchError("plots.ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	nClasses := 0
	for i := range yTrue {
		nClasses = max(nClasses, yTrue[i]+1, yPred[i]+1)
	}
	cm, err := metrics.ConfusionMatrix(yTrue, yPred, nClasses)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted label"
	p.Y.Label.Text = "True label"

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(max(mat.Max(cm), 1))
	heat := plotter.NewHeatMap(confusionGrid{cm: cm}, cmap.Palette(255))
	p.Add(heat)

	grid := confusionGrid{cm: cm}
	cols, rows := grid.Dims()
	cells := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, rows*cols),
		Labels: make([]string, 0, rows*cols),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			cells.Labels = append(cells.Labels, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return nil, errors.Wrap(err, "plots: confusion matrix labels")
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = color.Black
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(labels)

	names := make([]string, nClasses)
	for k := range names {
		names[k] = fmt.Sprint(k)
	}
	reversed := make([]string, nClasses)
	for k := range reversed {
		reversed[k] = names[nClasses-1-k]
	}
	p.NominalX(names...)
	p.NominalY(reversed...)
	return p, nil
}
