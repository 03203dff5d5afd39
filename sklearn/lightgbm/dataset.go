package lightgbm

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-wine/core/parallel"
	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// maxSupportedBins is the largest max_bin a uint16 bin index can hold.
const maxSupportedBins = math.MaxUint16

// BinMapper maps raw feature values to histogram bins.
// Bin b holds values v with Upper[b-1] < v <= Upper[b]; the last bound is +Inf.
type BinMapper struct {
	Upper []float64
}

// NumBins returns the number of bins.
func (m *BinMapper) NumBins() int {
	return len(m.Upper)
}

// ValueToBin returns the bin index for v. NaN goes to bin 0.
func (m *BinMapper) ValueToBin(v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	return uint16(sort.SearchFloat64s(m.Upper, v))
}

// newBinMapper builds bin boundaries for one feature column.
// With at most maxBin distinct values every value gets its own bin and the
// boundaries sit halfway between neighbours; otherwise the boundaries are
// count quantiles of the sorted values.
func newBinMapper(values []float64, maxBin int) *BinMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)

	var distinct []float64
	var counts []int
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
	}

	if len(distinct) == 0 {
		return &BinMapper{Upper: []float64{math.Inf(1)}}
	}

	var upper []float64
	if len(distinct) <= maxBin {
		for i := 0; i+1 < len(distinct); i++ {
			upper = append(upper, (distinct[i]+distinct[i+1])/2)
		}
	} else {
		perBin := float64(len(sorted)) / float64(maxBin)
		acc := 0
		next := perBin
		for i := 0; i+1 < len(distinct) && len(upper) < maxBin-1; i++ {
			acc += counts[i]
			if float64(acc) >= next {
				upper = append(upper, (distinct[i]+distinct[i+1])/2)
				for next <= float64(acc) {
					next += perBin
				}
			}
		}
	}
	upper = append(upper, math.Inf(1))
	return &BinMapper{Upper: upper}
}

// Dataset is a binned training or validation set.
type Dataset struct {
	raw          *mat.Dense
	labels       []int
	featureNames []string
	maxBin       int
	reference    *Dataset

	numData     int
	numFeatures int
	mappers     []*BinMapper
	// bins is feature-major: bins[f*numData+i]
	bins []uint16
}

// DatasetOption configures NewDataset.
type DatasetOption func(*Dataset)

// WithReference bins a validation set with the mappers of the training set.
func WithReference(ref *Dataset) DatasetOption {
	return func(d *Dataset) { d.reference = ref }
}

// WithFeatureNames attaches column names.
func WithFeatureNames(names []string) DatasetOption {
	return func(d *Dataset) { d.featureNames = append([]string(nil), names...) }
}

// WithMaxBin sets the maximum number of histogram bins per feature.
func WithMaxBin(maxBin int) DatasetOption {
	return func(d *Dataset) { d.maxBin = maxBin }
}

// NewDataset creates a Dataset from a feature matrix and integer class labels.
func NewDataset(X mat.Matrix, labels []int, opts ...DatasetOption) (*Dataset, error) {
	if X == nil {
		return nil, scierrors.NewValueError("NewDataset", "feature matrix is nil")
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, scierrors.NewValueError("NewDataset", "feature matrix is empty")
	}
	if len(labels) != rows {
		return nil, scierrors.NewShapeMismatchError("NewDataset", rows, len(labels), 0)
	}

	d := &Dataset{
		raw:         mat.DenseCopyOf(X),
		labels:      append([]int(nil), labels...),
		maxBin:      255,
		numData:     rows,
		numFeatures: cols,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxBin < 2 || d.maxBin > maxSupportedBins {
		return nil, scierrors.NewInvalidParameterError("max_bin", fmt.Sprintf("must be in [2, %d]", maxSupportedBins), d.maxBin)
	}
	if d.featureNames != nil && len(d.featureNames) != cols {
		return nil, scierrors.NewShapeMismatchError("NewDataset.feature_names", cols, len(d.featureNames), 1)
	}
	if d.reference != nil {
		if d.reference.numFeatures != cols {
			return nil, scierrors.NewShapeMismatchError("NewDataset.reference", d.reference.numFeatures, cols, 1)
		}
		if d.featureNames == nil {
			d.featureNames = d.reference.featureNames
		}
		d.construct(d.reference.mappers)
		return d, nil
	}

	d.construct(buildMappers(d))
	return d, nil
}

// buildMappers computes bin boundaries for every column of d, one column
// per worker.
func buildMappers(d *Dataset) []*BinMapper {
	mappers := make([]*BinMapper, d.numFeatures)
	// fn never fails, so neither does ForEach.
	_ = parallel.ForEach(context.Background(), d.numFeatures, 0, func(_ context.Context, f int) error {
		mappers[f] = newBinMapper(mat.Col(nil, f, d.raw), d.maxBin)
		return nil
	})
	return mappers
}

// construct bins the raw matrix with the given mappers.
func (d *Dataset) construct(mappers []*BinMapper) {
	d.mappers = mappers
	d.bins = make([]uint16, d.numFeatures*d.numData)
	for f := 0; f < d.numFeatures; f++ {
		base := f * d.numData
		for i := 0; i < d.numData; i++ {
			d.bins[base+i] = mappers[f].ValueToBin(d.raw.At(i, f))
		}
	}
}

// rebin re-bins the dataset onto another dataset's mappers.
func (d *Dataset) rebin(ref *Dataset) error {
	if ref.numFeatures != d.numFeatures {
		return scierrors.NewShapeMismatchError("Dataset.rebin", ref.numFeatures, d.numFeatures, 1)
	}
	d.reference = ref
	d.construct(ref.mappers)
	return nil
}

// NumData returns the number of rows.
func (d *Dataset) NumData() int { return d.numData }

// NumFeatures returns the number of columns.
func (d *Dataset) NumFeatures() int { return d.numFeatures }

// Labels returns a copy of the class labels.
func (d *Dataset) Labels() []int { return append([]int(nil), d.labels...) }

// FeatureNames returns the column names, generating Column_i when none were given.
func (d *Dataset) FeatureNames() []string {
	if d.featureNames != nil {
		return append([]string(nil), d.featureNames...)
	}
	names := make([]string, d.numFeatures)
	for i := range names {
		names[i] = fmt.Sprintf("Column_%d", i)
	}
	return names
}

// BinMapper returns the mapper of feature f.
func (d *Dataset) BinMapper(f int) *BinMapper { return d.mappers[f] }

func (d *Dataset) bin(f, i int) uint16 {
	return d.bins[f*d.numData+i]
}
