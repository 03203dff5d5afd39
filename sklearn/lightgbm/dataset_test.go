package lightgbm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

func TestBinMapper_DistinctValues(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, 2, math.NaN()}, 255)

	require.Equal(t, 3, m.NumBins())
	assert.Equal(t, []float64{1.5, 2.5}, m.Upper[:2])
	assert.True(t, math.IsInf(m.Upper[2], 1))

	assert.Equal(t, uint16(0), m.ValueToBin(1))
	assert.Equal(t, uint16(1), m.ValueToBin(2))
	assert.Equal(t, uint16(1), m.ValueToBin(2.5))
	assert.Equal(t, uint16(2), m.ValueToBin(100))
	assert.Equal(t, uint16(0), m.ValueToBin(-100))
	assert.Equal(t, uint16(0), m.ValueToBin(math.NaN()))
}

func TestBinMapper_Quantiles(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	m := newBinMapper(values, 10)

	assert.LessOrEqual(t, m.NumBins(), 10)
	assert.GreaterOrEqual(t, m.NumBins(), 2)
	for i := 1; i < m.NumBins(); i++ {
		assert.Greater(t, m.Upper[i], m.Upper[i-1])
	}
}

func TestBinMapper_ConstantFeature(t *testing.T) {
	m := newBinMapper([]float64{5, 5, 5}, 255)
	assert.Equal(t, 1, m.NumBins())
}

func TestNewDataset_Errors(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	t.Run("nil matrix", func(t *testing.T) {
		_, err := NewDataset(nil, nil)
		var ve *scierrors.ValueError
		assert.True(t, scierrors.As(err, &ve))
	})

	t.Run("label count", func(t *testing.T) {
		_, err := NewDataset(X, []int{0, 1})
		var se *scierrors.ShapeMismatchError
		require.True(t, scierrors.As(err, &se))
		assert.Equal(t, 0, se.Axis)
	})

	t.Run("reference features", func(t *testing.T) {
		ref, err := NewDataset(X, []int{0, 1, 2})
		require.NoError(t, err)
		other := mat.NewDense(2, 3, nil)
		_, err = NewDataset(other, []int{0, 1}, WithReference(ref))
		var se *scierrors.ShapeMismatchError
		require.True(t, scierrors.As(err, &se))
		assert.Equal(t, 1, se.Axis)
	})

	t.Run("max bin", func(t *testing.T) {
		_, err := NewDataset(X, []int{0, 1, 2}, WithMaxBin(1))
		var pe *scierrors.InvalidParameterError
		require.True(t, scierrors.As(err, &pe))
		assert.Equal(t, "max_bin", pe.ParamName)
	})
}

func TestNewDataset_ReferenceSharesMappers(t *testing.T) {
	train, err := NewDataset(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), []int{0, 0, 1, 1},
		WithFeatureNames([]string{"alcohol"}))
	require.NoError(t, err)

	valid, err := NewDataset(mat.NewDense(2, 1, []float64{2.2, 10}), []int{0, 1}, WithReference(train))
	require.NoError(t, err)

	assert.Same(t, train.BinMapper(0), valid.BinMapper(0))
	assert.Equal(t, []string{"alcohol"}, valid.FeatureNames())
	assert.Equal(t, uint16(1), valid.bin(0, 0))
	assert.Equal(t, uint16(3), valid.bin(0, 1))
}

func TestDataset_DefaultFeatureNames(t *testing.T) {
	d, err := NewDataset(mat.NewDense(1, 2, []float64{1, 2}), []int{0})
	require.NoError(t, err)
	assert.Equal(t, []string{"Column_0", "Column_1"}, d.FeatureNames())
}

func TestNewDataset_MapperPerColumn(t *testing.T) {
	X := mat.NewDense(5, 3, []float64{
		1, 10, 0,
		2, 10, 0,
		3, 20, 0,
		4, 20, 0,
		5, 30, 0,
	})
	d, err := NewDataset(X, []int{0, 0, 1, 1, 1})
	require.NoError(t, err)

	for f := 0; f < 3; f++ {
		want := newBinMapper(mat.Col(nil, f, X), 255)
		assert.Equal(t, want.Upper, d.BinMapper(f).Upper, "feature %d", f)
	}
	assert.Equal(t, 5, d.BinMapper(0).NumBins())
	assert.Equal(t, 3, d.BinMapper(1).NumBins())
	assert.Equal(t, 1, d.BinMapper(2).NumBins())
}
