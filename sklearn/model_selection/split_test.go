package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// indexed builds an n×2 matrix whose first column is the row number.
func indexed(n int) (*mat.Dense, []int) {
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i)*10)
		y[i] = i % 3
	}
	return X, y
}

func TestTrainTestSplit_Sizes(t *testing.T) {
	tests := []struct {
		n         int
		testSize  float64
		wantTest  int
		wantTrain int
	}{
		{178, 0.25, 45, 133},
		{100, 0.25, 25, 75},
		{10, 0.5, 5, 5},
		{4, 0.25, 1, 3},
		{3, 0.5, 2, 1},
	}
	for _, tt := range tests {
		X, y := indexed(tt.n)
		s, err := TrainTestSplit(X, y, tt.testSize, WithRandomState(1))
		require.NoError(t, err)

		assert.Len(t, s.YTest, tt.wantTest, "n=%d", tt.n)
		assert.Len(t, s.YTrain, tt.wantTrain, "n=%d", tt.n)
		r, c := s.XTest.Dims()
		assert.Equal(t, tt.wantTest, r)
		assert.Equal(t, 2, c)
		r, _ = s.XTrain.Dims()
		assert.Equal(t, tt.wantTrain, r)
	}
}

func TestTrainTestSplit_DisjointAndCovering(t *testing.T) {
	X, y := indexed(178)
	s, err := TrainTestSplit(X, y, 0.25, WithRandomState(42))
	require.NoError(t, err)

	all := append(append([]int(nil), s.TrainIndex...), s.TestIndex...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	for i, r := range s.TestIndex {
		assert.Equal(t, float64(r), s.XTest.At(i, 0))
		assert.Equal(t, float64(r)*10, s.XTest.At(i, 1))
		assert.Equal(t, y[r], s.YTest[i])
	}
	for i, r := range s.TrainIndex {
		assert.Equal(t, float64(r), s.XTrain.At(i, 0))
		assert.Equal(t, y[r], s.YTrain[i])
	}
}

func TestTrainTestSplit_Reproducible(t *testing.T) {
	X, y := indexed(50)
	a, err := TrainTestSplit(X, y, 0.3, WithRandomState(7))
	require.NoError(t, err)
	b, err := TrainTestSplit(X, y, 0.3, WithRandomState(7))
	require.NoError(t, err)
	c, err := TrainTestSplit(X, y, 0.3, WithRandomState(8))
	require.NoError(t, err)

	assert.Equal(t, a.TestIndex, b.TestIndex)
	assert.NotEqual(t, a.TestIndex, c.TestIndex)
}

func TestTrainTestSplit_Errors(t *testing.T) {
	X, y := indexed(10)

	for _, ts := range []float64{0, 1, -0.1, 1.5} {
		_, err := TrainTestSplit(X, y, ts)
		var ipe *scierrors.InvalidParameterError
		require.True(t, scierrors.As(err, &ipe), "test_size=%v", ts)
		assert.Equal(t, "test_size", ipe.ParamName)
	}

	_, err := TrainTestSplit(X, y[:9], 0.25)
	var sme *scierrors.ShapeMismatchError
	require.True(t, scierrors.As(err, &sme))
	assert.Equal(t, 10, sme.Expected)
	assert.Equal(t, 9, sme.Got)

	one, oneY := indexed(1)
	_, err = TrainTestSplit(one, oneY, 0.25)
	var ve *scierrors.ValueError
	assert.True(t, scierrors.As(err, &ve))

	two, twoY := indexed(2)
	_, err = TrainTestSplit(two, twoY, 0.1)
	assert.True(t, scierrors.As(err, &ve))
}
