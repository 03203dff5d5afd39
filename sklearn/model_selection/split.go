// Package model_selection はデータ分割ユーティリティを提供します。
package model_selection

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// Split はTrainTestSplitの結果を保持する
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest []int
	// TrainIndex, TestIndex は元データでの行番号
	TrainIndex, TestIndex []int
}

type splitConfig struct {
	rng *rand.Rand
}

// SplitOption はTrainTestSplitのオプション
type SplitOption func(*splitConfig)

// WithRandomState は乱数シードを固定し、分割を再現可能にする
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) {
		c.rng = rand.New(rand.NewSource(seed))
	}
}

// TrainTestSplit はデータを学習用とテスト用にランダムに分割する。
//
// テスト件数は round(n*testSize)、学習件数は残り全て。行は非復元の
// 一様ランダム置換で割り当てられる。シードを指定しない場合は呼び出しごとに
// 異なる分割になる。
//
// パラメータ:
//   - X: 特徴量行列 (n_samples × n_features)
//   - y: ラベル (n_samples)
//   - testSize: テストに回す割合。(0, 1) の範囲
//
// 例:
//
//	split, err := model_selection.TrainTestSplit(X, y, 0.25, model_selection.WithRandomState(42))
func TrainTestSplit(X mat.Matrix, y []int, testSize float64, opts ...SplitOption) (*Split, error) {
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, scierrors.NewInvalidParameterError("test_size", "must be in the open interval (0, 1)", testSize)
	}
	if X == nil {
		return nil, scierrors.NewValueError("TrainTestSplit", "X must not be nil")
	}
	n, nFeatures := X.Dims()
	if n != len(y) {
		return nil, scierrors.NewShapeMismatchError("TrainTestSplit", n, len(y), 0)
	}

	nTest := int(math.Round(float64(n) * testSize))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, scierrors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%v the resulting train or test set would be empty", n, testSize))
	}

	cfg := &splitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	perm := cfg.rng.Perm(n)
	testIdx := append([]int(nil), perm[:nTest]...)
	trainIdx := append([]int(nil), perm[nTest:]...)

	return &Split{
		XTrain:     takeRows(X, trainIdx, nFeatures),
		XTest:      takeRows(X, testIdx, nFeatures),
		YTrain:     takeLabels(y, trainIdx),
		YTest:      takeLabels(y, testIdx),
		TrainIndex: trainIdx,
		TestIndex:  testIdx,
	}, nil
}

func takeRows(X mat.Matrix, idx []int, nFeatures int) *mat.Dense {
	out := mat.NewDense(len(idx), nFeatures, nil)
	for i, r := range idx {
		for j := 0; j < nFeatures; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func takeLabels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
