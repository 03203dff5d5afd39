package model

import (
	"gonum.org/v1/gonum/mat"
)

// ProbabilisticClassifier はクラス確率を出力する学習済み分類器のインターフェース
type ProbabilisticClassifier interface {
	// Predict は (n_samples, n_classes) のクラス確率行列を返す。各行の和は1。
	Predict(X mat.Matrix) (*mat.Dense, error)

	// Classes は学習時に見たクラスラベルを返す
	Classes() []int
}

// FeatureImportancer は特徴量重要度を公開するモデルのインターフェース
type FeatureImportancer interface {
	// FeatureImportance は importanceType ("split" または "gain") ごとの重要度を返す
	FeatureImportance(importanceType string) ([]float64, error)
}
