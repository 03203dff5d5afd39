// Package model はモデル共通の学習状態管理とインターフェースを提供します。
package model

import (
	"sync"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// StateManager はモデルの学習状態と学習時の次元をスレッドセーフに管理する
type StateManager struct {
	mu        sync.RWMutex
	state     EstimatorState
	nFeatures int
	nSamples  int
}

// NewStateManager は未学習状態のStateManagerを作成する
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted はモデルが学習済みかどうかを返す
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、学習時の次元を記録する
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Fitted
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// Reset はモデルを初期状態にリセットする
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = NotFitted
	s.nFeatures = 0
	s.nSamples = 0
}

// Dimensions は学習時の特徴量数とサンプル数を返す
func (s *StateManager) Dimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted は未学習の場合にNotFittedErrorを返す
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return scierrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures は入力の特徴量数が学習時と一致するか検証する
func (s *StateManager) CheckFeatures(op string, got int) error {
	nFeatures, _ := s.Dimensions()
	if got != nFeatures {
		return scierrors.NewShapeMismatchError(op, nFeatures, got, 1)
	}
	return nil
}
