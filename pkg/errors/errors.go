// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 学習パイプラインで発生する失敗を診断しやすくするための粗いエラー分類
// (認証・接続・パラメータ・形状) と、cockroachdb/errors のラッパーを含みます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("scigo-wine warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、あるクラスが正解にも予測にも一度も現れずF1が定義できない場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	パイプラインのエラー分類
//
// ===========================================================================

// AuthenticationError はトラッキングバックエンドの認証情報が欠落・不正な場合のエラーです。
type AuthenticationError struct {
	Backend string
	Project string
	Reason  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("scigo-wine: authentication failed for %s (project %q): %s", e.Backend, e.Project, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *AuthenticationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("backend", e.Backend).
		Str("project", e.Project).
		Str("reason", e.Reason).
		Str("type", "AuthenticationError")
}

// NewAuthenticationError は新しいAuthenticationErrorを作成し、スタックトレースを付与します。
func NewAuthenticationError(backend, project, reason string) error {
	return errors.WithStack(&AuthenticationError{Backend: backend, Project: project, Reason: reason})
}

// ConnectivityError はトラッキングバックエンドに到達できない場合のエラーです。
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scigo-wine: cannot reach %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("scigo-wine: cannot reach %s", e.Endpoint)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConnectivityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("endpoint", e.Endpoint).
		Str("type", "ConnectivityError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewConnectivityError は新しいConnectivityErrorを作成し、スタックトレースを付与します。
func NewConnectivityError(endpoint string, err error) error {
	return errors.WithStack(&ConnectivityError{Endpoint: endpoint, Err: err})
}

// InvalidParameterError はハイパーパラメータや設定値が受け付け範囲外の場合のエラーです。
type InvalidParameterError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("scigo-wine: invalid parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidParameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidParameterError")
}

// NewInvalidParameterError は新しいInvalidParameterErrorを作成し、スタックトレースを付与します。
func NewInvalidParameterError(param, reason string, value interface{}) error {
	return errors.WithStack(&InvalidParameterError{ParamName: param, Reason: reason, Value: value})
}

// ShapeMismatchError は入力データの形状が一致しない場合のエラーです。
type ShapeMismatchError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *ShapeMismatchError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("scigo-wine: %s: shape mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError は新しいShapeMismatchErrorを作成し、スタックトレースを付与します。
func NewShapeMismatchError(op string, expected, got, axis int) error {
	return errors.WithStack(&ShapeMismatchError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// NotFittedError はモデルが未学習の状態で `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("scigo-wine: %s: this model is not fitted yet. Call Train() before using %s()", e.ModelName, e.Method)
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("scigo-wine: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
