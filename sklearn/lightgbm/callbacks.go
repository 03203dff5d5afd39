package lightgbm

import (
	"math"

	scierrors "github.com/YuminosukeSato/scigo-wine/pkg/errors"
	"github.com/YuminosukeSato/scigo-wine/pkg/log"
)

// EvalResult is one metric value computed on one evaluation dataset.
type EvalResult struct {
	DatasetName  string
	MetricName   string
	Value        float64
	HigherBetter bool
	// Training is set when the dataset is the training set itself.
	Training bool
}

// Observer receives every per-round evaluation result. The round is
// 1-based and the metric name is "<dataset>_<metric>", e.g.
// "valid_0_multi_logloss".
type Observer interface {
	Observe(round int, metric string, value float64)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(round int, metric string, value float64)

// Observe implements Observer.
func (f ObserverFunc) Observe(round int, metric string, value float64) {
	f(round, metric, value)
}

// CallbackEnv contains the environment for callbacks
type CallbackEnv struct {
	Booster        *Booster
	Iteration      int // 0-based
	BeginIteration int
	EndIteration   int
	EvalResults    []EvalResult
	StopTraining   bool
}

// Callback is a function that can be called after each boosting round.
// A non-nil error aborts training.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs the evaluation results every period rounds.
func LogEvaluation(logger log.Logger, period int) Callback {
	return func(env *CallbackEnv) error {
		if period <= 0 || len(env.EvalResults) == 0 {
			return nil
		}
		round := env.Iteration + 1
		if round%period != 0 && round != env.EndIteration {
			return nil
		}
		fields := []any{log.IterationKey, round}
		for _, r := range env.EvalResults {
			fields = append(fields, r.DatasetName+"_"+r.MetricName, r.Value)
		}
		logger.Info("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation records evaluation history into history, keyed by
// dataset name and metric name.
func RecordEvaluation(history map[string]map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if history == nil {
			return scierrors.NewValueError("RecordEvaluation", "history map is nil")
		}
		for _, r := range env.EvalResults {
			if history[r.DatasetName] == nil {
				history[r.DatasetName] = make(map[string][]float64)
			}
			history[r.DatasetName][r.MetricName] = append(history[r.DatasetName][r.MetricName], r.Value)
		}
		return nil
	}
}

// EarlyStopping stops training when some validation metric has not
// improved for the given number of rounds. The best round is stored on the
// booster. Results on the training set itself are ignored.
func EarlyStopping(rounds int) Callback {
	type state struct {
		best     float64
		bestIter int
	}
	states := make(map[string]*state)

	return func(env *CallbackEnv) error {
		if rounds <= 0 {
			return scierrors.NewInvalidParameterError("early_stopping_rounds", "must be positive", rounds)
		}
		for _, r := range env.EvalResults {
			if r.Training {
				continue
			}
			key := r.DatasetName + "_" + r.MetricName
			s, ok := states[key]
			if !ok {
				s = &state{best: math.Inf(1)}
				if r.HigherBetter {
					s.best = math.Inf(-1)
				}
				states[key] = s
			}

			improved := r.Value < s.best
			if r.HigherBetter {
				improved = r.Value > s.best
			}
			if improved {
				s.best = r.Value
				s.bestIter = env.Iteration
			}
			if env.Iteration-s.bestIter >= rounds {
				env.Booster.bestIteration = s.bestIter + 1
				env.StopTraining = true
				return nil
			}
		}
		return nil
	}
}

// CallbackList manages multiple callbacks
type CallbackList struct {
	callbacks []Callback
}

// NewCallbackList creates a new callback list
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{callbacks: callbacks}
}

// AfterIteration runs every callback for the finished iteration and reports
// whether training should stop.
func (cl *CallbackList) AfterIteration(iteration, numRounds int, booster *Booster, results []EvalResult) (bool, error) {
	env := &CallbackEnv{
		Booster:        booster,
		Iteration:      iteration,
		BeginIteration: 0,
		EndIteration:   numRounds,
		EvalResults:    results,
	}
	for _, cb := range cl.callbacks {
		if err := cb(env); err != nil {
			return false, err
		}
	}
	return env.StopTraining, nil
}
