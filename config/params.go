// Package config holds the fixed training configuration and the
// environment-driven settings of a training run.
package config

import (
	"sort"
)

const (
	// NumBoostRound is the number of boosting rounds of a training run.
	NumBoostRound = 10
	// ExperimentName is the name given to every tracked run.
	ExperimentName = "lightGBM-on-wine"
	// TestSize is the fraction of samples held out for evaluation.
	TestSize = 0.25
)

// Params is an immutable hyperparameter mapping. The zero value is empty.
type Params struct {
	m map[string]any
}

// Default returns the hyperparameters of the wine training run.
func Default() Params {
	return Params{m: map[string]any{
		"boosting_type":    "gbdt",
		"objective":        "multiclass",
		"num_class":        3,
		"num_leaves":       8,
		"learning_rate":    0.01,
		"feature_fraction": 0.9,
	}}
}

// Get returns the raw value stored under key.
func (p Params) Get(key string) (any, bool) {
	v, ok := p.m[key]
	return v, ok
}

// Int returns the value under key as an int, or 0 when absent or not integral.
func (p Params) Int(key string) int {
	switch v := p.m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}

// Float returns the value under key as a float64, or 0 when absent.
func (p Params) Float(key string) float64 {
	switch v := p.m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// String returns the value under key as a string, or "" when absent.
func (p Params) String(key string) string {
	s, _ := p.m[key].(string)
	return s
}

// Map returns a copy of the mapping, safe to hand to other components.
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.m)
}

// FromMap returns Params holding a copy of m.
func FromMap(m map[string]any) Params {
	return Params{m: Params{m: m}.Map()}
}
