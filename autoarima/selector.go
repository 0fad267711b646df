package autoarima

import (
	"fmt"
	"math"

	"github.com/sartorproj/arimastream/arima"
)

// Selector keeps the best model seen so far under one information criterion.
type Selector struct {
	criterion arima.Criterion
	best      *arima.Trained
	bestValue float64
	successes int
	failures  int
	lastOrder arima.Order
	lastErr   error
}

// NewSelector creates a selector ranking models by c.
func NewSelector(c arima.Criterion) *Selector {
	return &Selector{criterion: c}
}

// Add offers a fitted model. It becomes the best when there is none yet or
// its criterion is strictly lower. A model without a finite criterion value
// counts as a failure. Reports whether the model became the best.
func (s *Selector) Add(m *arima.Trained) bool {
	v, ok := m.Criterion(s.criterion)
	if !ok {
		s.Fail(m.Order, fmt.Errorf("criterion %s unavailable", s.criterion))
		return false
	}
	s.successes++
	if s.best == nil || v < s.bestValue {
		s.best = m
		s.bestValue = v
		return true
	}
	return false
}

// Fail records a candidate that produced no model. The most recent error is
// kept for reporting when no candidate succeeds.
func (s *Selector) Fail(o arima.Order, err error) {
	s.failures++
	s.lastOrder, s.lastErr = o, err
}

// Best returns the best model and its criterion value; ok is false if none.
func (s *Selector) Best() (m *arima.Trained, value float64, ok bool) {
	return s.best, s.bestValue, s.best != nil
}

// BestValue returns the criterion value of the best model, +Inf if none.
func (s *Selector) BestValue() float64 {
	if s.best == nil {
		return math.Inf(1)
	}
	return s.bestValue
}

// LastFailure returns the most recent failed order and its error.
func (s *Selector) LastFailure() (arima.Order, error) {
	return s.lastOrder, s.lastErr
}

// Criterion returns the criterion candidates are ranked by.
func (s *Selector) Criterion() arima.Criterion { return s.criterion }

// Successes returns how many candidates were ranked.
func (s *Selector) Successes() int { return s.successes }

// Failures returns how many candidates failed, including those without a
// finite criterion value.
func (s *Selector) Failures() int { return s.failures }
