// Package scoring turns the counters accumulated during a session into the
// five-metric performance vector and the weighted overall score.
package scoring

import (
	"fmt"
	"math"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// Weights for the overall score. They must sum to 1.
type Weights struct {
	CommandAccuracy    float64
	ResponseTime       float64
	ResourceManagement float64
	CompletionTime     float64
	ErrorAvoidance     float64
}

// DefaultWeights is the stock weighting.
func DefaultWeights() Weights {
	return Weights{
		CommandAccuracy:    0.30,
		ResponseTime:       0.20,
		ResourceManagement: 0.25,
		CompletionTime:     0.15,
		ErrorAvoidance:     0.10,
	}
}

// Aggregator computes performance vectors. Stateless and shared.
type Aggregator struct {
	w Weights
}

// NewAggregator validates the weights and builds an aggregator.
func NewAggregator(w Weights) (*Aggregator, error) {
	sum := w.CommandAccuracy + w.ResponseTime + w.ResourceManagement + w.CompletionTime + w.ErrorAvoidance
	if math.Abs(sum-1) > 1e-6 {
		return nil, fmt.Errorf("scoring weights must sum to 1, got %.6f", sum)
	}
	return &Aggregator{w: w}, nil
}

// Score computes the vector from the session's accumulated signals. Called
// exactly once, at session completion.
func (a *Aggregator) Score(sess *domain.Session) domain.PerformanceVector {
	v := domain.PerformanceVector{
		CommandAccuracy:    a.commandAccuracy(sess),
		ResponseTime:       a.responseTime(sess),
		ResourceManagement: a.resourceManagement(sess),
		CompletionTime:     a.completionTime(sess),
		ErrorAvoidance:     a.errorAvoidance(sess),
	}
	v.Overall = a.w.CommandAccuracy*v.CommandAccuracy +
		a.w.ResponseTime*v.ResponseTime +
		a.w.ResourceManagement*v.ResourceManagement +
		a.w.CompletionTime*v.CompletionTime +
		a.w.ErrorAvoidance*v.ErrorAvoidance
	return v
}

func (a *Aggregator) commandAccuracy(sess *domain.Session) float64 {
	total := sess.CommandsAccepted + sess.CommandsRejected + sess.CommandsFailed
	if total == 0 {
		return 100
	}
	return 100 * float64(sess.CommandsAccepted) / float64(total)
}

// responseTime compares the mean completed-step duration against the
// scenario's per-step allowance (estimated duration spread over its steps).
func (a *Aggregator) responseTime(sess *domain.Session) float64 {
	steps := len(sess.Scenario.Steps)
	if steps == 0 || len(sess.StepDurationsSec) == 0 || sess.Scenario.EstimatedDurationSec <= 0 {
		return 100
	}
	var total float64
	for _, d := range sess.StepDurationsSec {
		total += d
	}
	mean := total / float64(len(sess.StepDurationsSec))
	expected := sess.Scenario.EstimatedDurationSec / float64(steps)
	return 100 * clamp01(1-mean/expected)
}

// resourceManagement averages battery margin, fuel remaining, and a thermal
// penalty.
func (a *Aggregator) resourceManagement(sess *domain.Session) float64 {
	soc := clamp(sess.MinSocPct, 0, 100)
	fuel := clamp(sess.Satellite.Subsystems.Propulsion.FuelPct, 0, 100)
	thermal := clamp(100-20*float64(sess.ThermalExcursions), 0, 100)
	return (soc + fuel + thermal) / 3
}

func (a *Aggregator) completionTime(sess *domain.Session) float64 {
	est := sess.Scenario.EstimatedDurationSec
	if est <= 0 {
		return 100
	}
	return 100 * clamp01(1-sess.ElapsedSimSec/(1.5*est))
}

func (a *Aggregator) errorAvoidance(sess *domain.Session) float64 {
	errs := sess.CommandsRejected + sess.CommandsFailed + sess.CriticalCrossings
	return 100 - math.Min(100, 10*float64(errs))
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
