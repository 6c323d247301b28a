// Package progress advances guided scenarios: it evaluates the current
// step's validation rule against command results and telemetry frames and
// moves the step pointer.
package progress

import (
	"math"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/sim/telemetry"
)

// Outcome describes what one evaluation did to the session.
type Outcome struct {
	Advanced   bool
	From       int
	To         int
	Completed  bool
	Checkpoint bool // the step just completed wants a recovery snapshot
}

// Engine evaluates step validation rules. It is stateless; all progression
// state lives on the session.
type Engine struct{}

// NewEngine returns a progression engine.
func NewEngine() *Engine { return &Engine{} }

// OnCommand evaluates command_executed rules after a command record is final.
// Duplicate replays must not be passed in.
func (e *Engine) OnCommand(sess *domain.Session, rec *domain.CommandRecord) Outcome {
	step := sess.CurrentStepDef()
	if sess.Status != domain.StatusInProgress || step == nil {
		return Outcome{}
	}
	rule := step.Validation
	if rule.Type != domain.RuleCommandExecuted || rule.Command != rec.Name {
		return Outcome{}
	}
	if rule.MustSucceed && rec.Status != domain.CommandAccepted {
		return Outcome{}
	}
	return e.advance(sess, step)
}

// OnFrame evaluates time_based and telemetry_predicate rules against the
// latest frame. simDt is the simulated seconds covered by this frame; dwell
// accumulates in simulation time so time-scale changes behave consistently.
func (e *Engine) OnFrame(sess *domain.Session, frame *telemetry.Frame, simDt float64) Outcome {
	step := sess.CurrentStepDef()
	if sess.Status != domain.StatusInProgress || step == nil {
		return Outcome{}
	}

	rule := step.Validation
	switch rule.Type {
	case domain.RuleTimeBased:
		if sess.ElapsedSimSec-sess.StepStartedSimSec >= rule.DwellSec {
			return e.advance(sess, step)
		}

	case domain.RuleTelemetryPredicate:
		if holds(rule.Predicate, frame) {
			sess.PredicateHoldSec += simDt
			if sess.PredicateHoldSec >= rule.DwellSec {
				return e.advance(sess, step)
			}
		} else {
			// Any violation restarts the dwell from zero.
			sess.PredicateHoldSec = 0
		}
	}
	return Outcome{}
}

func (e *Engine) advance(sess *domain.Session, step *domain.Step) Outcome {
	out := Outcome{
		Advanced:   true,
		From:       step.Ordinal,
		To:         step.Ordinal + 1,
		Checkpoint: step.Checkpoint,
	}

	sess.CompletedSteps = append(sess.CompletedSteps, step.Ordinal)
	sess.StepDurationsSec = append(sess.StepDurationsSec, sess.ElapsedSimSec-sess.StepStartedSimSec)
	sess.CurrentStep = step.Ordinal + 1
	sess.StepStartedSimSec = sess.ElapsedSimSec
	sess.PredicateHoldSec = 0
	sess.LastProgressSimSec = sess.ElapsedSimSec

	if sess.CurrentStep > len(sess.Scenario.Steps) {
		out.Completed = true
	}
	return out
}

func holds(p *domain.TelemetryPredicate, frame *telemetry.Frame) bool {
	if p == nil || frame == nil {
		return false
	}
	v, ok := frame.Field(p.Field)
	if !ok {
		return false
	}
	switch p.Op {
	case "lt":
		return v < p.Value
	case "lte":
		return v <= p.Value
	case "gt":
		return v > p.Value
	case "gte":
		return v >= p.Value
	case "eq":
		return math.Abs(v-p.Value) < 1e-6
	}
	return false
}
