// Package session runs training sessions: a per-session engine advances the
// simulation and evaluates progression, a runner task owns the engine and
// serializes its inputs, and a manager tracks the live runners.
package session

import (
	"time"

	"github.com/orbitalops/satops-backend/internal/mission/command"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/progress"
	"github.com/orbitalops/satops-backend/internal/mission/scoring"
	"github.com/orbitalops/satops-backend/internal/sim/orbit"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
	"github.com/orbitalops/satops-backend/internal/sim/telemetry"
)

// Config tunes the per-session engine.
type Config struct {
	TelemetrySimIntervalSec  float64
	TelemetryWallMinInterval time.Duration
	SocZeroGraceSec          float64
	// ProgressGraceSec is how long past the timeout limit a session may go
	// without completing a step before it fails with cause timeout.
	ProgressGraceSec float64
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{
		TelemetrySimIntervalSec:  1,
		TelemetryWallMinInterval: 100 * time.Millisecond,
		SocZeroGraceSec:          60,
		ProgressGraceSec:         60,
	}
}

// Output is what one engine step produced. The runner persists and broadcasts
// it; the engine itself never touches storage.
type Output struct {
	Events     []domain.Event
	Frame      *telemetry.Frame
	Record     *domain.CommandRecord // set when a command was processed
	NewRecord  bool                  // false for idempotent replays
	Checkpoint bool                  // a checkpoint step completed
	Terminal   bool                  // the session just reached a terminal state
	Dirty      bool                  // the session document changed
}

// Engine advances one session. It is single-writer by construction: only the
// owning runner task calls into it, so it carries no locks.
type Engine struct {
	sess      *domain.Session
	models    *subsystems.Models
	executor  *command.Executor
	progress  *progress.Engine
	assembler *telemetry.Assembler
	scorer    *scoring.Aggregator
	illum     subsystems.IlluminationFunc
	stations  []subsystems.GroundStation
	cfg       Config
}

// NewEngine builds the engine around an existing session document. Resuming
// a persisted session restores the telemetry sequence so frame numbering
// stays strictly increasing.
func NewEngine(sess *domain.Session, models *subsystems.Models, scorer *scoring.Aggregator, cfg Config) *Engine {
	stations := subsystems.DefaultStations()
	if sess.Scenario.InitialState != nil && len(sess.Scenario.InitialState.Stations) > 0 {
		stations = sess.Scenario.InitialState.Stations
	}

	asm := telemetry.NewAssembler(cfg.TelemetrySimIntervalSec, cfg.TelemetryWallMinInterval)
	if sess.LastSeq > 0 {
		asm.Restore(sess.LastSeq, sess.ElapsedSimSec)
	}

	return &Engine{
		sess:      sess,
		models:    models,
		executor:  command.NewExecutor(models),
		progress:  progress.NewEngine(),
		assembler: asm,
		scorer:    scorer,
		illum:     subsystems.Illuminated,
		stations:  stations,
		cfg:       cfg,
	}
}

// SetIllumination overrides the eclipse predicate. Test hook.
func (e *Engine) SetIllumination(fn subsystems.IlluminationFunc) { e.illum = fn }

// Session exposes the engine's session document.
func (e *Engine) Session() *domain.Session { return e.sess }

// HandleTick advances the simulation by simDt seconds of sim time.
func (e *Engine) HandleTick(simDt float64, now time.Time) Output {
	sess := e.sess
	if sess.Terminal() || sess.Status != domain.StatusInProgress {
		return Output{}
	}

	var out Output
	out.Dirty = simDt > 0
	sess.ElapsedSimSec += simDt

	el, st, err := orbit.Propagate(sess.Satellite.Elements, simDt, sess.ElapsedSimSec)
	if err != nil {
		e.fail(&out, domain.CauseDivergence, now)
		return out
	}
	sess.Satellite.Elements = el

	illuminated := e.illum(el)
	env := subsystems.Environment{
		Illuminated: illuminated,
		SatECEF:     st.ECEF,
		Stations:    e.stations,
	}

	alerts := e.models.Tick(&sess.Satellite.Subsystems, simDt, env)
	for _, alert := range alerts {
		if alert.Severity == subsystems.SeverityCritical {
			sess.CriticalCrossings++
		}
		if alert.Code == "thermal_excursion" {
			sess.ThermalExcursions++
		}
		out.Events = append(out.Events, domain.Event{
			Type: domain.EventAlertRaised, Data: alert, Guaranteed: true,
		})
	}
	if soc := sess.Satellite.Subsystems.Power.SocPct; soc < sess.MinSocPct {
		sess.MinSocPct = soc
	}

	if cause := e.failureCause(); cause != "" {
		e.fail(&out, cause, now)
		return out
	}

	if e.assembler.Due(sess.ElapsedSimSec, now) {
		frame := e.emitFrame(&out, st, illuminated, now)
		e.applyProgress(&out, e.progress.OnFrame(sess, frame, simDt), now)
	}
	return out
}

// HandleCommand runs one command through the executor and feeds the result to
// the progression engine.
func (e *Engine) HandleCommand(req domain.CommandRequest, now time.Time) Output {
	sess := e.sess
	var out Output
	out.Dirty = true

	res := e.executor.Execute(sess, req, now)
	out.Record = &res.Record
	out.NewRecord = !res.Duplicate
	out.Events = append(out.Events, domain.Event{
		Type: domain.EventCommandResult,
		Data: domain.CommandResultData{
			ClientID:   res.Record.ClientID,
			Status:     res.Record.Status,
			Message:    res.Record.Message,
			Effects:    res.Record.Effects,
			SimTimeSec: res.Record.SimTimeSec,
		},
		Guaranteed: true,
	})
	if res.Duplicate {
		out.Dirty = false
		return out
	}

	if res.EmitTelemetry {
		st := orbit.StateAt(sess.Satellite.Elements, sess.ElapsedSimSec)
		e.emitFrame(&out, st, e.illum(sess.Satellite.Elements), now)
	}

	if res.FailureCause != "" {
		e.fail(&out, res.FailureCause, now)
		return out
	}

	e.applyProgress(&out, e.progress.OnCommand(sess, &res.Record), now)
	return out
}

// Finish moves the session to a terminal state on an explicit control event.
func (e *Engine) Finish(status, cause string, now time.Time) Output {
	var out Output
	if e.sess.Terminal() {
		return out
	}
	out.Dirty = true
	if status == domain.StatusFailed {
		e.fail(&out, cause, now)
		return out
	}

	e.sess.Status = status
	e.sess.Cause = cause
	ended := now
	e.sess.EndedAt = &ended
	out.Terminal = true
	out.Events = append(out.Events, domain.Event{
		Type:       domain.EventSessionStateChanged,
		Data:       domain.SessionStateChangedData{Status: status, Cause: cause},
		Guaranteed: true,
	})
	return out
}

// RecordHint bumps the hint counter feeding the score.
func (e *Engine) RecordHint() { e.sess.HintsUsed++ }

func (e *Engine) applyProgress(out *Output, adv progress.Outcome, now time.Time) {
	if !adv.Advanced {
		return
	}
	sess := e.sess
	out.Checkpoint = out.Checkpoint || adv.Checkpoint
	out.Events = append(out.Events, domain.Event{
		Type: domain.EventStepChanged,
		Data: domain.StepChangedData{
			CurrentStep:    sess.CurrentStep,
			CompletedSteps: sess.CompletedSteps,
			Checkpoint:     adv.Checkpoint,
		},
		Guaranteed: true,
	})

	if adv.Completed {
		perf := e.scorer.Score(sess)
		sess.Performance = &perf
		sess.Status = domain.StatusCompleted
		ended := now
		sess.EndedAt = &ended
		out.Terminal = true
		out.Events = append(out.Events, domain.Event{
			Type:       domain.EventSessionStateChanged,
			Data:       domain.SessionStateChangedData{Status: domain.StatusCompleted},
			Guaranteed: true,
		})
	}
}

// failureCause checks the continuous failure conditions.
func (e *Engine) failureCause() string {
	sess := e.sess

	if sess.Satellite.Elements.PerigeeAltKm() < orbit.MinPerigeeAltKm {
		return domain.CauseReentry
	}
	if sess.Satellite.Subsystems.Power.ZeroSocSec > e.cfg.SocZeroGraceSec {
		return domain.CauseFatalSubsystem
	}

	est := sess.Scenario.EstimatedDurationSec
	if est > 0 && sess.ElapsedSimSec > 1.5*est &&
		sess.ElapsedSimSec-sess.LastProgressSimSec > e.cfg.ProgressGraceSec {
		return domain.CauseTimeout
	}
	return ""
}

// fail transitions to failed and emits a final frame so the client sees the
// state that caused the failure.
func (e *Engine) fail(out *Output, cause string, now time.Time) {
	sess := e.sess
	sess.Status = domain.StatusFailed
	sess.Cause = cause
	ended := now
	sess.EndedAt = &ended
	out.Dirty = true
	out.Terminal = true

	st := orbit.StateAt(sess.Satellite.Elements, sess.ElapsedSimSec)
	e.emitFrame(out, st, e.illum(sess.Satellite.Elements), now)

	out.Events = append(out.Events, domain.Event{
		Type:       domain.EventSessionStateChanged,
		Data:       domain.SessionStateChangedData{Status: domain.StatusFailed, Cause: cause},
		Guaranteed: true,
	})
}

func (e *Engine) emitFrame(out *Output, st orbit.State, illuminated bool, now time.Time) *telemetry.Frame {
	sess := e.sess
	frame := e.assembler.Assemble(sess.Satellite.Elements, st, sess.Satellite.Subsystems, illuminated, sess.ElapsedSimSec, now)
	sess.LastSeq = frame.Seq
	out.Frame = &frame
	out.Events = append(out.Events, domain.Event{
		Type: domain.EventTelemetryFrame,
		Data: frame,
	})
	return &frame
}
