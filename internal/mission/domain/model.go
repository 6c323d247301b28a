// Package domain holds the mission-control entities shared by the session
// engine, repositories and transport.
package domain

import (
	"time"

	"github.com/orbitalops/satops-backend/internal/sim/orbit"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

// Session status constants. Terminal states are sticky.
const (
	StatusCreated              = "created"
	StatusBriefingAcknowledged = "briefing_acknowledged"
	StatusInProgress           = "in_progress"
	StatusCompleted            = "completed"
	StatusFailed               = "failed"
	StatusAbandoned            = "abandoned"
)

// Failure cause codes for failed sessions.
const (
	CauseReentry         = "reentry"
	CauseDivergence      = "propagator_divergence"
	CauseFatalSubsystem  = "fatal_subsystem"
	CauseTimeout         = "timeout"
	CauseOperatorAbort   = "operator_abort"
	CauseAdminTerminated = "admin_terminate"
)

// Scenario types.
const (
	ScenarioGuided  = "guided"
	ScenarioSandbox = "sandbox"
)

// Step validation rule types.
const (
	RuleCommandExecuted    = "command_executed"
	RuleTimeBased          = "time_based"
	RuleTelemetryPredicate = "telemetry_predicate"
)

// Scenario is a training scenario definition. Sessions embed a copy at
// creation so later edits never mutate an in-flight run.
type Scenario struct {
	Code                 string            `json:"code"`
	Title                string            `json:"title"`
	Difficulty           string            `json:"difficulty"`
	Type                 string            `json:"type"`
	EstimatedDurationSec float64           `json:"estimated_duration_sec"`
	InitialState         *InitialOverrides `json:"initial_state,omitempty"`
	Steps                []Step            `json:"steps"`
	Tags                 []string          `json:"tags,omitempty"`
	Objectives           []string          `json:"objectives,omitempty"`
	Published            bool              `json:"published"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// InitialOverrides customises the satellite starting state per scenario.
type InitialOverrides struct {
	AltitudeKm     *float64                   `json:"altitude_km,omitempty"`
	InclinationDeg *float64                   `json:"inclination_deg,omitempty"`
	SocPct         *float64                   `json:"soc_pct,omitempty"`
	FuelPct        *float64                   `json:"fuel_pct,omitempty"`
	DeltaVBudgetMS *float64                   `json:"delta_v_budget_ms,omitempty"`
	Stations       []subsystems.GroundStation `json:"stations,omitempty"`
}

// Step is one ordered objective within a scenario. Ordinals are 1-based and
// gapless.
type Step struct {
	Ordinal             int            `json:"ordinal"`
	Title               string         `json:"title"`
	Instructions        string         `json:"instructions"`
	Validation          ValidationRule `json:"validation"`
	Checkpoint          bool           `json:"checkpoint"`
	ExpectedDurationSec float64        `json:"expected_duration_sec"`
	Hint                string         `json:"hint,omitempty"`
}

// ValidationRule is the tagged completion condition for a step. Type is the
// discriminator; exactly the fields for that type may be set.
type ValidationRule struct {
	Type string `json:"type"`

	// command_executed
	Command     string `json:"command,omitempty"`
	MustSucceed bool   `json:"must_succeed,omitempty"`

	// time_based and telemetry_predicate
	DwellSec float64 `json:"dwell_sec,omitempty"`

	// telemetry_predicate
	Predicate *TelemetryPredicate `json:"predicate,omitempty"`
}

// TelemetryPredicate compares a telemetry field against a threshold.
type TelemetryPredicate struct {
	Field string  `json:"field"`
	Op    string  `json:"op"` // lt|lte|gt|gte|eq
	Value float64 `json:"value"`
}

// SatelliteSnapshot embeds the full simulated satellite into a session.
type SatelliteSnapshot struct {
	Elements   orbit.Elements   `json:"elements"`
	Subsystems subsystems.State `json:"subsystems"`
}

// PerformanceVector is the five-metric score computed at completion.
type PerformanceVector struct {
	CommandAccuracy    float64 `json:"command_accuracy"`
	ResponseTime       float64 `json:"response_time"`
	ResourceManagement float64 `json:"resource_management"`
	CompletionTime     float64 `json:"completion_time"`
	ErrorAvoidance     float64 `json:"error_avoidance"`
	Overall            float64 `json:"overall"`
}

// Session is one training run. It exclusively owns its mutable state; the
// progression engine is the only writer once the run is in progress.
// Version increments on every mutation and backs optimistic concurrency.
type Session struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	CallSign string `json:"call_sign"`

	Scenario  Scenario          `json:"scenario"`
	Satellite SatelliteSnapshot `json:"satellite"`

	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`

	CurrentStep       int     `json:"current_step"`
	CompletedSteps    []int   `json:"completed_steps"`
	StepStartedSimSec float64 `json:"step_started_sim_sec"`
	PredicateHoldSec  float64 `json:"predicate_hold_sec"`

	ElapsedSimSec      float64 `json:"elapsed_sim_sec"`
	LastProgressSimSec float64 `json:"last_progress_sim_sec"`
	LastSeq            uint64  `json:"last_seq"`

	HintsUsed         int       `json:"hints_used"`
	CommandsAccepted  int       `json:"commands_accepted"`
	CommandsRejected  int       `json:"commands_rejected"`
	CommandsFailed    int       `json:"commands_failed"`
	CriticalCrossings int       `json:"critical_crossings"`
	ThermalExcursions int       `json:"thermal_excursions"`
	MinSocPct         float64   `json:"min_soc_pct"`
	StepDurationsSec  []float64 `json:"step_durations_sec"`

	Performance *PerformanceVector `json:"performance,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Version int64 `json:"version"`
}

// Terminal reports whether the session has reached a sticky final state.
func (s *Session) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// CurrentStepDef returns the definition of the current step, or nil when the
// pointer is past the last ordinal.
func (s *Session) CurrentStepDef() *Step {
	for i := range s.Scenario.Steps {
		if s.Scenario.Steps[i].Ordinal == s.CurrentStep {
			return &s.Scenario.Steps[i]
		}
	}
	return nil
}

// PerformanceSummary is the leaderboard read model persisted on completion.
type PerformanceSummary struct {
	SessionID    string            `json:"session_id"`
	UserID       string            `json:"user_id"`
	ScenarioCode string            `json:"scenario_code"`
	Status       string            `json:"status"`
	Performance  PerformanceVector `json:"performance"`
	SimTimeSec   float64           `json:"sim_time_sec"`
	CompletedAt  time.Time         `json:"completed_at"`
}
