package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
	"github.com/orbitalops/satops-backend/internal/sim/telemetry"
)

func guidedSession() *domain.Session {
	return &domain.Session{
		ID:          "sess-1",
		Status:      domain.StatusInProgress,
		CurrentStep: 1,
		Scenario: domain.Scenario{
			Code: "TEST",
			Type: domain.ScenarioGuided,
			Steps: []domain.Step{
				{Ordinal: 1, Validation: domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdPing, MustSucceed: true}},
				{Ordinal: 2, Checkpoint: true, Validation: domain.ValidationRule{Type: domain.RuleTimeBased, DwellSec: 30}},
				{Ordinal: 3, Validation: domain.ValidationRule{
					Type:      domain.RuleTelemetryPredicate,
					DwellSec:  10,
					Predicate: &domain.TelemetryPredicate{Field: "power.soc_pct", Op: "gte", Value: 50},
				}},
			},
		},
	}
}

func frameWithSoc(soc float64) *telemetry.Frame {
	f := &telemetry.Frame{}
	f.Subsystems.Power = subsystems.PowerState{SocPct: soc}
	return f
}

func TestCommandRuleAdvances(t *testing.T) {
	sess := guidedSession()
	eng := NewEngine()
	sess.ElapsedSimSec = 12

	out := eng.OnCommand(sess, &domain.CommandRecord{Name: domain.CmdPing, Status: domain.CommandAccepted})
	require.True(t, out.Advanced)
	assert.Equal(t, 1, out.From)
	assert.Equal(t, 2, out.To)
	assert.False(t, out.Completed)
	assert.Equal(t, 2, sess.CurrentStep)
	assert.Equal(t, []int{1}, sess.CompletedSteps)
	assert.Equal(t, 12.0, sess.StepStartedSimSec)
	require.Len(t, sess.StepDurationsSec, 1)
	assert.Equal(t, 12.0, sess.StepDurationsSec[0])
}

func TestMustSucceedIgnoresRejected(t *testing.T) {
	sess := guidedSession()
	eng := NewEngine()

	out := eng.OnCommand(sess, &domain.CommandRecord{Name: domain.CmdPing, Status: domain.CommandRejected})
	assert.False(t, out.Advanced)
	assert.Equal(t, 1, sess.CurrentStep)
}

func TestUnrelatedCommandIgnored(t *testing.T) {
	sess := guidedSession()
	eng := NewEngine()

	out := eng.OnCommand(sess, &domain.CommandRecord{Name: domain.CmdDeployAntenna, Status: domain.CommandAccepted})
	assert.False(t, out.Advanced)
}

func TestTimeBasedDwell(t *testing.T) {
	sess := guidedSession()
	sess.CurrentStep = 2
	sess.StepStartedSimSec = 100
	eng := NewEngine()

	sess.ElapsedSimSec = 120
	out := eng.OnFrame(sess, frameWithSoc(80), 1)
	assert.False(t, out.Advanced)

	sess.ElapsedSimSec = 130
	out = eng.OnFrame(sess, frameWithSoc(80), 1)
	require.True(t, out.Advanced)
	assert.True(t, out.Checkpoint)
	assert.Equal(t, 3, sess.CurrentStep)
}

func TestPredicateDwellResetsOnViolation(t *testing.T) {
	sess := guidedSession()
	sess.CurrentStep = 3
	eng := NewEngine()
	frameOK := frameWithSoc(75)
	frameBad := frameWithSoc(30)

	for i := 0; i < 6; i++ {
		out := eng.OnFrame(sess, frameOK, 1)
		assert.False(t, out.Advanced)
	}
	assert.Equal(t, 6.0, sess.PredicateHoldSec)

	// One violation restarts the dwell.
	eng.OnFrame(sess, frameBad, 1)
	assert.Equal(t, 0.0, sess.PredicateHoldSec)

	var out Outcome
	for i := 0; i < 10; i++ {
		out = eng.OnFrame(sess, frameOK, 1)
	}
	require.True(t, out.Advanced)
	assert.True(t, out.Completed, "last step completion finishes the scenario")
	assert.Equal(t, 4, sess.CurrentStep)
}

func TestTerminalSessionNeverAdvances(t *testing.T) {
	sess := guidedSession()
	sess.Status = domain.StatusFailed
	eng := NewEngine()

	out := eng.OnCommand(sess, &domain.CommandRecord{Name: domain.CmdPing, Status: domain.CommandAccepted})
	assert.False(t, out.Advanced)

	out = eng.OnFrame(sess, frameWithSoc(90), 1)
	assert.False(t, out.Advanced)
}

func TestSandboxHasNoSteps(t *testing.T) {
	sess := &domain.Session{
		Status:      domain.StatusInProgress,
		CurrentStep: 1,
		Scenario:    domain.Scenario{Type: domain.ScenarioSandbox},
	}
	eng := NewEngine()
	out := eng.OnFrame(sess, frameWithSoc(90), 1)
	assert.False(t, out.Advanced)
}
