package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

func validScenario() domain.Scenario {
	return domain.Scenario{
		Code:                 "TEST_RUN_1",
		Title:                "Test Run",
		Type:                 domain.ScenarioGuided,
		EstimatedDurationSec: 300,
		Steps: []domain.Step{
			{Ordinal: 1, Title: "ping", Validation: domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdPing}},
			{Ordinal: 2, Title: "wait", Validation: domain.ValidationRule{Type: domain.RuleTimeBased, DwellSec: 10}},
		},
	}
}

func TestSeedsAreValid(t *testing.T) {
	for _, sc := range Seeds() {
		sc := sc
		require.NoError(t, Validate(&sc), sc.Code)
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	sc := validScenario()
	assert.NoError(t, Validate(&sc))
}

func TestCodeMustBeUppercase(t *testing.T) {
	sc := validScenario()
	sc.Code = "lowercase_code"
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)

	sc.Code = ""
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)
}

func TestOrdinalsMustBeGapless(t *testing.T) {
	sc := validScenario()
	sc.Steps[1].Ordinal = 3
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)

	sc = validScenario()
	sc.Steps[0].Ordinal = 0
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)
}

func TestMixedValidationShapesRejected(t *testing.T) {
	sc := validScenario()
	// A command rule that also carries a dwell is ambiguous.
	sc.Steps[0].Validation.DwellSec = 15
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)

	sc = validScenario()
	sc.Steps[0].Validation.Predicate = &domain.TelemetryPredicate{Field: "power.soc_pct", Op: "gt", Value: 50}
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)
}

func TestUnknownCommandInRule(t *testing.T) {
	sc := validScenario()
	sc.Steps[0].Validation.Command = "WARP_DRIVE"
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)
}

func TestPredicateRuleValidation(t *testing.T) {
	sc := validScenario()
	sc.Steps[1].Validation = domain.ValidationRule{
		Type:      domain.RuleTelemetryPredicate,
		DwellSec:  10,
		Predicate: &domain.TelemetryPredicate{Field: "power.soc_pct", Op: "between", Value: 50},
	}
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)

	sc.Steps[1].Validation.Predicate.Op = "gte"
	assert.NoError(t, Validate(&sc))

	sc.Steps[1].Validation.DwellSec = 0
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)
}

func TestGuidedNeedsSteps(t *testing.T) {
	sc := validScenario()
	sc.Steps = nil
	require.ErrorIs(t, Validate(&sc), domain.ErrInvalidScenario)

	sc.Type = domain.ScenarioSandbox
	assert.NoError(t, Validate(&sc))
}
