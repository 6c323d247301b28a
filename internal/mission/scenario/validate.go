// Package scenario validates scenario definitions and provides the built-in
// training scenarios.
package scenario

import (
	"fmt"
	"regexp"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Validate checks a scenario definition against the authoring rules:
// uppercase unique code, gapless 1-based step ordinals, and exactly one
// validation shape per step.
func Validate(sc *domain.Scenario) error {
	if !codePattern.MatchString(sc.Code) {
		return fmt.Errorf("%w: code must be an uppercase identifier", domain.ErrInvalidScenario)
	}
	if sc.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidScenario)
	}
	if sc.Type != domain.ScenarioGuided && sc.Type != domain.ScenarioSandbox {
		return fmt.Errorf("%w: type must be guided or sandbox", domain.ErrInvalidScenario)
	}
	if sc.EstimatedDurationSec <= 0 {
		return fmt.Errorf("%w: estimated duration must be positive", domain.ErrInvalidScenario)
	}
	if sc.Type == domain.ScenarioGuided && len(sc.Steps) == 0 {
		return fmt.Errorf("%w: guided scenarios need at least one step", domain.ErrInvalidScenario)
	}

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Ordinal != i+1 {
			return fmt.Errorf("%w: step ordinals must be gapless starting at 1, got %d at position %d",
				domain.ErrInvalidScenario, step.Ordinal, i+1)
		}
		if err := validateRule(step); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(step *domain.Step) error {
	rule := &step.Validation
	switch rule.Type {
	case domain.RuleCommandExecuted:
		if !domain.KnownCommand(rule.Command) {
			return fmt.Errorf("%w: step %d references unknown command %q",
				domain.ErrInvalidScenario, step.Ordinal, rule.Command)
		}
		// A step may carry exactly one validation shape: a command rule
		// with dwell or predicate fields set is ambiguous and rejected.
		if rule.DwellSec != 0 || rule.Predicate != nil {
			return fmt.Errorf("%w: step %d mixes command_executed with another validation shape",
				domain.ErrInvalidScenario, step.Ordinal)
		}

	case domain.RuleTimeBased:
		if rule.DwellSec <= 0 {
			return fmt.Errorf("%w: step %d time_based rule needs a positive dwell",
				domain.ErrInvalidScenario, step.Ordinal)
		}
		if rule.Command != "" || rule.Predicate != nil {
			return fmt.Errorf("%w: step %d mixes time_based with another validation shape",
				domain.ErrInvalidScenario, step.Ordinal)
		}

	case domain.RuleTelemetryPredicate:
		if rule.Predicate == nil {
			return fmt.Errorf("%w: step %d telemetry_predicate rule needs a predicate",
				domain.ErrInvalidScenario, step.Ordinal)
		}
		if rule.DwellSec <= 0 {
			return fmt.Errorf("%w: step %d telemetry_predicate rule needs a positive dwell",
				domain.ErrInvalidScenario, step.Ordinal)
		}
		if rule.Command != "" {
			return fmt.Errorf("%w: step %d mixes telemetry_predicate with a command shape",
				domain.ErrInvalidScenario, step.Ordinal)
		}
		switch rule.Predicate.Op {
		case "lt", "lte", "gt", "gte", "eq":
		default:
			return fmt.Errorf("%w: step %d predicate op %q not supported",
				domain.ErrInvalidScenario, step.Ordinal, rule.Predicate.Op)
		}
		if rule.Predicate.Field == "" {
			return fmt.Errorf("%w: step %d predicate field is required",
				domain.ErrInvalidScenario, step.Ordinal)
		}

	default:
		return fmt.Errorf("%w: step %d has unknown validation type %q",
			domain.ErrInvalidScenario, step.Ordinal, rule.Type)
	}
	return nil
}
