package scenario

import (
	"time"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// Seeds returns the built-in scenarios shipped with the platform. The seeder
// command loads them into the scenario store; integration tests run against
// them directly.
func Seeds() []domain.Scenario {
	now := time.Now().UTC()
	dv150 := 150.0

	return []domain.Scenario{
		{
			Code:                 "ROOKIE_COMMISSIONING_101",
			Title:                "Rookie Commissioning",
			Difficulty:           "beginner",
			Type:                 domain.ScenarioGuided,
			EstimatedDurationSec: 120,
			Objectives: []string{
				"Observe the spacecraft through its first minutes on orbit",
				"Establish contact with a ping",
			},
			Tags: []string{"training", "commissioning"},
			Steps: []domain.Step{
				{
					Ordinal:             1,
					Title:               "Monitor initial telemetry",
					Instructions:        "Watch the telemetry stream for 30 seconds of mission time.",
					Validation:          domain.ValidationRule{Type: domain.RuleTimeBased, DwellSec: 30},
					ExpectedDurationSec: 40,
					Hint:                "Let the simulation run; no commands are needed yet.",
				},
				{
					Ordinal:             2,
					Title:               "Establish contact",
					Instructions:        "Send a PING to confirm the command link.",
					Validation:          domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdPing, MustSucceed: true},
					ExpectedDurationSec: 30,
					Hint:                "Use the PING command from the console.",
				},
			},
			Published: true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			Code:                 "DEMO_COMPLETE_HUD",
			Title:                "Full Console Walkthrough",
			Difficulty:           "intermediate",
			Type:                 domain.ScenarioGuided,
			EstimatedDurationSec: 900,
			InitialState: &domain.InitialOverrides{
				DeltaVBudgetMS: &dv150,
			},
			Objectives: []string{
				"Exercise every console panel",
				"Raise the operating orbit and schedule a downlink",
			},
			Tags: []string{"demo", "hud"},
			Steps: []domain.Step{
				{
					Ordinal:             1,
					Title:               "Run a health check",
					Instructions:        "Request a full system health check.",
					Validation:          domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdSystemHealthCheck, MustSucceed: true},
					ExpectedDurationSec: 60,
				},
				{
					Ordinal:             2,
					Title:               "Deploy the high-gain antenna",
					Instructions:        "Deploy the antenna to enable downlinks.",
					Validation:          domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdDeployAntenna, MustSucceed: true},
					ExpectedDurationSec: 60,
				},
				{
					Ordinal:             3,
					Title:               "Raise the operating orbit",
					Instructions:        "Adjust altitude to 415 km.",
					Validation:          domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdAdjustAltitude, MustSucceed: true},
					Checkpoint:          true,
					ExpectedDurationSec: 120,
					Hint:                "Mind the delta-v budget before committing the burn.",
				},
				{
					Ordinal:             4,
					Title:               "Point at the ground target",
					Instructions:        "Slew to the commanded target attitude.",
					Validation:          domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdPointToTarget, MustSucceed: true},
					ExpectedDurationSec: 90,
				},
				{
					Ordinal:      5,
					Title:        "Hold fine pointing",
					Instructions: "Keep pointing error under one degree for 20 seconds.",
					Validation: domain.ValidationRule{
						Type:     domain.RuleTelemetryPredicate,
						DwellSec: 20,
						Predicate: &domain.TelemetryPredicate{
							Field: "attitude.pointing_error_deg",
							Op:    "lt",
							Value: 1,
						},
					},
					ExpectedDurationSec: 120,
				},
				{
					Ordinal:             6,
					Title:               "Schedule the downlink",
					Instructions:        "Queue a downlink for the captured data.",
					Validation:          domain.ValidationRule{Type: domain.RuleCommandExecuted, Command: domain.CmdScheduleDownlink, MustSucceed: true},
					ExpectedDurationSec: 90,
				},
			},
			Published: true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
