package integration

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
	"github.com/orbitalops/satops-backend/internal/mission/scenario"
	"github.com/orbitalops/satops-backend/internal/mission/scoring"
	"github.com/orbitalops/satops-backend/internal/mission/service"
	"github.com/orbitalops/satops-backend/internal/mission/session"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

type harness struct {
	svc      *service.MissionService
	manager  *session.Manager
	sessions *repository.SessionRepository
	commands *repository.CommandRepository
	frames   *repository.TelemetryRepository
}

func setup(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	scenarios := repository.NewScenarioRepository(client)
	sessions := repository.NewSessionRepository(client)
	commands := repository.NewCommandRepository(client)
	frames := repository.NewTelemetryRepository(client, 500)

	scorer, err := scoring.NewAggregator(scoring.DefaultWeights())
	require.NoError(t, err)

	engineCfg := session.DefaultConfig()
	engineCfg.TelemetryWallMinInterval = 0
	mgr := session.NewManager(
		session.Stores{Sessions: sessions, Commands: commands, Telemetry: frames},
		nil, scorer, 10*time.Millisecond, engineCfg, subsystems.DefaultConfig(),
	)
	t.Cleanup(mgr.Shutdown)

	svc := service.NewMissionService(scenarios, sessions, commands, frames, nil, mgr, nil)
	for _, sc := range scenario.Seeds() {
		sc := sc
		require.NoError(t, svc.CreateScenario(&sc))
	}

	// A free-flight sandbox for the command-pipeline scenarios.
	require.NoError(t, svc.CreateScenario(&domain.Scenario{
		Code:                 "FREE_FLIGHT",
		Title:                "Free Flight",
		Type:                 domain.ScenarioSandbox,
		EstimatedDurationSec: 3600,
		Published:            true,
	}))

	return &harness{svc: svc, manager: mgr, sessions: sessions, commands: commands, frames: frames}
}

func (h *harness) fly(t *testing.T, user, scenarioCode string) *domain.Session {
	t.Helper()
	sess, err := h.svc.CreateSession(user, scenarioCode, "HAVOC-1")
	require.NoError(t, err)
	_, err = h.svc.AcknowledgeBriefing(sess.ID, user)
	require.NoError(t, err)
	started, err := h.svc.StartSession(sess.ID, user)
	require.NoError(t, err)
	return started
}

func (h *harness) submit(t *testing.T, sessionID, user string, req domain.CommandRequest) *domain.CommandRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := h.svc.SubmitCommand(ctx, sessionID, user, req)
	require.NoError(t, err)
	return rec
}

func (h *harness) waitStep(t *testing.T, sessionID, user string, step int) {
	t.Helper()
	require.Eventually(t, func() bool {
		sess, err := h.svc.GetSession(sessionID, user)
		return err == nil && sess.CurrentStep >= step
	}, 15*time.Second, 10*time.Millisecond)
}

func (h *harness) waitTerminal(t *testing.T, sessionID, user string) *domain.Session {
	t.Helper()
	var final *domain.Session
	require.Eventually(t, func() bool {
		sess, err := h.svc.GetSession(sessionID, user)
		if err != nil || !sess.Terminal() {
			return false
		}
		final = sess
		return true
	}, 15*time.Second, 10*time.Millisecond)
	return final
}

// Rookie commissioning: sit through the 30 s monitoring dwell, then ping.
// A clean run scores at least 90 with no errors and no hints.
func TestRookieCommissioningCleanRun(t *testing.T) {
	h := setup(t)
	sess := h.fly(t, "op-1", "ROOKIE_COMMISSIONING_101")

	require.NoError(t, h.svc.SetTimeScale(sess.ID, "op-1", "10x"))
	h.waitStep(t, sess.ID, "op-1", 2)

	rec := h.submit(t, sess.ID, "op-1", domain.CommandRequest{ClientID: "rk-1", Name: domain.CmdPing})
	assert.Equal(t, domain.CommandAccepted, rec.Status)

	final := h.waitTerminal(t, sess.ID, "op-1")
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, []int{1, 2}, final.CompletedSteps)
	assert.Equal(t, 0, final.HintsUsed)
	assert.Equal(t, 0, final.CommandsRejected+final.CommandsFailed)

	require.NotNil(t, final.Performance)
	assert.GreaterOrEqual(t, final.Performance.Overall, 90.0)

	weighted := 0.30*final.Performance.CommandAccuracy +
		0.20*final.Performance.ResponseTime +
		0.25*final.Performance.ResourceManagement +
		0.15*final.Performance.CompletionTime +
		0.10*final.Performance.ErrorAvoidance
	assert.InDelta(t, weighted, final.Performance.Overall, 1e-6)
}

// HUD walkthrough step 3: the altitude raise spends delta-v and, being a
// checkpoint step, persists a recovery snapshot.
func TestHudWalkthroughCheckpointBurn(t *testing.T) {
	h := setup(t)
	sess := h.fly(t, "op-1", "DEMO_COMPLETE_HUD")
	assert.Equal(t, 150.0, sess.Satellite.Subsystems.Propulsion.DeltaVRemainingMS)

	h.submit(t, sess.ID, "op-1", domain.CommandRequest{ClientID: "hud-1", Name: domain.CmdSystemHealthCheck})
	h.waitStep(t, sess.ID, "op-1", 2)
	h.submit(t, sess.ID, "op-1", domain.CommandRequest{ClientID: "hud-2", Name: domain.CmdDeployAntenna})
	h.waitStep(t, sess.ID, "op-1", 3)

	rec := h.submit(t, sess.ID, "op-1", domain.CommandRequest{
		ClientID: "hud-3",
		Name:     domain.CmdAdjustAltitude,
		Payload:  []byte(`{"target_km": 415}`),
	})
	require.Equal(t, domain.CommandAccepted, rec.Status, rec.Message)
	h.waitStep(t, sess.ID, "op-1", 4)

	current, err := h.svc.GetSession(sess.ID, "op-1")
	require.NoError(t, err)
	assert.Less(t, current.Satellite.Subsystems.Propulsion.DeltaVRemainingMS, 150.0)
	assert.Less(t, current.Satellite.Subsystems.Propulsion.FuelPct, 100.0)

	require.Eventually(t, func() bool {
		cp, err := h.sessions.LatestCheckpoint(sess.ID)
		return err == nil && cp != nil && cp.CurrentStep >= 4
	}, 5*time.Second, 20*time.Millisecond, "checkpoint step persists a recovery snapshot")
}

// A burn the budget cannot cover is rejected atomically.
func TestInsufficientDeltaVRejectedAtomically(t *testing.T) {
	h := setup(t)

	dv5 := 5.0
	require.NoError(t, h.svc.CreateScenario(&domain.Scenario{
		Code:                 "TIGHT_BUDGET",
		Title:                "Tight Budget",
		Type:                 domain.ScenarioSandbox,
		EstimatedDurationSec: 3600,
		InitialState:         &domain.InitialOverrides{DeltaVBudgetMS: &dv5},
		Published:            true,
	}))

	sess := h.fly(t, "op-1", "TIGHT_BUDGET")
	rec := h.submit(t, sess.ID, "op-1", domain.CommandRequest{
		ClientID: "tb-1",
		Name:     domain.CmdAdjustAltitude,
		Payload:  []byte(`{"target_km": 600}`),
	})
	assert.Equal(t, domain.CommandRejected, rec.Status)
	assert.Contains(t, rec.Message, "insufficient_delta_v")

	current, err := h.svc.GetSession(sess.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, current.Satellite.Subsystems.Propulsion.FuelPct, "rejected burns spend nothing")
	assert.Equal(t, 5.0, current.Satellite.Subsystems.Propulsion.DeltaVRemainingMS)
	assert.Equal(t, 1, current.CommandsRejected)
}

// Dropping below the perigee floor fails the session with cause reentry.
func TestReentryFailsSession(t *testing.T) {
	h := setup(t)
	sess := h.fly(t, "op-1", "FREE_FLIGHT")

	rec := h.submit(t, sess.ID, "op-1", domain.CommandRequest{
		ClientID: "re-1",
		Name:     domain.CmdAdjustAltitude,
		Payload:  []byte(`{"target_km": 50}`),
	})
	assert.Equal(t, domain.CommandAccepted, rec.Status, "the burn itself is affordable")

	final := h.waitTerminal(t, sess.ID, "op-1")
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, domain.CauseReentry, final.Cause)

	frames, err := h.frames.Recent(sess.ID, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, frames, "failure ships a final frame")

	ctx := context.Background()
	_, err = h.svc.SubmitCommand(ctx, sess.ID, "op-1", domain.CommandRequest{Name: domain.CmdPing})
	require.ErrorIs(t, err, domain.ErrSessionTerminal)
}

// Retrying with the same client id replays the original adjudication.
func TestDuplicateSubmissionReplaysRecord(t *testing.T) {
	h := setup(t)
	sess := h.fly(t, "op-1", "FREE_FLIGHT")

	first := h.submit(t, sess.ID, "op-1", domain.CommandRequest{
		ClientID: "dup-1",
		Name:     domain.CmdActivateHeater,
		Payload:  []byte(`{"on": true}`),
	})
	require.Equal(t, domain.CommandAccepted, first.Status)

	second := h.submit(t, sess.ID, "op-1", domain.CommandRequest{
		ClientID: "dup-1",
		Name:     domain.CmdActivateHeater,
		Payload:  []byte(`{"on": true}`),
	})
	assert.Equal(t, domain.CommandAcceptedDuplicate, second.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Effects, second.Effects)

	count, err := h.commands.Count(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "the log grows by exactly one")
}

// Stopping the runner mid-flight and resuming continues the same session:
// the document survives, sim time keeps increasing and the telemetry
// sequence never restarts.
func TestResumeAfterRestartKeepsContinuity(t *testing.T) {
	h := setup(t)
	sess := h.fly(t, "op-1", "FREE_FLIGHT")

	require.Eventually(t, func() bool {
		s, err := h.svc.GetSession(sess.ID, "op-1")
		return err == nil && s.ElapsedSimSec > 0.5 && s.LastSeq > 0
	}, 10*time.Second, 20*time.Millisecond)

	before, err := h.svc.GetSession(sess.ID, "op-1")
	require.NoError(t, err)

	// Simulated process restart: runners vanish, documents stay.
	h.manager.Shutdown()
	resumed, err := h.svc.ResumeSession(sess.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, resumed.Status)

	require.Eventually(t, func() bool {
		s, err := h.svc.GetSession(sess.ID, "op-1")
		return err == nil && s.LastSeq > before.LastSeq && s.ElapsedSimSec > before.ElapsedSimSec
	}, 10*time.Second, 20*time.Millisecond, "sequence and sim time continue, never restart")
}
