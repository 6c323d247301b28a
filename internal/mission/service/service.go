// Package service implements the mission API use cases: scenario authoring,
// session lifecycle, command submission and leaderboard reads.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
	"github.com/orbitalops/satops-backend/internal/mission/scenario"
	"github.com/orbitalops/satops-backend/internal/mission/session"
	"github.com/orbitalops/satops-backend/internal/sim/orbit"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
	"github.com/orbitalops/satops-backend/internal/sim/telemetry"
)

// HintProvider produces tutoring responses. The tutor adapter implements it;
// it reports whether the response counts as a hint.
type HintProvider interface {
	Hint(ctx context.Context, sess *domain.Session, question string) (answer string, isHint bool, err error)
}

// MissionService coordinates repositories and the runner manager.
type MissionService struct {
	scenarios *repository.ScenarioRepository
	sessions  *repository.SessionRepository
	commands  *repository.CommandRepository
	frames    *repository.TelemetryRepository
	summaries *repository.SummaryRepository // may be nil
	manager   *session.Manager
	tutor     HintProvider // may be nil
}

// NewMissionService creates the service.
func NewMissionService(
	scenarios *repository.ScenarioRepository,
	sessions *repository.SessionRepository,
	commands *repository.CommandRepository,
	frames *repository.TelemetryRepository,
	summaries *repository.SummaryRepository,
	manager *session.Manager,
	tutor HintProvider,
) *MissionService {
	return &MissionService{
		scenarios: scenarios,
		sessions:  sessions,
		commands:  commands,
		frames:    frames,
		summaries: summaries,
		manager:   manager,
		tutor:     tutor,
	}
}

// --- Scenarios ---

// ListScenarios returns scenarios; operators see published only, admins see
// everything.
func (s *MissionService) ListScenarios(includeDrafts bool) ([]domain.Scenario, error) {
	return s.scenarios.List(!includeDrafts)
}

// GetScenario returns one scenario by code.
func (s *MissionService) GetScenario(code string) (*domain.Scenario, error) {
	return s.scenarios.GetByCode(code)
}

// CreateScenario validates and stores an authored scenario.
func (s *MissionService) CreateScenario(sc *domain.Scenario) error {
	if err := scenario.Validate(sc); err != nil {
		return err
	}
	return s.scenarios.Create(sc)
}

// UpdateScenario validates and overwrites a scenario. In-flight sessions keep
// their embedded copy.
func (s *MissionService) UpdateScenario(sc *domain.Scenario) error {
	if err := scenario.Validate(sc); err != nil {
		return err
	}
	return s.scenarios.Update(sc)
}

// DeleteScenario removes a scenario definition.
func (s *MissionService) DeleteScenario(code string) error {
	return s.scenarios.Delete(code)
}

// SetScenarioPublished flips a scenario's publication flag.
func (s *MissionService) SetScenarioPublished(code string, published bool) (*domain.Scenario, error) {
	sc, err := s.scenarios.GetByCode(code)
	if err != nil {
		return nil, err
	}
	sc.Published = published
	if err := s.scenarios.Update(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// --- Session lifecycle ---

// CreateSession builds a new session for a published scenario. The scenario
// is embedded by value and the satellite snapshot is initialized with the
// scenario's overrides applied.
func (s *MissionService) CreateSession(userID, scenarioCode, callSign string) (*domain.Session, error) {
	sc, err := s.scenarios.GetByCode(scenarioCode)
	if err != nil {
		return nil, err
	}
	if !sc.Published {
		return nil, domain.ErrScenarioUnpublished
	}

	now := time.Now()
	sess := &domain.Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		CallSign:    callSign,
		Scenario:    *sc,
		Satellite:   s.initialSatellite(sc),
		Status:      domain.StatusCreated,
		CurrentStep: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	sess.MinSocPct = sess.Satellite.Subsystems.Power.SocPct

	if err := s.sessions.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AcknowledgeBriefing moves created -> briefing_acknowledged.
func (s *MissionService) AcknowledgeBriefing(sessionID, userID string) (*domain.Session, error) {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusCreated {
		return nil, fmt.Errorf("cannot acknowledge briefing from status %s", sess.Status)
	}
	sess.Status = domain.StatusBriefingAcknowledged
	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// StartSession moves briefing_acknowledged -> in_progress and launches the
// runner. in_progress is entered exactly once; use ResumeSession afterwards.
func (s *MissionService) StartSession(sessionID, userID string) (*domain.Session, error) {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusBriefingAcknowledged {
		if sess.Terminal() {
			return nil, domain.ErrSessionTerminal
		}
		return nil, fmt.Errorf("cannot start session from status %s", sess.Status)
	}

	sess.Status = domain.StatusInProgress
	sess.StartedAt = time.Now()
	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	if _, err := s.manager.Launch(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResumeSession re-attaches to an in-progress session, relaunching the runner
// from the persisted snapshot when the original task is gone (e.g. after a
// server restart). Terminal sessions cannot be resumed.
func (s *MissionService) ResumeSession(sessionID, userID string) (*domain.Session, error) {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, domain.ErrSessionTerminal
	}
	if sess.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("cannot resume session from status %s", sess.Status)
	}

	if _, ok := s.manager.Get(sessionID); !ok {
		if _, err := s.manager.Launch(sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// AbortSession fails the session with cause operator_abort.
func (s *MissionService) AbortSession(sessionID, userID string) error {
	return s.finish(sessionID, userID, domain.StatusFailed, domain.CauseOperatorAbort)
}

// AbandonSession marks the session abandoned (operator walked away).
func (s *MissionService) AbandonSession(sessionID, userID string) error {
	return s.finish(sessionID, userID, domain.StatusAbandoned, "")
}

// TerminateSession is the admin kill switch; no ownership check.
func (s *MissionService) TerminateSession(sessionID string) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	return s.finishLoaded(sess, domain.StatusFailed, domain.CauseAdminTerminated)
}

// GetSession returns a session the user owns.
func (s *MissionService) GetSession(sessionID, userID string) (*domain.Session, error) {
	return s.authorized(sessionID, userID)
}

// ListSessions returns the user's sessions.
func (s *MissionService) ListSessions(userID string) ([]domain.Session, error) {
	ids, err := s.sessions.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.sessions.Get(id)
		if err != nil {
			continue // expired document behind a live index entry
		}
		out = append(out, *sess)
	}
	return out, nil
}

// --- In-session operations ---

// SubmitCommand routes a command to the session's runner.
func (s *MissionService) SubmitCommand(ctx context.Context, sessionID, userID string, req domain.CommandRequest) (*domain.CommandRecord, error) {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return nil, err
	}
	runner, err := s.liveRunner(sess)
	if err != nil {
		return nil, err
	}
	return runner.Submit(ctx, req)
}

// SetTimeScale changes the session's time acceleration.
func (s *MissionService) SetTimeScale(sessionID, userID, scale string) error {
	runner, err := s.ownedRunner(sessionID, userID)
	if err != nil {
		return err
	}
	return runner.SetScale(scale)
}

// PauseSession suspends sim time.
func (s *MissionService) PauseSession(sessionID, userID string) error {
	runner, err := s.ownedRunner(sessionID, userID)
	if err != nil {
		return err
	}
	return runner.Pause()
}

// ResumeClock restarts sim time after a pause.
func (s *MissionService) ResumeClock(sessionID, userID string) error {
	runner, err := s.ownedRunner(sessionID, userID)
	if err != nil {
		return err
	}
	return runner.Resume()
}

// RequestHint asks the tutoring adapter for help and counts the hint against
// the session score when the response classifies as one.
func (s *MissionService) RequestHint(ctx context.Context, sessionID, userID, question string) (string, error) {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return "", err
	}
	if s.tutor == nil {
		return "", fmt.Errorf("tutoring is not configured")
	}

	answer, isHint, err := s.tutor.Hint(ctx, sess, question)
	if err != nil {
		return "", err
	}
	if isHint {
		if runner, ok := s.manager.Get(sessionID); ok {
			if err := runner.RecordHint(); err == nil {
				return answer, nil
			}
		}
		sess.HintsUsed++
		if err := s.sessions.Update(sess); err != nil {
			return answer, nil // hint delivery beats bookkeeping
		}
	}
	return answer, nil
}

// CommandHistory returns recent command records, newest first.
func (s *MissionService) CommandHistory(sessionID, userID string, limit int) ([]domain.CommandRecord, error) {
	if _, err := s.authorized(sessionID, userID); err != nil {
		return nil, err
	}
	return s.commands.Recent(sessionID, limit)
}

// RecentTelemetry returns recent frames in chronological order.
func (s *MissionService) RecentTelemetry(sessionID, userID string, limit int) ([]telemetry.Frame, error) {
	if _, err := s.authorized(sessionID, userID); err != nil {
		return nil, err
	}
	return s.frames.Recent(sessionID, limit)
}

// --- Leaderboard ---

// Leaderboard returns the top completed runs for a scenario.
func (s *MissionService) Leaderboard(ctx context.Context, scenarioCode string, limit int) ([]domain.PerformanceSummary, error) {
	if s.summaries == nil {
		return nil, nil
	}
	return s.summaries.Leaderboard(ctx, scenarioCode, limit)
}

// UserSummaries returns a user's completed-run summaries.
func (s *MissionService) UserSummaries(ctx context.Context, userID string, limit int) ([]domain.PerformanceSummary, error) {
	if s.summaries == nil {
		return nil, nil
	}
	return s.summaries.ListByUser(ctx, userID, limit)
}

// --- helpers ---

func (s *MissionService) authorized(sessionID, userID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, domain.ErrNotAuthorized
	}
	return sess, nil
}

func (s *MissionService) ownedRunner(sessionID, userID string) (*session.Runner, error) {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return s.liveRunner(sess)
}

// liveRunner returns the session's runner, relaunching it when the session is
// in progress but its task is gone.
func (s *MissionService) liveRunner(sess *domain.Session) (*session.Runner, error) {
	if runner, ok := s.manager.Get(sess.ID); ok {
		return runner, nil
	}
	if sess.Terminal() {
		return nil, domain.ErrSessionTerminal
	}
	if sess.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("session %s is not running", sess.ID)
	}
	return s.manager.Launch(sess)
}

func (s *MissionService) finish(sessionID, userID, status, cause string) error {
	sess, err := s.authorized(sessionID, userID)
	if err != nil {
		return err
	}
	return s.finishLoaded(sess, status, cause)
}

func (s *MissionService) finishLoaded(sess *domain.Session, status, cause string) error {
	if sess.Terminal() {
		return domain.ErrSessionTerminal
	}
	if runner, ok := s.manager.Get(sess.ID); ok {
		if err := runner.Finish(status, cause); err == nil {
			<-runner.Done()
			return nil
		}
	}

	// No live runner: transition the document directly.
	sess.Status = status
	sess.Cause = cause
	ended := time.Now()
	sess.EndedAt = &ended
	return s.sessions.Update(sess)
}

// initialSatellite builds the starting snapshot with scenario overrides.
func (s *MissionService) initialSatellite(sc *domain.Scenario) domain.SatelliteSnapshot {
	modelCfg := s.manager.ModelConfig()
	altitude := 408.0
	inclination := 51.6

	if ov := sc.InitialState; ov != nil {
		if ov.AltitudeKm != nil {
			altitude = *ov.AltitudeKm
		}
		if ov.InclinationDeg != nil {
			inclination = *ov.InclinationDeg
		}
		if ov.DeltaVBudgetMS != nil {
			modelCfg.DeltaVBudgetMS = *ov.DeltaVBudgetMS
		}
	}

	models := subsystems.NewModels(modelCfg)
	st := models.InitialState()
	if ov := sc.InitialState; ov != nil {
		if ov.SocPct != nil {
			st.Power.SocPct = *ov.SocPct
		}
		if ov.FuelPct != nil {
			st.Propulsion.FuelPct = *ov.FuelPct
		}
	}

	return domain.SatelliteSnapshot{
		Elements: orbit.Elements{
			SemiMajorAxisKm: orbit.EarthRadiusKm + altitude,
			InclinationDeg:  inclination,
		},
		Subsystems: st,
	}
}
