package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/scoring"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

// Manager tracks the live runners, one per in-progress session.
type Manager struct {
	mu      sync.RWMutex
	runners map[string]*Runner

	stores    Stores
	broadcast Broadcaster
	scorer    *scoring.Aggregator
	cadence   time.Duration
	engineCfg Config
	modelCfg  subsystems.Config

	onCountChange func(int) // metrics hook, may be nil
}

// NewManager builds a runner registry.
func NewManager(stores Stores, broadcast Broadcaster, scorer *scoring.Aggregator, cadence time.Duration, engineCfg Config, modelCfg subsystems.Config) *Manager {
	return &Manager{
		runners:   make(map[string]*Runner),
		stores:    stores,
		broadcast: broadcast,
		scorer:    scorer,
		cadence:   cadence,
		engineCfg: engineCfg,
		modelCfg:  modelCfg,
	}
}

// OnCountChange registers a callback invoked with the live-runner count
// whenever it changes.
func (m *Manager) OnCountChange(fn func(int)) { m.onCountChange = fn }

// ModelConfig returns the subsystem tuning used for new sessions.
func (m *Manager) ModelConfig() subsystems.Config { return m.modelCfg }

// Launch starts a runner for a session that just entered in_progress. The
// session must not already have a live runner.
func (m *Manager) Launch(sess *domain.Session) (*Runner, error) {
	m.mu.Lock()
	if _, ok := m.runners[sess.ID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %s already has a live runner", sess.ID)
	}

	modelCfg := m.modelCfg
	if sess.Scenario.InitialState != nil && sess.Scenario.InitialState.DeltaVBudgetMS != nil {
		modelCfg.DeltaVBudgetMS = *sess.Scenario.InitialState.DeltaVBudgetMS
	}
	models := subsystems.NewModels(modelCfg)
	engine := NewEngine(sess, models, m.scorer, m.engineCfg)
	runner := NewRunner(engine, m.cadence, m.stores, m.broadcast)

	m.runners[sess.ID] = runner
	count := len(m.runners)
	m.mu.Unlock()
	m.notifyCount(count)

	runner.Start()
	go m.reap(runner)
	return runner, nil
}

// Get returns the live runner for a session, if any.
func (m *Manager) Get(sessionID string) (*Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runners[sessionID]
	return r, ok
}

// Count returns the number of live runners.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runners)
}

// SessionIDs lists the sessions with live runners.
func (m *Manager) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.runners))
	for id := range m.runners {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops every runner without a lifecycle transition. Sessions stay
// resumable; each runner persists its state on the way out.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	runners := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.mu.RUnlock()

	for _, r := range runners {
		r.Stop()
	}
	for _, r := range runners {
		<-r.Done()
	}
}

func (m *Manager) reap(r *Runner) {
	<-r.Done()
	m.mu.Lock()
	delete(m.runners, r.SessionID())
	count := len(m.runners)
	m.mu.Unlock()
	m.notifyCount(count)
}

func (m *Manager) notifyCount(n int) {
	if m.onCountChange != nil {
		m.onCountChange(n)
	}
}
