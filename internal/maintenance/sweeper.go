// Package maintenance runs the background housekeeping jobs: trimming
// telemetry history and abandoning sessions nobody is flying anymore.
package maintenance

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/orbitalops/satops-backend/internal/mission/repository"
)

// Finisher moves a session to a terminal state on the owner's behalf.
type Finisher interface {
	AbandonSession(sessionID, userID string) error
}

// Sweeper is the cron-driven janitor.
type Sweeper struct {
	sessions  *repository.SessionRepository
	telemetry *repository.TelemetryRepository
	finisher  Finisher
	idleAfter time.Duration

	cron *cron.Cron
}

// NewSweeper builds the sweeper. idleAfter bounds how long a non-terminal
// session may sit without a persisted mutation before it is abandoned.
func NewSweeper(
	sessions *repository.SessionRepository,
	telemetry *repository.TelemetryRepository,
	finisher Finisher,
	idleAfter time.Duration,
) *Sweeper {
	return &Sweeper{
		sessions:  sessions,
		telemetry: telemetry,
		finisher:  finisher,
		idleAfter: idleAfter,
	}
}

// Start schedules the sweep every minute.
func (s *Sweeper) Start() error {
	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc("0 * * * * *", s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("maintenance sweeper started (every minute)")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one pass over every stored session.
func (s *Sweeper) Sweep() {
	ids, err := s.sessions.ScanIDs()
	if err != nil {
		log.Printf("sweeper: session scan: %v", err)
		return
	}

	now := time.Now()
	for _, id := range ids {
		if s.telemetry != nil {
			if err := s.telemetry.Trim(id); err != nil {
				log.Printf("sweeper: telemetry trim %s: %v", id, err)
			}
		}

		sess, err := s.sessions.Get(id)
		if err != nil {
			continue // expired between scan and read
		}
		if sess.Terminal() {
			continue
		}
		if now.Sub(sess.UpdatedAt) < s.idleAfter {
			continue
		}

		// A live session persists at telemetry cadence, so a stale
		// UpdatedAt means the operator walked away (or the session
		// never started flying).
		if err := s.finisher.AbandonSession(sess.ID, sess.UserID); err != nil {
			log.Printf("sweeper: abandon %s: %v", sess.ID, err)
			continue
		}
		log.Printf("sweeper: abandoned idle session %s (idle since %s)",
			sess.ID, sess.UpdatedAt.Format(time.RFC3339))
	}
}
