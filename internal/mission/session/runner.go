package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/orbitalops/satops-backend/internal/metrics"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
	"github.com/orbitalops/satops-backend/internal/sim/clock"
)

// Broadcaster delivers events to the session's connected clients. The
// transport gateway implements it.
type Broadcaster interface {
	Broadcast(sessionID string, ev domain.Event)
}

// Stores bundles the persistence the runner needs. Summaries may be nil when
// no leaderboard database is configured.
type Stores struct {
	Sessions  *repository.SessionRepository
	Commands  *repository.CommandRepository
	Telemetry *repository.TelemetryRepository
	Summaries *repository.SummaryRepository
}

type cmdSubmit struct {
	req   domain.CommandRequest
	reply chan *domain.CommandRecord
}

type control struct {
	action string // pause|resume|set_scale|finish|hint
	scale  string
	status string
	cause  string
	reply  chan error
}

// Runner is the session task: a single goroutine that owns the engine and
// processes clock ticks, command submissions and control events in arrival
// order. All persistence happens between inputs, never mid-application.
type Runner struct {
	engine    *Engine
	clk       *clock.Clock
	stores    Stores
	broadcast Broadcaster

	cmdCh  chan cmdSubmit
	ctrlCh chan control
	done   chan struct{}
	stop   chan struct{}

	stopOnce sync.Once
}

// NewRunner wires a runner around an engine. Call Start to begin ticking.
func NewRunner(engine *Engine, cadence time.Duration, stores Stores, broadcast Broadcaster) *Runner {
	return &Runner{
		engine:    engine,
		clk:       clock.New(cadence),
		stores:    stores,
		broadcast: broadcast,
		cmdCh:     make(chan cmdSubmit, 16),
		ctrlCh:    make(chan control, 4),
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// SessionID returns the owned session's id.
func (r *Runner) SessionID() string { return r.engine.Session().ID }

// Done is closed when the runner has exited and persisted its final state.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Start launches the clock and the session task.
func (r *Runner) Start() {
	go r.clk.Run()
	go r.loop()
}

// Stop halts the runner without a lifecycle transition; the session stays
// resumable. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Submit queues a command and waits for its result.
func (r *Runner) Submit(ctx context.Context, req domain.CommandRequest) (*domain.CommandRecord, error) {
	sub := cmdSubmit{req: req, reply: make(chan *domain.CommandRecord, 1)}
	select {
	case r.cmdCh <- sub:
	case <-r.done:
		return nil, domain.ErrSessionTerminal
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rec := <-sub.reply:
		return rec, nil
	case <-r.done:
		return nil, domain.ErrSessionTerminal
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pause suspends sim time.
func (r *Runner) Pause() error { return r.sendControl(control{action: "pause"}) }

// Resume restarts sim time.
func (r *Runner) Resume() error { return r.sendControl(control{action: "resume"}) }

// SetScale changes the time-acceleration factor.
func (r *Runner) SetScale(scale string) error {
	return r.sendControl(control{action: "set_scale", scale: scale})
}

// Finish moves the session to a terminal state (abort, abandon, admin
// terminate) and shuts the runner down.
func (r *Runner) Finish(status, cause string) error {
	return r.sendControl(control{action: "finish", status: status, cause: cause})
}

// RecordHint counts a delivered hint against the session score.
func (r *Runner) RecordHint() error { return r.sendControl(control{action: "hint"}) }

func (r *Runner) sendControl(c control) error {
	c.reply = make(chan error, 1)
	select {
	case r.ctrlCh <- c:
	case <-r.done:
		return domain.ErrSessionTerminal
	}
	select {
	case err := <-c.reply:
		return err
	case <-r.done:
		return nil
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	defer r.clk.Stop()

	for {
		select {
		case <-r.stop:
			// Persist whatever we have so a resume picks up cleanly.
			r.persistSession()
			return

		case tick := <-r.clk.C():
			out := r.engine.HandleTick(tick.SimDt.Seconds(), time.Now())
			r.commit(out)
			if out.Terminal {
				return
			}

		case sub := <-r.cmdCh:
			out := r.engine.HandleCommand(sub.req, time.Now())
			r.commit(out)
			sub.reply <- out.Record
			if out.Terminal {
				return
			}

		case ctl := <-r.ctrlCh:
			terminal := r.handleControl(ctl)
			if terminal {
				return
			}
		}
	}
}

func (r *Runner) handleControl(ctl control) bool {
	switch ctl.action {
	case "pause":
		r.clk.Pause()
		ctl.reply <- nil
	case "resume":
		r.clk.Resume()
		ctl.reply <- nil
	case "set_scale":
		ctl.reply <- r.clk.SetScale(ctl.scale)
	case "hint":
		r.engine.RecordHint()
		r.persistSession()
		ctl.reply <- nil
	case "finish":
		out := r.engine.Finish(ctl.status, ctl.cause, time.Now())
		r.commit(out)
		ctl.reply <- nil
		return out.Terminal
	default:
		ctl.reply <- nil
	}
	return false
}

// commit persists and broadcasts one engine output. The session document is
// written only when the step produced something observable, so persistence
// runs at telemetry cadence rather than tick cadence.
func (r *Runner) commit(out Output) {
	sess := r.engine.Session()

	if out.Frame != nil {
		metrics.ObserveTelemetryFrame()
		if r.stores.Telemetry != nil {
			if err := r.stores.Telemetry.Append(sess.ID, out.Frame); err != nil {
				log.Printf("session %s: telemetry append: %v", sess.ID, err)
			}
		}
	}
	if out.Record != nil && out.NewRecord {
		metrics.ObserveCommand(out.Record.Name, out.Record.Status)
		if r.stores.Commands != nil {
			if err := r.stores.Commands.Append(out.Record); err != nil {
				log.Printf("session %s: command append: %v", sess.ID, err)
			}
		}
	}

	observable := out.Terminal || out.Frame != nil || len(out.Events) > 0 ||
		(out.Record != nil && out.NewRecord)
	if out.Dirty && observable {
		r.persistSession()
	}
	if out.Checkpoint && r.stores.Sessions != nil {
		if err := r.stores.Sessions.SaveCheckpoint(sess); err != nil {
			log.Printf("session %s: checkpoint save: %v", sess.ID, err)
		}
	}
	if out.Terminal {
		metrics.ObserveSessionFinished(sess.Status, sess.Cause)
		r.persistSummary()
	}

	for _, ev := range out.Events {
		ev.Version = sess.Version
		if r.broadcast != nil {
			r.broadcast.Broadcast(sess.ID, ev)
		}
		if r.stores.Sessions != nil {
			if err := r.stores.Sessions.PublishEvent(sess.ID, &ev); err != nil {
				log.Printf("session %s: event publish: %v", sess.ID, err)
			}
		}
	}
}

// persistSession writes the session document under optimistic concurrency.
// The runner is the only writer, so a version conflict means the stored copy
// moved underneath us (admin tooling); we reload the counter and retry once.
func (r *Runner) persistSession() {
	if r.stores.Sessions == nil {
		return
	}
	sess := r.engine.Session()
	err := r.stores.Sessions.Update(sess)
	if errors.Is(err, domain.ErrStaleVersion) {
		stored, getErr := r.stores.Sessions.Get(sess.ID)
		if getErr != nil {
			log.Printf("session %s: stale reload: %v", sess.ID, getErr)
			return
		}
		sess.Version = stored.Version
		err = r.stores.Sessions.Update(sess)
	}
	if err != nil {
		log.Printf("session %s: persist: %v", sess.ID, err)
	}
}

func (r *Runner) persistSummary() {
	sess := r.engine.Session()
	if r.stores.Summaries == nil || sess.Performance == nil || sess.Status != domain.StatusCompleted {
		return
	}

	completedAt := time.Now()
	if sess.EndedAt != nil {
		completedAt = *sess.EndedAt
	}
	summary := &domain.PerformanceSummary{
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		ScenarioCode: sess.Scenario.Code,
		Status:       sess.Status,
		Performance:  *sess.Performance,
		SimTimeSec:   sess.ElapsedSimSec,
		CompletedAt:  completedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.stores.Summaries.Upsert(ctx, summary); err != nil {
		log.Printf("session %s: summary upsert: %v", sess.ID, err)
	}
}
