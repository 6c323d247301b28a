// Package command implements the serialized command pipeline: schema
// validation, session and model precondition checks, atomic effect
// application and result records.
package command

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/sim/orbit"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

// IdempotencyWindow is how long a client command id deduplicates retries.
const IdempotencyWindow = 60 * time.Second

// Result is the outcome of one submission.
type Result struct {
	Record domain.CommandRecord

	// Duplicate marks an idempotent replay: the record is the original
	// one and no state was touched.
	Duplicate bool

	// EmitTelemetry asks the session loop to emit an out-of-cadence frame.
	EmitTelemetry bool

	// FailureCause, when set, fails the session (e.g. reentry) even though
	// the command itself was accepted.
	FailureCause string
}

type idempotentEntry struct {
	record  domain.CommandRecord
	expires time.Time
}

// Executor runs the command pipeline for one session. It is driven from the
// session task only, so it needs no locking.
type Executor struct {
	models *subsystems.Models
	seen   map[string]idempotentEntry
}

// NewExecutor builds an executor bound to the session's model set.
func NewExecutor(models *subsystems.Models) *Executor {
	return &Executor{
		models: models,
		seen:   make(map[string]idempotentEntry),
	}
}

// Execute runs the full pipeline. Commands are processed strictly in call
// order; a rejection at any stage mutates nothing.
func (e *Executor) Execute(sess *domain.Session, req domain.CommandRequest, now time.Time) Result {
	e.expire(now)

	if req.ClientID != "" {
		if entry, ok := e.seen[req.ClientID]; ok {
			// Replays carry the original adjudication; only accepted
			// originals are flagged as duplicates.
			rec := entry.record
			if rec.Status == domain.CommandAccepted {
				rec.Status = domain.CommandAcceptedDuplicate
			}
			return Result{Record: rec, Duplicate: true}
		}
	}

	rec := domain.CommandRecord{
		ID:          uuid.New().String(),
		ClientID:    req.ClientID,
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Name:        req.Name,
		Payload:     req.Payload,
		StepOrdinal: sess.CurrentStep,
		SimTimeSec:  sess.ElapsedSimSec,
		WallTime:    now,
	}

	// Stage 1: schema validation.
	payload, err := domain.ParseCommandPayload(req.Name, req.Payload)
	if err != nil {
		return e.reject(sess, rec, domain.ErrorCode(err), err.Error(), now)
	}

	// Stage 2: session-state validation.
	if sess.Status != domain.StatusInProgress {
		return e.reject(sess, rec, "session_terminal", "session is not in progress", now)
	}

	// Stages 3 and 4: model preconditions and atomic application.
	res := e.apply(sess, &rec, payload)
	countOutcome(sess, rec.Status)

	if req.ClientID != "" {
		e.seen[req.ClientID] = idempotentEntry{record: rec, expires: now.Add(IdempotencyWindow)}
	}
	res.Record = rec
	return res
}

func (e *Executor) reject(sess *domain.Session, rec domain.CommandRecord, code, msg string, now time.Time) Result {
	rec.Status = domain.CommandRejected
	rec.Message = fmt.Sprintf("%s: %s", code, msg)
	if sess.Status == domain.StatusInProgress {
		sess.CommandsRejected++
	}
	if rec.ClientID != "" {
		e.seen[rec.ClientID] = idempotentEntry{record: rec, expires: now.Add(IdempotencyWindow)}
	}
	return Result{Record: rec}
}

// apply validates model preconditions and mutates the satellite snapshot.
// On any precondition failure the snapshot is untouched.
func (e *Executor) apply(sess *domain.Session, rec *domain.CommandRecord, payload any) Result {
	st := &sess.Satellite.Subsystems
	el := &sess.Satellite.Elements
	var res Result

	switch rec.Name {
	case domain.CmdPing:
		rec.Status = domain.CommandAccepted
		rec.Message = "pong"

	case domain.CmdSystemHealthCheck:
		rec.Status = domain.CommandAccepted
		rec.Message = fmt.Sprintf("soc=%.1f%% temp=%.1fC fuel=%.1f%% dv=%.1fm/s pointing_err=%.2fdeg",
			st.Power.SocPct, st.Thermal.TempC, st.Propulsion.FuelPct,
			st.Propulsion.DeltaVRemainingMS, st.Attitude.PointingErrDeg)

	case domain.CmdRequestTelemetry:
		p := payload.(domain.RequestTelemetryPayload)
		rec.Status = domain.CommandAccepted
		rec.Message = fmt.Sprintf("telemetry packet %s queued", p.PacketType)
		res.EmitTelemetry = true

	case domain.CmdDeployAntenna:
		deployed := e.models.DeployAntenna(st)
		rec.Status = domain.CommandAccepted
		if deployed {
			rec.Message = "high-gain antenna deployed"
			rec.Effects = append(rec.Effects, domain.EffectDelta{Subsystem: "comms", Field: "antenna_deployed", Before: 0, After: 1})
		} else {
			rec.Message = "antenna already deployed"
		}

	case domain.CmdToggleBatteryCharge:
		p := payload.(domain.TogglePayload)
		before := boolToFloat(st.Power.ChargeEnabled)
		e.models.SetChargeEnabled(st, *p.On)
		rec.Status = domain.CommandAccepted
		rec.Message = fmt.Sprintf("battery charging %s", onOff(*p.On))
		rec.Effects = append(rec.Effects, domain.EffectDelta{Subsystem: "power", Field: "charge_enabled", Before: before, After: boolToFloat(*p.On)})

	case domain.CmdActivateHeater:
		p := payload.(domain.TogglePayload)
		before := boolToFloat(st.Thermal.HeaterOn)
		e.models.SetHeater(st, *p.On)
		rec.Status = domain.CommandAccepted
		rec.Message = fmt.Sprintf("survival heater %s", onOff(*p.On))
		rec.Effects = append(rec.Effects, domain.EffectDelta{Subsystem: "thermal", Field: "heater_on", Before: before, After: boolToFloat(*p.On)})

	case domain.CmdPointToTarget:
		p := payload.(domain.PointToTargetPayload)
		errBefore := st.Attitude.PointingErrDeg
		var roll, pitch, yaw float64
		if p.Coordinates != nil {
			roll, pitch, yaw = p.Coordinates.RollDeg, p.Coordinates.PitchDeg, p.Coordinates.YawDeg
		}
		e.models.PointTo(st, p.Mode, roll, pitch, yaw)
		rec.Status = domain.CommandAccepted
		rec.Message = fmt.Sprintf("slewing to %s attitude", p.Mode)
		rec.Effects = append(rec.Effects, domain.EffectDelta{Subsystem: "attitude", Field: "pointing_error_deg", Before: errBefore, After: st.Attitude.PointingErrDeg})

	case domain.CmdScheduleDownlink:
		p := payload.(domain.ScheduleDownlinkPayload)
		before := float64(st.Comms.DownlinksQueued)
		if err := e.models.ScheduleDownlink(st); err != nil {
			rec.Status = domain.CommandRejected
			rec.Message = "precondition_failed: " + err.Error()
			break
		}
		rec.Status = domain.CommandAccepted
		rec.Message = fmt.Sprintf("downlink of %.0f MB scheduled at %s priority", p.VolumeMB, p.Priority)
		rec.Effects = append(rec.Effects, domain.EffectDelta{Subsystem: "comms", Field: "downlinks_queued", Before: before, After: float64(st.Comms.DownlinksQueued)})

	case domain.CmdAdjustAltitude:
		p := payload.(domain.AdjustAltitudePayload)
		res.FailureCause = e.adjustAltitude(rec, st, el, p.TargetKm)
	}

	return res
}

// adjustAltitude prices the transfer, burns the budget atomically and moves
// the orbit. A post-burn perigee below the survivable floor fails the whole
// session with a reentry cause, while the command itself stays accepted.
func (e *Executor) adjustAltitude(rec *domain.CommandRecord, st *subsystems.State, el *orbit.Elements, targetKm float64) string {
	a0 := el.SemiMajorAxisKm
	aT := orbit.EarthRadiusKm + targetKm

	// Hohmann transfer cost for a small altitude change, in m/s.
	speedMS := math.Sqrt(orbit.MuEarth/a0) * 1000
	deltaV := speedMS * math.Abs(aT-a0) / (2 * a0)

	dvBefore := st.Propulsion.DeltaVRemainingMS
	fuelBefore := st.Propulsion.FuelPct
	altBefore := a0 - orbit.EarthRadiusKm

	if err := e.models.ApplyManeuver(st, deltaV); err != nil {
		if errors.Is(err, subsystems.ErrInsufficientDeltaV) {
			rec.Status = domain.CommandRejected
			rec.Message = fmt.Sprintf("insufficient_delta_v: maneuver needs %.1f m/s, %.1f m/s available", deltaV, dvBefore)
			return ""
		}
		rec.Status = domain.CommandFailed
		rec.Message = "internal: " + err.Error()
		return ""
	}

	el.SemiMajorAxisKm = aT
	rec.Status = domain.CommandAccepted
	rec.Message = fmt.Sprintf("transfer to %.0f km committed, %.1f m/s expended", targetKm, deltaV)
	rec.Effects = append(rec.Effects,
		domain.EffectDelta{Subsystem: "orbit", Field: "altitude_km", Before: altBefore, After: targetKm},
		domain.EffectDelta{Subsystem: "propulsion", Field: "delta_v_remaining_ms", Before: dvBefore, After: st.Propulsion.DeltaVRemainingMS},
		domain.EffectDelta{Subsystem: "propulsion", Field: "fuel_pct", Before: fuelBefore, After: st.Propulsion.FuelPct},
	)

	if el.PerigeeAltKm() < orbit.MinPerigeeAltKm {
		return domain.CauseReentry
	}
	return ""
}

// countOutcome books a fresh adjudication on the session's per-status
// counters. Duplicates never reach here.
func countOutcome(sess *domain.Session, status string) {
	switch status {
	case domain.CommandAccepted:
		sess.CommandsAccepted++
	case domain.CommandFailed:
		sess.CommandsFailed++
	default:
		sess.CommandsRejected++
	}
}

func (e *Executor) expire(now time.Time) {
	for k, v := range e.seen {
		if now.After(v.expires) {
			delete(e.seen, k)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
