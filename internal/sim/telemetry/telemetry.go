// Package telemetry assembles versioned telemetry frames from the simulation
// models at a fixed sim-time cadence, bounded by a wall-time ceiling so a
// high time-acceleration cannot flood the transport.
package telemetry

import (
	"time"

	"github.com/orbitalops/satops-backend/internal/sim/orbit"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

// OrbitSnapshot is the orbital portion of a frame.
type OrbitSnapshot struct {
	Elements     orbit.Elements `json:"elements"`
	LatitudeDeg  float64        `json:"latitude_deg"`
	LongitudeDeg float64        `json:"longitude_deg"`
	AltitudeKm   float64        `json:"altitude_km"`
	SpeedKmS     float64        `json:"speed_km_s"`
	Illuminated  bool           `json:"illuminated"`
}

// Frame is one telemetry snapshot. Seq is strictly increasing per session;
// consumers must tolerate gaps caused by coalesced delivery.
type Frame struct {
	Seq        uint64           `json:"seq"`
	SimTimeSec float64          `json:"sim_time_sec"`
	Orbit      OrbitSnapshot    `json:"orbit"`
	Subsystems subsystems.State `json:"subsystems"`
}

// Field resolves a dotted telemetry path to a numeric value, for step
// predicates. Unknown paths return false.
func (f *Frame) Field(path string) (float64, bool) {
	switch path {
	case "orbit.altitude_km":
		return f.Orbit.AltitudeKm, true
	case "orbit.latitude_deg":
		return f.Orbit.LatitudeDeg, true
	case "orbit.speed_km_s":
		return f.Orbit.SpeedKmS, true
	case "power.soc_pct":
		return f.Subsystems.Power.SocPct, true
	case "power.array_output_w":
		return f.Subsystems.Power.ArrayOutputW, true
	case "thermal.temp_c":
		return f.Subsystems.Thermal.TempC, true
	case "attitude.pointing_error_deg":
		return f.Subsystems.Attitude.PointingErrDeg, true
	case "propulsion.fuel_pct":
		return f.Subsystems.Propulsion.FuelPct, true
	case "propulsion.delta_v_remaining_ms":
		return f.Subsystems.Propulsion.DeltaVRemainingMS, true
	case "comms.downlinks_queued":
		return float64(f.Subsystems.Comms.DownlinksQueued), true
	case "comms.active_station_elevation_deg":
		for _, s := range f.Subsystems.Comms.Stations {
			if s.Name == f.Subsystems.Comms.ActiveStation {
				return s.ElevationDeg, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// Assembler owns the per-session frame sequence and emission cadence.
type Assembler struct {
	simInterval  float64
	wallInterval time.Duration

	seq         uint64
	lastEmitSim float64
	lastWall    time.Time
	primed      bool
}

// NewAssembler builds an assembler emitting every simIntervalSec of sim time,
// at most once per wallMinInterval of wall time.
func NewAssembler(simIntervalSec float64, wallMinInterval time.Duration) *Assembler {
	return &Assembler{
		simInterval:  simIntervalSec,
		wallInterval: wallMinInterval,
	}
}

// Restore primes the assembler from a persisted session so the sequence
// keeps increasing across a resume.
func (a *Assembler) Restore(lastSeq uint64, simTime float64) {
	a.seq = lastSeq
	a.lastEmitSim = simTime
	a.primed = true
}

// Due reports whether a frame should be emitted at this sim time.
func (a *Assembler) Due(simTime float64, now time.Time) bool {
	if !a.primed {
		return true
	}
	if simTime-a.lastEmitSim < a.simInterval {
		return false
	}
	if a.wallInterval > 0 && now.Sub(a.lastWall) < a.wallInterval {
		return false
	}
	return true
}

// Seq returns the last sequence number issued.
func (a *Assembler) Seq() uint64 { return a.seq }

// Assemble snapshots the models into the next frame and advances the
// sequence number.
func (a *Assembler) Assemble(el orbit.Elements, st orbit.State, sub subsystems.State, illuminated bool, simTime float64, now time.Time) Frame {
	a.seq++
	a.lastEmitSim = simTime
	a.lastWall = now
	a.primed = true

	return Frame{
		Seq:        a.seq,
		SimTimeSec: simTime,
		Orbit: OrbitSnapshot{
			Elements:     el,
			LatitudeDeg:  st.LatitudeDeg,
			LongitudeDeg: st.LongitudeDeg,
			AltitudeKm:   st.AltitudeKm,
			SpeedKmS:     st.SpeedKmS,
			Illuminated:  illuminated,
		},
		Subsystems: sub,
	}
}
