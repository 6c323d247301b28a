// Package orbit implements the training-fidelity orbit model: Keplerian-lite
// elements, two-body propagation, and ground-station visibility. The Earth is
// treated as a sphere; spheroid refinement is deliberately out of scope.
package orbit

import (
	"errors"
	"math"
)

const (
	// MuEarth is the Earth gravitational parameter in km^3/s^2.
	MuEarth = 398600.4418
	// EarthRadiusKm is the mean Earth radius used throughout.
	EarthRadiusKm = 6371.0
	// EarthRotationRate is the sidereal rotation rate in rad/s.
	EarthRotationRate = 7.2921159e-5

	// MinPerigeeAltKm is the lowest survivable perigee altitude. Anything
	// below is treated as reentry.
	MinPerigeeAltKm = 100.0

	keplerTolerance = 1e-8
	keplerMaxIter   = 12
)

// ErrDivergence is returned when the Kepler solver fails to converge.
var ErrDivergence = errors.New("kepler solver did not converge")

// Elements is the near-circular element set. TrueAnomalyRad is the only
// field mutated by propagation.
type Elements struct {
	SemiMajorAxisKm float64 `json:"semi_major_axis_km"`
	Eccentricity    float64 `json:"eccentricity"`
	InclinationDeg  float64 `json:"inclination_deg"`
	RAANDeg         float64 `json:"raan_deg"`
	ArgPerigeeDeg   float64 `json:"arg_perigee_deg"`
	TrueAnomalyRad  float64 `json:"true_anomaly_rad"`
}

// State is the instantaneous kinematic picture derived from the elements.
type State struct {
	ECI          Vec3    `json:"eci"`
	ECEF         Vec3    `json:"ecef"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	AltitudeKm   float64 `json:"altitude_km"`
	SpeedKmS     float64 `json:"speed_km_s"`
}

// PerigeeAltKm returns the perigee altitude above the spherical Earth.
func (el Elements) PerigeeAltKm() float64 {
	return el.SemiMajorAxisKm*(1-el.Eccentricity) - EarthRadiusKm
}

// MeanMotion returns the mean motion n in rad/s.
func (el Elements) MeanMotion() float64 {
	a := el.SemiMajorAxisKm
	return math.Sqrt(MuEarth / (a * a * a))
}

// PeriodSec returns the orbital period in seconds.
func (el Elements) PeriodSec() float64 {
	return 2 * math.Pi / el.MeanMotion()
}

// Propagate advances the elements by simDt seconds and returns the new
// element set plus the derived state at simTime (seconds since epoch, used
// for the sidereal ECI->ECEF rotation).
func Propagate(el Elements, simDt, simTime float64) (Elements, State, error) {
	n := el.MeanMotion()

	if el.Eccentricity < 1e-4 {
		// Near-circular: true anomaly advances at the mean motion.
		el.TrueAnomalyRad = wrapTwoPi(el.TrueAnomalyRad + n*simDt)
	} else {
		// Advance mean anomaly, solve Kepler's equation by Newton iteration.
		ecc := el.Eccentricity
		meanAnom := trueToMean(el.TrueAnomalyRad, ecc)
		meanAnom = wrapTwoPi(meanAnom + n*simDt)

		eccAnom, err := solveKepler(meanAnom, ecc)
		if err != nil {
			return el, State{}, err
		}
		el.TrueAnomalyRad = wrapTwoPi(2 * math.Atan2(
			math.Sqrt(1+ecc)*math.Sin(eccAnom/2),
			math.Sqrt(1-ecc)*math.Cos(eccAnom/2),
		))
	}

	return el, deriveState(el, simTime), nil
}

// StateAt derives the kinematic state without advancing the elements.
func StateAt(el Elements, simTime float64) State {
	return deriveState(el, simTime)
}

func deriveState(el Elements, simTime float64) State {
	nu := el.TrueAnomalyRad
	ecc := el.Eccentricity
	a := el.SemiMajorAxisKm

	r := a * (1 - ecc*ecc) / (1 + ecc*math.Cos(nu))

	// Perifocal position rotated to ECI via the classical 3-1-3 sequence.
	inc := el.InclinationDeg * math.Pi / 180
	raan := el.RAANDeg * math.Pi / 180
	argp := el.ArgPerigeeDeg * math.Pi / 180

	xp := r * math.Cos(nu)
	yp := r * math.Sin(nu)

	cosO, sinO := math.Cos(raan), math.Sin(raan)
	cosI, sinI := math.Cos(inc), math.Sin(inc)
	cosW, sinW := math.Cos(argp), math.Sin(argp)

	eci := Vec3{
		X: (cosO*cosW-sinO*sinW*cosI)*xp + (-cosO*sinW-sinO*cosW*cosI)*yp,
		Y: (sinO*cosW+cosO*sinW*cosI)*xp + (-sinO*sinW+cosO*cosW*cosI)*yp,
		Z: (sinW*sinI)*xp + (cosW*sinI)*yp,
	}

	// Simple sidereal rotation proportional to sim time.
	theta := EarthRotationRate * simTime
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	ecef := Vec3{
		X: cosT*eci.X + sinT*eci.Y,
		Y: -sinT*eci.X + cosT*eci.Y,
		Z: eci.Z,
	}

	rNorm := ecef.Norm()
	lat := math.Asin(ecef.Z/rNorm) * 180 / math.Pi
	lon := math.Atan2(ecef.Y, ecef.X) * 180 / math.Pi

	// Vis-viva speed.
	speed := math.Sqrt(MuEarth * (2/r - 1/a))

	return State{
		ECI:          eci,
		ECEF:         ecef,
		LatitudeDeg:  lat,
		LongitudeDeg: lon,
		AltitudeKm:   rNorm - EarthRadiusKm,
		SpeedKmS:     speed,
	}
}

// solveKepler finds the eccentric anomaly for the given mean anomaly via
// Newton iteration to a fixed tolerance with a hard iteration cap.
func solveKepler(meanAnom, ecc float64) (float64, error) {
	eccAnom := meanAnom
	if ecc > 0.8 {
		eccAnom = math.Pi
	}
	for i := 0; i < keplerMaxIter; i++ {
		f := eccAnom - ecc*math.Sin(eccAnom) - meanAnom
		if math.Abs(f) < keplerTolerance {
			return eccAnom, nil
		}
		eccAnom -= f / (1 - ecc*math.Cos(eccAnom))
	}
	return 0, ErrDivergence
}

func trueToMean(nu, ecc float64) float64 {
	eccAnom := 2 * math.Atan2(
		math.Sqrt(1-ecc)*math.Sin(nu/2),
		math.Sqrt(1+ecc)*math.Cos(nu/2),
	)
	return eccAnom - ecc*math.Sin(eccAnom)
}

func wrapTwoPi(x float64) float64 {
	x = math.Mod(x, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}
	return x
}
