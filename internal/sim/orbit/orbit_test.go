package orbit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func circularLEO() Elements {
	return Elements{
		SemiMajorAxisKm: EarthRadiusKm + 408,
		Eccentricity:    0,
		InclinationDeg:  51.6,
		RAANDeg:         120,
		ArgPerigeeDeg:   0,
		TrueAnomalyRad:  0,
	}
}

func TestMeanMotionAndPeriod(t *testing.T) {
	el := circularLEO()
	// ISS-like orbit: period around 92-93 minutes.
	period := el.PeriodSec()
	assert.InDelta(t, 5570, period, 60)
}

func TestPropagateCircular(t *testing.T) {
	el := circularLEO()

	next, st, err := Propagate(el, 60, 60)
	require.NoError(t, err)

	// True anomaly advanced by n*dt.
	assert.InDelta(t, el.MeanMotion()*60, next.TrueAnomalyRad, 1e-12)

	// Altitude stays at the circular value, speed matches vis-viva.
	assert.InDelta(t, 408, st.AltitudeKm, 1e-6)
	assert.InDelta(t, math.Sqrt(MuEarth/el.SemiMajorAxisKm), st.SpeedKmS, 1e-9)
}

func TestPropagateFullPeriodReturns(t *testing.T) {
	el := circularLEO()
	period := el.PeriodSec()

	next, _, err := Propagate(el, period, period)
	require.NoError(t, err)
	// One full revolution wraps back to the starting anomaly.
	diff := math.Min(next.TrueAnomalyRad, 2*math.Pi-next.TrueAnomalyRad)
	assert.Less(t, diff, 1e-6)
}

func TestPropagateEccentric(t *testing.T) {
	el := circularLEO()
	el.Eccentricity = 0.01

	quarter := el.PeriodSec() / 4
	next, st, err := Propagate(el, quarter, quarter)
	require.NoError(t, err)
	assert.Greater(t, next.TrueAnomalyRad, 0.0)
	assert.Greater(t, st.AltitudeKm, 0.0)
}

func TestSolveKeplerConverges(t *testing.T) {
	for _, ecc := range []float64{0.001, 0.01, 0.05, 0.1} {
		for _, m := range []float64{0.1, 1.0, 3.0, 6.0} {
			eccAnom, err := solveKepler(m, ecc)
			require.NoError(t, err)
			// Residual of Kepler's equation within tolerance.
			assert.InDelta(t, m, eccAnom-ecc*math.Sin(eccAnom), 1e-7)
		}
	}
}

func TestPerigeeAlt(t *testing.T) {
	el := circularLEO()
	assert.InDelta(t, 408, el.PerigeeAltKm(), 1e-9)

	el.SemiMajorAxisKm = EarthRadiusKm + MinPerigeeAltKm
	assert.InDelta(t, MinPerigeeAltKm, el.PerigeeAltKm(), 1e-9)
}

func TestElevationDegrees(t *testing.T) {
	station := GeodeticToECEF(0, 0, 0)

	// Satellite directly overhead.
	overhead := GeodeticToECEF(0, 0, 400)
	assert.InDelta(t, 90, ElevationDegrees(station, overhead), 1e-6)

	// Satellite on the opposite side of the Earth is far below the horizon.
	antipode := GeodeticToECEF(0, 180, 400)
	assert.Less(t, ElevationDegrees(station, antipode), 0.0)
}

func TestGeodeticRoundTrip(t *testing.T) {
	st := StateAt(circularLEO(), 0)
	back := GeodeticToECEF(st.LatitudeDeg, st.LongitudeDeg, st.AltitudeKm)
	assert.InDelta(t, st.ECEF.X, back.X, 1e-6)
	assert.InDelta(t, st.ECEF.Y, back.Y, 1e-6)
	assert.InDelta(t, st.ECEF.Z, back.Z, 1e-6)
}
