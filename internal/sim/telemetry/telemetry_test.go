package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/orbitalops/satops-backend/internal/sim/orbit"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

func testInputs() (orbit.Elements, orbit.State, subsystems.State) {
	el := orbit.Elements{SemiMajorAxisKm: orbit.EarthRadiusKm + 408, InclinationDeg: 51.6}
	st := orbit.StateAt(el, 0)
	models := subsystems.NewModels(subsystems.DefaultConfig())
	return el, st, models.InitialState()
}

func TestSequenceStrictlyIncreasing(t *testing.T) {
	a := NewAssembler(1, 0)
	el, st, sub := testInputs()

	var last uint64
	now := time.Now()
	for i := 0; i < 10; i++ {
		f := a.Assemble(el, st, sub, true, float64(i), now)
		assert.Greater(t, f.Seq, last)
		last = f.Seq
	}
}

func TestDueHonorsSimCadence(t *testing.T) {
	a := NewAssembler(1, 0)
	el, st, sub := testInputs()
	now := time.Now()

	assert.True(t, a.Due(0, now), "first frame is always due")
	a.Assemble(el, st, sub, true, 0, now)

	assert.False(t, a.Due(0.5, now))
	assert.True(t, a.Due(1.0, now))
}

func TestDueHonorsWallCeiling(t *testing.T) {
	a := NewAssembler(1, 100*time.Millisecond)
	el, st, sub := testInputs()
	now := time.Now()

	a.Assemble(el, st, sub, true, 0, now)

	// Sim time is due but the wall ceiling suppresses emission.
	assert.False(t, a.Due(60, now.Add(10*time.Millisecond)))
	assert.True(t, a.Due(60, now.Add(150*time.Millisecond)))
}

func TestRestoreContinuesSequence(t *testing.T) {
	a := NewAssembler(1, 0)
	a.Restore(41, 100)

	el, st, sub := testInputs()
	f := a.Assemble(el, st, sub, false, 101, time.Now())
	assert.Equal(t, uint64(42), f.Seq)
}

func TestFieldResolution(t *testing.T) {
	el, st, sub := testInputs()
	a := NewAssembler(1, 0)
	f := a.Assemble(el, st, sub, true, 0, time.Now())

	v, ok := f.Field("power.soc_pct")
	assert.True(t, ok)
	assert.Equal(t, sub.Power.SocPct, v)

	v, ok = f.Field("orbit.altitude_km")
	assert.True(t, ok)
	assert.InDelta(t, 408, v, 1e-6)

	_, ok = f.Field("does.not.exist")
	assert.False(t, ok)
}
