package subsystems

import "errors"

// ErrInsufficientDeltaV rejects a maneuver that would overdraw the budget.
// The caller must treat this as precondition_failed: no state was mutated.
var ErrInsufficientDeltaV = errors.New("insufficient delta-v for maneuver")

// PropulsionState tracks the propellant budget. FuelPct and
// DeltaVRemainingMS are strictly non-increasing over a session.
type PropulsionState struct {
	FuelPct           float64 `json:"fuel_pct"`
	TankPressureKPa   float64 `json:"tank_pressure_kpa"`
	DeltaVRemainingMS float64 `json:"delta_v_remaining_ms"`
}

func (m *Models) tickPropulsion(st *State) {
	// Tank pressure tracks remaining propellant.
	st.Propulsion.TankPressureKPa = m.cfg.TankPressureKPa * (0.2 + 0.8*st.Propulsion.FuelPct/100)
}

// ApplyManeuver consumes delta-v and fuel atomically. If either budget would
// go negative nothing is mutated.
func (m *Models) ApplyManeuver(st *State, deltaVMS float64) error {
	if deltaVMS < 0 {
		return ErrInsufficientDeltaV
	}
	fuelCost := deltaVMS * m.cfg.FuelPctPerMS

	p := &st.Propulsion
	if deltaVMS > p.DeltaVRemainingMS || fuelCost > p.FuelPct {
		return ErrInsufficientDeltaV
	}

	p.DeltaVRemainingMS -= deltaVMS
	p.FuelPct -= fuelCost
	m.tickPropulsion(st)
	return nil
}
