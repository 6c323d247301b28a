// Package subsystems models the satellite bus: power, thermal, attitude,
// propulsion and communications. Each model advances per tick and reacts to
// command effects. All state lives in State so a session snapshot captures
// everything needed for a deterministic resume, including alert hysteresis.
package subsystems

import "github.com/orbitalops/satops-backend/internal/sim/orbit"

// Alert severities.
const (
	SeverityNominal  = "nominal"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a subsystem-raised condition surfaced to the operator.
type Alert struct {
	Severity  string `json:"severity"`
	Code      string `json:"code"`
	Subsystem string `json:"subsystem"`
	Message   string `json:"message"`
}

// Environment is the exogenous input to a tick.
type Environment struct {
	Illuminated bool
	SatECEF     orbit.Vec3
	Stations    []GroundStation
}

// GroundStation is a named ground site the satellite can see.
type GroundStation struct {
	Name         string  `json:"name"`
	LatitudeDeg  float64 `json:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg"`
	Type         string  `json:"type"` // primary|backup
	Active       bool    `json:"active"`
}

// DefaultStations is the baseline ground network used when a scenario does
// not override it.
func DefaultStations() []GroundStation {
	return []GroundStation{
		{Name: "CANBERRA", LatitudeDeg: -35.4, LongitudeDeg: 148.98, Type: "primary", Active: true},
		{Name: "GOLDSTONE", LatitudeDeg: 35.43, LongitudeDeg: -116.89, Type: "primary", Active: true},
		{Name: "MADRID", LatitudeDeg: 40.43, LongitudeDeg: -4.25, Type: "primary", Active: true},
		{Name: "SVALBARD", LatitudeDeg: 78.23, LongitudeDeg: 15.39, Type: "backup", Active: true},
	}
}

// State is the full subsystem state vector.
type State struct {
	Power      PowerState      `json:"power"`
	Thermal    ThermalState    `json:"thermal"`
	Attitude   AttitudeState   `json:"attitude"`
	Propulsion PropulsionState `json:"propulsion"`
	Comms      CommsState      `json:"comms"`
}

// Config carries the model tuning constants.
type Config struct {
	ArrayOutputW        float64
	PanelCount          int
	BaseLoadW           float64
	HeaterLoadW         float64
	BatteryCapacityWh   float64
	SocCriticalPct      float64
	SocCriticalRearmPct float64
	SocWarningPct       float64
	SocWarningRearmPct  float64

	AmbientSunC     float64
	AmbientEclipseC float64
	HeaterOffsetC   float64
	ThermalTauSec   float64
	ThermalNominalC [2]float64 // nominal band [min, max]
	ThermalDwellSec float64

	DampingTauSec      float64
	PointingTauSec     float64
	WheelSaturationRPM float64

	DeltaVBudgetMS  float64
	TankPressureKPa float64
	FuelPctPerMS    float64 // fuel percent consumed per m/s of delta-v
}

// DefaultConfig returns the tuning used by the stock training satellite.
func DefaultConfig() Config {
	return Config{
		ArrayOutputW:        1200,
		PanelCount:          4,
		BaseLoadW:           650,
		HeaterLoadW:         150,
		BatteryCapacityWh:   1500,
		SocCriticalPct:      20,
		SocCriticalRearmPct: 25,
		SocWarningPct:       40,
		SocWarningRearmPct:  45,

		AmbientSunC:     25,
		AmbientEclipseC: -15,
		HeaterOffsetC:   18,
		ThermalTauSec:   600,
		ThermalNominalC: [2]float64{-10, 40},
		ThermalDwellSec: 120,

		DampingTauSec:      45,
		PointingTauSec:     30,
		WheelSaturationRPM: 6000,

		DeltaVBudgetMS:  250,
		TankPressureKPa: 2000,
		FuelPctPerMS:    0.35,
	}
}

// Models evaluates all subsystem models against a shared State.
type Models struct {
	cfg Config
}

// NewModels builds the model set from the given tuning.
func NewModels(cfg Config) *Models {
	if cfg.PanelCount <= 0 {
		cfg.PanelCount = 4
	}
	return &Models{cfg: cfg}
}

// Config exposes the active tuning.
func (m *Models) Config() Config { return m.cfg }

// InitialState returns the healthy-bus starting state.
func (m *Models) InitialState() State {
	panels := make([]float64, m.cfg.PanelCount)
	return State{
		Power: PowerState{
			SocPct:        85,
			VoltageV:      29.4,
			ArrayOutputW:  m.cfg.ArrayOutputW,
			PanelOutputsW: panels,
			PanelHealth:   1,
			ChargeEnabled: true,
		},
		Thermal: ThermalState{
			TempC: 18,
		},
		Attitude: AttitudeState{
			TargetMode: PointingModeNadir,
			WheelRPM:   make([]float64, 3),
		},
		Propulsion: PropulsionState{
			FuelPct:           100,
			TankPressureKPa:   m.cfg.TankPressureKPa,
			DeltaVRemainingMS: m.cfg.DeltaVBudgetMS,
		},
		Comms: CommsState{},
	}
}

// Tick advances every model by simDt seconds and returns any alerts raised
// by threshold crossings during this tick.
func (m *Models) Tick(st *State, simDt float64, env Environment) []Alert {
	if simDt <= 0 {
		// Paused: comms geometry still updates so the UI tracks passes.
		m.tickComms(st, env)
		return nil
	}

	var alerts []Alert
	alerts = append(alerts, m.tickPower(st, simDt, env)...)
	alerts = append(alerts, m.tickThermal(st, simDt, env)...)
	alerts = append(alerts, m.tickAttitude(st, simDt)...)
	m.tickPropulsion(st)
	m.tickComms(st, env)
	return alerts
}
