package subsystems

import (
	"fmt"
	"math"
)

// PowerState is the electrical power subsystem state. The alarm-armed flags
// are persisted so hysteresis survives a session resume.
type PowerState struct {
	SocPct        float64   `json:"soc_pct"`
	VoltageV      float64   `json:"voltage_v"`
	CurrentA      float64   `json:"current_a"`
	ArrayOutputW  float64   `json:"array_output_w"`
	PanelOutputsW []float64 `json:"panel_outputs_w"`
	PanelHealth   float64   `json:"panel_health"`
	ChargeEnabled bool      `json:"charge_enabled"`

	CriticalArmed bool    `json:"critical_armed"`
	WarningArmed  bool    `json:"warning_armed"`
	ZeroSocSec    float64 `json:"zero_soc_sec"`
}

func (m *Models) tickPower(st *State, simDt float64, env Environment) []Alert {
	p := &st.Power

	illumination := 0.0
	if env.Illuminated {
		illumination = 1.0
	}

	gen := m.cfg.ArrayOutputW * illumination * p.PanelHealth
	p.ArrayOutputW = gen
	perPanel := gen / float64(len(p.PanelOutputsW))
	for i := range p.PanelOutputsW {
		p.PanelOutputsW[i] = perPanel
	}

	load := m.cfg.BaseLoadW
	if st.Thermal.HeaterOn {
		load += m.cfg.HeaterLoadW
	}

	net := gen - load
	if !p.ChargeEnabled && net > 0 {
		// Charging disabled: surplus generation is shunted, the battery
		// only discharges.
		net = 0
	}

	// Percent change: net watts over dt seconds against capacity in joules.
	deltaPct := net * simDt / (m.cfg.BatteryCapacityWh * 36)
	p.SocPct = clamp(p.SocPct+deltaPct, 0, 100)

	p.VoltageV = 26 + p.SocPct*0.06
	p.CurrentA = net / p.VoltageV

	if p.SocPct <= 0 {
		p.ZeroSocSec += simDt
	} else {
		p.ZeroSocSec = 0
	}

	return m.powerCrossings(p)
}

// powerCrossings emits threshold alerts once per crossing. A crossing rearms
// only after SOC rises back above the rearm level.
func (m *Models) powerCrossings(p *PowerState) []Alert {
	var alerts []Alert

	switch {
	case p.SocPct < m.cfg.SocCriticalPct && !p.CriticalArmed:
		p.CriticalArmed = true
		alerts = append(alerts, Alert{
			Severity:  SeverityCritical,
			Code:      "soc_critical",
			Subsystem: "power",
			Message:   fmt.Sprintf("battery state of charge critical: %.1f%%", p.SocPct),
		})
	case p.SocPct > m.cfg.SocCriticalRearmPct && p.CriticalArmed:
		p.CriticalArmed = false
	}

	switch {
	case p.SocPct < m.cfg.SocWarningPct && !p.WarningArmed:
		p.WarningArmed = true
		alerts = append(alerts, Alert{
			Severity:  SeverityWarning,
			Code:      "soc_low",
			Subsystem: "power",
			Message:   fmt.Sprintf("battery state of charge low: %.1f%%", p.SocPct),
		})
	case p.SocPct > m.cfg.SocWarningRearmPct && p.WarningArmed:
		p.WarningArmed = false
	}

	return alerts
}

// SetChargeEnabled toggles battery charging.
func (m *Models) SetChargeEnabled(st *State, on bool) {
	st.Power.ChargeEnabled = on
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
