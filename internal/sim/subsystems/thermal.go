package subsystems

import (
	"fmt"
	"math"
)

// ThermalState is the single-node bulk thermal model.
type ThermalState struct {
	TempC        float64 `json:"temp_c"`
	HeaterOn     bool    `json:"heater_on"`
	OutOfBandSec float64 `json:"out_of_band_sec"`
	WarningArmed bool    `json:"warning_armed"`
}

func (m *Models) tickThermal(st *State, simDt float64, env Environment) []Alert {
	th := &st.Thermal

	ambient := m.cfg.AmbientEclipseC
	if env.Illuminated {
		ambient = m.cfg.AmbientSunC
	}
	if th.HeaterOn {
		ambient += m.cfg.HeaterOffsetC
	}

	// First-order lag toward the ambient target.
	th.TempC += (ambient - th.TempC) * (1 - math.Exp(-simDt/m.cfg.ThermalTauSec))

	var alerts []Alert
	if th.TempC < m.cfg.ThermalNominalC[0] || th.TempC > m.cfg.ThermalNominalC[1] {
		th.OutOfBandSec += simDt
		if th.OutOfBandSec > m.cfg.ThermalDwellSec && !th.WarningArmed {
			th.WarningArmed = true
			alerts = append(alerts, Alert{
				Severity:  SeverityWarning,
				Code:      "thermal_excursion",
				Subsystem: "thermal",
				Message:   fmt.Sprintf("bulk temperature %.1fC outside nominal band", th.TempC),
			})
		}
	} else {
		th.OutOfBandSec = 0
		th.WarningArmed = false
	}

	return alerts
}

// SetHeater switches the survival heater.
func (m *Models) SetHeater(st *State, on bool) {
	st.Thermal.HeaterOn = on
}
