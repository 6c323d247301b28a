package subsystems

import (
	"fmt"
	"math"
)

// Pointing modes accepted by POINT_TO_TARGET.
const (
	PointingModeNadir   = "nadir"
	PointingModeSun     = "sun"
	PointingModeTarget  = "target"
	PointingModeStation = "ground_station"
)

// AttitudeState is the attitude-control subsystem state: Euler angles, body
// rates and reaction-wheel speeds.
type AttitudeState struct {
	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	YawDeg   float64 `json:"yaw_deg"`

	RollRateDps  float64 `json:"roll_rate_dps"`
	PitchRateDps float64 `json:"pitch_rate_dps"`
	YawRateDps   float64 `json:"yaw_rate_dps"`

	WheelRPM []float64 `json:"wheel_rpm"`

	TargetMode      string  `json:"target_mode"`
	TargetRollDeg   float64 `json:"target_roll_deg"`
	TargetPitchDeg  float64 `json:"target_pitch_deg"`
	TargetYawDeg    float64 `json:"target_yaw_deg"`
	PointingErrDeg  float64 `json:"pointing_error_deg"`
	SaturationArmed bool    `json:"saturation_armed"`
}

func (m *Models) tickAttitude(st *State, simDt float64) []Alert {
	a := &st.Attitude

	// Body follows the commanded target with a first-order response.
	k := 1 - math.Exp(-simDt/m.cfg.PointingTauSec)
	a.RollDeg += (a.TargetRollDeg - a.RollDeg) * k
	a.PitchDeg += (a.TargetPitchDeg - a.PitchDeg) * k
	a.YawDeg += (a.TargetYawDeg - a.YawDeg) * k

	// With no torque command active, body rates decay toward zero.
	decay := math.Exp(-simDt / m.cfg.DampingTauSec)
	a.RollRateDps *= decay
	a.PitchRateDps *= decay
	a.YawRateDps *= decay
	for i := range a.WheelRPM {
		a.WheelRPM[i] *= decay
	}

	a.PointingErrDeg = angularError(a)

	var alerts []Alert
	for i, rpm := range a.WheelRPM {
		if math.Abs(rpm) > m.cfg.WheelSaturationRPM {
			if !a.SaturationArmed {
				a.SaturationArmed = true
				alerts = append(alerts, Alert{
					Severity:  SeverityWarning,
					Code:      "wheel_saturation",
					Subsystem: "attitude",
					Message:   fmt.Sprintf("reaction wheel %d saturated at %.0f rpm", i, rpm),
				})
			}
			return alerts
		}
	}
	a.SaturationArmed = false
	return alerts
}

// PointTo sets a new pointing target. Wheel speeds jump in proportion to the
// commanded slew and then decay as the body settles.
func (m *Models) PointTo(st *State, mode string, rollDeg, pitchDeg, yawDeg float64) {
	a := &st.Attitude
	a.TargetMode = mode
	a.TargetRollDeg = rollDeg
	a.TargetPitchDeg = pitchDeg
	a.TargetYawDeg = yawDeg

	slew := [3]float64{
		a.TargetRollDeg - a.RollDeg,
		a.TargetPitchDeg - a.PitchDeg,
		a.TargetYawDeg - a.YawDeg,
	}
	for i := range a.WheelRPM {
		if i < 3 {
			a.WheelRPM[i] += slew[i] * 25
		}
	}
	a.RollRateDps = slew[0] / m.cfg.PointingTauSec
	a.PitchRateDps = slew[1] / m.cfg.PointingTauSec
	a.YawRateDps = slew[2] / m.cfg.PointingTauSec
	a.PointingErrDeg = angularError(a)
}

func angularError(a *AttitudeState) float64 {
	dr := a.TargetRollDeg - a.RollDeg
	dp := a.TargetPitchDeg - a.PitchDeg
	dy := a.TargetYawDeg - a.YawDeg
	return math.Sqrt(dr*dr + dp*dp + dy*dy)
}
