package subsystems

import (
	"errors"

	"github.com/orbitalops/satops-backend/internal/sim/orbit"
)

// Link quality tiers by elevation.
const (
	LinkGood     = "good"
	LinkMarginal = "marginal"
	LinkPoor     = "poor"
	LinkNone     = "none"
)

// ErrAntennaStowed rejects downlink scheduling before antenna deployment.
var ErrAntennaStowed = errors.New("high-gain antenna not deployed")

// StationLink is the per-station view of the communications subsystem.
type StationLink struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ElevationDeg float64 `json:"elevation_deg"`
	Quality      string  `json:"quality"`
	SignalDbm    float64 `json:"signal_dbm"`
}

// CommsState is the communications subsystem state.
type CommsState struct {
	AntennaDeployed bool          `json:"antenna_deployed"`
	Stations        []StationLink `json:"stations"`
	ActiveStation   string        `json:"active_station"`
	DownlinksQueued int           `json:"downlinks_queued"`
}

// tickComms recomputes elevation and link quality for every active station
// and selects the highest station above the horizon as active.
func (m *Models) tickComms(st *State, env Environment) {
	c := &st.Comms
	c.Stations = c.Stations[:0]

	bestElev := 0.0
	c.ActiveStation = ""

	for _, gs := range env.Stations {
		if !gs.Active {
			continue
		}
		stationECEF := orbit.GeodeticToECEF(gs.LatitudeDeg, gs.LongitudeDeg, 0)
		elev := orbit.ElevationDegrees(stationECEF, env.SatECEF)

		link := StationLink{
			Name:         gs.Name,
			Type:         gs.Type,
			ElevationDeg: elev,
			Quality:      qualityForElevation(elev),
			SignalDbm:    m.signalStrength(st, elev),
		}
		c.Stations = append(c.Stations, link)

		if elev > 0 && elev > bestElev {
			bestElev = elev
			c.ActiveStation = gs.Name
		}
	}
}

// QualityForElevation maps elevation to the link tier. Any elevation at or
// below the horizon is no link.
func qualityForElevation(elevDeg float64) string {
	switch {
	case elevDeg >= 30:
		return LinkGood
	case elevDeg >= 10:
		return LinkMarginal
	case elevDeg > 0:
		return LinkPoor
	default:
		return LinkNone
	}
}

func (m *Models) signalStrength(st *State, elevDeg float64) float64 {
	if elevDeg <= 0 {
		return -120
	}
	signal := -60 - (90-elevDeg)*0.45
	if !st.Comms.AntennaDeployed {
		signal -= 20
	}
	return signal
}

// DeployAntenna deploys the high-gain antenna. Returns false if it was
// already deployed.
func (m *Models) DeployAntenna(st *State) bool {
	if st.Comms.AntennaDeployed {
		return false
	}
	st.Comms.AntennaDeployed = true
	return true
}

// ScheduleDownlink queues a downlink pass. Requires the antenna deployed.
func (m *Models) ScheduleDownlink(st *State) error {
	if !st.Comms.AntennaDeployed {
		return ErrAntennaStowed
	}
	st.Comms.DownlinksQueued++
	return nil
}
