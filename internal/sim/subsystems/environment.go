package subsystems

import (
	"math"

	"github.com/orbitalops/satops-backend/internal/sim/orbit"
)

// IlluminationFunc decides whether the satellite is in sunlight. Pluggable
// so tests can force eclipse conditions.
type IlluminationFunc func(el orbit.Elements) bool

// Illuminated is the default eclipse predicate: a beta-angle approximation
// with the shadow arc centred opposite the sun reference direction (true
// anomaly pi). The shadow half-width follows from the Earth angular radius
// at orbit altitude.
func Illuminated(el orbit.Elements) bool {
	r := el.SemiMajorAxisKm
	if r <= orbit.EarthRadiusKm {
		return false
	}
	halfWidth := math.Asin(orbit.EarthRadiusKm / r)

	offset := math.Mod(el.TrueAnomalyRad-math.Pi, 2*math.Pi)
	if offset > math.Pi {
		offset -= 2 * math.Pi
	} else if offset < -math.Pi {
		offset += 2 * math.Pi
	}
	return math.Abs(offset) > halfWidth
}
