package domain

// ThermalProfile is a static descriptor of a device's thermal physics.
// Long-lived, rarely mutated; persisted in the profile store and keyed
// by device id.
type ThermalProfile struct {
	ID string `json:"id"`

	// ThermalMass is the heat-capacity coefficient. Low mass heats
	// fast and linearly; high mass approaches steady state slowly.
	ThermalMass float64 `json:"thermal_mass"`

	// CoolingRate is passive cooling in °C per minute once load stops.
	CoolingRate float64 `json:"cooling_rate"`

	// CoolingEffectiveness scales how well active cooling counters
	// sustained load, in (0, 1].
	CoolingEffectiveness float64 `json:"cooling_effectiveness"`

	// PowerToHeatEff is the fraction of drawn power that becomes
	// observable heat, in (0, 1].
	PowerToHeatEff float64 `json:"power_to_heat_eff"`

	// Zone ceilings in °C, ascending.
	OptimalMax float64 `json:"optimal_max"`
	SafeMax    float64 `json:"safe_max"`
	WarningMax float64 `json:"warning_max"`
	Critical   float64 `json:"critical"`
}

// Thermal mass bands selecting the trajectory model.
const (
	MassLowMax    = 3.0 // below: linear rise
	MassMediumMax = 9.0 // below: asymptotic; above: slow exponential
)

// GenericProfile is the built-in fallback used when a device has no
// stored profile. Conservative mid-range laptop numbers.
func GenericProfile() ThermalProfile {
	return ThermalProfile{
		ID:                   "generic",
		ThermalMass:          6.0,
		CoolingRate:          1.5,
		CoolingEffectiveness: 0.9,
		PowerToHeatEff:       0.3,
		OptimalMax:           50,
		SafeMax:              60,
		WarningMax:           70,
		Critical:             80,
	}
}

// Zone labels a temperature relative to the profile's ceilings.
type Zone string

const (
	ZoneOptimal  Zone = "OPTIMAL"
	ZoneSafe     Zone = "SAFE"
	ZoneWarning  Zone = "WARNING"
	ZoneCritical Zone = "CRITICAL"
)

// ZoneFor classifies a temperature against the profile's ceilings.
func (p ThermalProfile) ZoneFor(temp float64) Zone {
	switch {
	case temp <= p.OptimalMax:
		return ZoneOptimal
	case temp <= p.SafeMax:
		return ZoneSafe
	case temp <= p.WarningMax:
		return ZoneWarning
	default:
		return ZoneCritical
	}
}
