package sqlite

import (
	"database/sql"

	"github.com/emberline/ember/internal/domain"
)

// ─── Device Thermal Profiles ────────────────────────────────────────────────

// GetProfile retrieves a device's thermal profile, falling back to the
// built-in generic profile when the device is unknown. Missing profiles
// never reject a task.
func (d *DB) GetProfile(deviceID string) (domain.ThermalProfile, error) {
	row := d.db.QueryRow(
		`SELECT id, thermal_mass, cooling_rate, cooling_eff, power_eff,
		        optimal_max, safe_max, warning_max, critical
		 FROM profiles WHERE id = ?`, deviceID,
	)

	var p domain.ThermalProfile
	err := row.Scan(&p.ID, &p.ThermalMass, &p.CoolingRate, &p.CoolingEffectiveness,
		&p.PowerToHeatEff, &p.OptimalMax, &p.SafeMax, &p.WarningMax, &p.Critical)
	if err == sql.ErrNoRows {
		return domain.GenericProfile(), nil
	}
	if err != nil {
		return domain.GenericProfile(), err
	}
	return p, nil
}

// Profiles adapts the DB to domain.ProfileStore.
type Profiles struct {
	DB *DB
}

// Get implements domain.ProfileStore.
func (p Profiles) Get(deviceID string) (domain.ThermalProfile, error) {
	return p.DB.GetProfile(deviceID)
}

// Put implements domain.ProfileStore.
func (p Profiles) Put(profile domain.ThermalProfile) error {
	return p.DB.PutProfile(profile)
}

// PutProfile inserts or updates a device's thermal profile.
func (d *DB) PutProfile(p domain.ThermalProfile) error {
	_, err := d.db.Exec(
		`INSERT INTO profiles (id, thermal_mass, cooling_rate, cooling_eff, power_eff,
		                       optimal_max, safe_max, warning_max, critical)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			thermal_mass=excluded.thermal_mass,
			cooling_rate=excluded.cooling_rate,
			cooling_eff=excluded.cooling_eff,
			power_eff=excluded.power_eff,
			optimal_max=excluded.optimal_max,
			safe_max=excluded.safe_max,
			warning_max=excluded.warning_max,
			critical=excluded.critical`,
		p.ID, p.ThermalMass, p.CoolingRate, p.CoolingEffectiveness, p.PowerToHeatEff,
		p.OptimalMax, p.SafeMax, p.WarningMax, p.Critical,
	)
	return err
}
