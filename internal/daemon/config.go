// Package daemon manages the ember daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Node       NodeConfig       `toml:"node"`
	API        APIConfig        `toml:"api"`
	Predictor  PredictorConfig  `toml:"predictor"`
	Supervisor SupervisorConfig `toml:"supervisor"`
	Sensors    SensorsConfig    `toml:"sensors"`
	Policy     PolicyConfig     `toml:"policy"`
	Energy     EnergyConfig     `toml:"energy"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// NodeConfig identifies this device.
type NodeConfig struct {
	DeviceID string `toml:"device_id"`
	DataDir  string `toml:"data_dir"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PredictorConfig holds the forecast heuristics. The peak fractions
// and segment formula are heuristic constants pending empirical
// recalibration against real device measurements — hence configurable.
type PredictorConfig struct {
	CacheTTLMinutes     int     `toml:"cache_ttl_minutes"`
	PhysicalCeiling     float64 `toml:"physical_ceiling"`
	NominalTemp         float64 `toml:"nominal_temp"`
	AsymptoticPeakFrac  float64 `toml:"asymptotic_peak_frac"`
	ExponentialPeakFrac float64 `toml:"exponential_peak_frac"`
	SegmentCooldownMin  int     `toml:"segment_cooldown_minutes"`
}

// SupervisorConfig controls the in-flight monitoring loop.
type SupervisorConfig struct {
	IntervalSeconds int     `toml:"interval_seconds"`
	AlertTemp       float64 `toml:"alert_temp"`
	AbortTemp       float64 `toml:"abort_temp"`
	PowerEnabled    bool    `toml:"power_enabled"`
	BatteryFloor    float64 `toml:"battery_floor"`
	DrawCeiling     float64 `toml:"draw_ceiling_watts"`
}

// SensorsConfig controls sensor plumbing.
type SensorsConfig struct {
	CacheMillis int `toml:"cache_millis"`
}

// PolicyConfig sets the built-in delegation-hours window.
type PolicyConfig struct {
	StartHour int `toml:"start_hour"`
	EndHour   int `toml:"end_hour"`
}

// EnergyConfig sets the built-in clean-energy window.
type EnergyConfig struct {
	CleanStartHour int `toml:"clean_start_hour"`
	CleanEndHour   int `toml:"clean_end_hour"`
}

// TelemetryConfig controls observability.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			DeviceID: "generic",
			DataDir:  emberHome(),
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7433,
		},
		Predictor: PredictorConfig{
			CacheTTLMinutes:     5,
			PhysicalCeiling:     120,
			NominalTemp:         45,
			AsymptoticPeakFrac:  0.60,
			ExponentialPeakFrac: 0.70,
			SegmentCooldownMin:  5,
		},
		Supervisor: SupervisorConfig{
			IntervalSeconds: 5,
			AlertTemp:       68,
			AbortTemp:       75,
			PowerEnabled:    false,
			BatteryFloor:    15,
			DrawCeiling:     0,
		},
		Sensors: SensorsConfig{
			CacheMillis: 500,
		},
		Policy: PolicyConfig{
			StartHour: 0,
			EndHour:   0, // identical start/end: always allowed
		},
		Energy: EnergyConfig{
			CleanStartHour: 0,
			CleanEndHour:   0,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// Interval returns the supervisor tick interval.
func (c SupervisorConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LoadConfig reads config from ~/.ember/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(emberHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Node.DataDir == "" {
		cfg.Node.DataDir = emberHome()
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.ember/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(emberHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// emberHome returns the ember data directory.
func emberHome() string {
	if env := os.Getenv("EMBER_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ember")
}

// EmberHome is exported for use by other packages.
func EmberHome() string {
	return emberHome()
}
