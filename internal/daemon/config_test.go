package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 7433 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 7433)
	}
	if cfg.Supervisor.IntervalSeconds != 5 {
		t.Errorf("Supervisor.IntervalSeconds = %d, want 5", cfg.Supervisor.IntervalSeconds)
	}
	if cfg.Supervisor.AbortTemp != 75 {
		t.Errorf("Supervisor.AbortTemp = %.0f, want 75", cfg.Supervisor.AbortTemp)
	}
	if cfg.Predictor.PhysicalCeiling != 120 {
		t.Errorf("Predictor.PhysicalCeiling = %.0f, want 120", cfg.Predictor.PhysicalCeiling)
	}
}

func TestSupervisorInterval(t *testing.T) {
	c := SupervisorConfig{IntervalSeconds: 10}
	if c.Interval() != 10*time.Second {
		t.Errorf("Interval = %s, want 10s", c.Interval())
	}

	c.IntervalSeconds = 0
	if c.Interval() != 5*time.Second {
		t.Errorf("zero interval should default to 5s, got %s", c.Interval())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("EMBER_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 7433 {
		t.Errorf("Port = %d, want default 7433", cfg.API.Port)
	}
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EMBER_HOME", home)

	cfg := DefaultConfig()
	cfg.Node.DeviceID = "workstation-7"
	cfg.API.Port = 9100
	cfg.Supervisor.AbortTemp = 72

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Node.DeviceID != "workstation-7" {
		t.Errorf("DeviceID = %q, want workstation-7", loaded.Node.DeviceID)
	}
	if loaded.API.Port != 9100 {
		t.Errorf("Port = %d, want 9100", loaded.API.Port)
	}
	if loaded.Supervisor.AbortTemp != 72 {
		t.Errorf("AbortTemp = %.0f, want 72", loaded.Supervisor.AbortTemp)
	}
}

func TestEmberHome_EnvOverride(t *testing.T) {
	t.Setenv("EMBER_HOME", "/tmp/ember-test-home")
	if got := EmberHome(); got != "/tmp/ember-test-home" {
		t.Errorf("EmberHome = %q, want the env override", got)
	}
}
