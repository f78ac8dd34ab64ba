// Package sensors provides the temperature and power capabilities the
// supervisory core consumes. These are thin capability wrappers over
// platform facilities (sysfs on Linux, helper tools elsewhere), not
// hardware drivers: each returns a reading or an error and leaves
// degradation policy to the caller.
package sensors

import (
	"sync"
	"time"

	"github.com/emberline/ember/internal/domain"
)

// CPUTemperature reads the device temperature from the platform.
type CPUTemperature struct{}

// NewCPUTemperature creates the platform temperature source.
func NewCPUTemperature() *CPUTemperature {
	return &CPUTemperature{}
}

// Read returns the CPU temperature in °C, or ErrSensorUnavailable.
func (s *CPUTemperature) Read() (float64, error) {
	t, ok := readCPUTemp()
	if !ok {
		return 0, domain.ErrSensorUnavailable
	}
	return t, nil
}

// BatteryPower reads battery charge and charging state.
type BatteryPower struct{}

// NewBatteryPower creates the platform power source.
func NewBatteryPower() *BatteryPower {
	return &BatteryPower{}
}

// Read returns the current power state, or ErrPowerUnavailable on
// machines without a readable battery.
func (p *BatteryPower) Read() (domain.PowerReading, error) {
	if !hasBattery() {
		return domain.PowerReading{}, domain.ErrPowerUnavailable
	}
	return domain.PowerReading{
		BatteryPercent: batteryPercentage(),
		DrawWatts:      batteryDrawWatts(),
		OnBattery:      !isBatteryCharging(),
	}, nil
}

// ─── Cached Source ──────────────────────────────────────────────────────────

// CachedTemperature decorates a TemperatureSource with a short-lived
// cache so closely-spaced polls from multiple components share one
// physical read. Safe for concurrent use.
type CachedTemperature struct {
	mu      sync.Mutex
	source  domain.TemperatureSource
	ttl     time.Duration
	reading float64
	readAt  time.Time
	err     error
	now     func() time.Time // injectable clock for testing
}

// NewCachedTemperature wraps source with the given cache window.
// A ttl of 0 uses the 500ms default.
func NewCachedTemperature(source domain.TemperatureSource, ttl time.Duration) *CachedTemperature {
	if ttl <= 0 {
		ttl = 500 * time.Millisecond
	}
	return &CachedTemperature{source: source, ttl: ttl, now: time.Now}
}

// Read returns the cached reading when fresh, otherwise reads through.
// Errors are cached too, so a dead sensor is not hammered.
func (c *CachedTemperature) Read() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readAt.IsZero() && c.now().Sub(c.readAt) < c.ttl {
		return c.reading, c.err
	}

	c.reading, c.err = c.source.Read()
	c.readAt = c.now()
	return c.reading, c.err
}

// ─── Test / Simulation Sources ──────────────────────────────────────────────

// Fixed is a TemperatureSource that always returns the same reading.
type Fixed struct {
	Temp float64
	Err  error
}

// Read returns the fixed reading.
func (f Fixed) Read() (float64, error) { return f.Temp, f.Err }

// Scripted replays a fixed sequence of readings, then repeats the
// last one. Used to drive supervisor trend scenarios in tests.
type Scripted struct {
	mu       sync.Mutex
	Readings []float64
	idx      int
}

// Read returns the next scripted reading.
func (s *Scripted) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Readings) == 0 {
		return 0, domain.ErrSensorUnavailable
	}
	r := s.Readings[s.idx]
	if s.idx < len(s.Readings)-1 {
		s.idx++
	}
	return r, nil
}

// FixedPower is a PowerStatus that always returns the same reading.
type FixedPower struct {
	Reading domain.PowerReading
	Err     error
}

// Read returns the fixed power reading.
func (f FixedPower) Read() (domain.PowerReading, error) { return f.Reading, f.Err }
