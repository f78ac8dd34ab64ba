// Package thermal implements the predictive heat model used for
// pre-flight checks. Given a pending task, a device profile, and the
// current temperature, it forecasts the peak temperature the run would
// reach and rules Proceed, Segment, Wait, or Reject.
//
// Trajectory selection by thermal mass:
//   - low mass:    linear rise, capped at 30 minutes of accumulation
//   - medium mass: asymptotic approach to steady state, peak ≈ 60% in
//   - high mass:   slower exponential approach, peak ≈ 70% in
//
// The multipliers and peak fractions are heuristics calibrated against
// nothing better than field observation; they live in PredictorConfig
// so deployments can recalibrate against real device measurements.
package thermal

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/metrics"
)

// Config holds the predictor's tunable heuristics.
type Config struct {
	CacheTTL            time.Duration // forecast reuse window (default 5m)
	PhysicalCeiling     float64       // hard cap on any predicted peak (default 120)
	NominalTemp         float64       // assumed start temp when the sensor is down (default 45)
	LinearCapMinutes    float64       // low-mass rise accumulation cap (default 30)
	AsymptoticPeakFrac  float64       // medium-mass time-to-peak fraction (default 0.60)
	ExponentialPeakFrac float64       // high-mass time-to-peak fraction (default 0.70)
	ExponentialApproach float64       // high-mass fraction of steady-state rise reached (default 0.80)
	SegmentCooldown     time.Duration // pause between segments (default 5m)

	// CategoryMultipliers scales declared power by workload character.
	// Heavy categories run 1.5–1.8×, light ones near 0.3×.
	CategoryMultipliers map[domain.TaskCategory]float64
	DefaultMultiplier   float64
}

// DefaultConfig returns production predictor defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:            5 * time.Minute,
		PhysicalCeiling:     120,
		NominalTemp:         45,
		LinearCapMinutes:    30,
		AsymptoticPeakFrac:  0.60,
		ExponentialPeakFrac: 0.70,
		ExponentialApproach: 0.80,
		SegmentCooldown:     5 * time.Minute,
		CategoryMultipliers: map[domain.TaskCategory]float64{
			domain.CategoryMLTraining:    1.8,
			domain.CategoryVideoEncoding: 1.6,
			domain.CategoryCompile:       1.5,
			domain.CategoryIndexing:      0.8,
			domain.CategoryBackup:        0.4,
			domain.CategoryDownload:      0.3,
		},
		DefaultMultiplier: 1.0,
	}
}

// Predictor forecasts thermal outcomes. Safe for concurrent use.
type Predictor struct {
	mu     sync.Mutex
	config Config
	temps  domain.TemperatureSource
	cache  map[string]cachedForecast
	now    func() time.Time
}

type cachedForecast struct {
	forecast domain.Forecast
	at       time.Time
}

// NewPredictor creates a predictor reading start temperatures from temps.
func NewPredictor(cfg Config, temps domain.TemperatureSource) *Predictor {
	return &Predictor{
		config: cfg,
		temps:  temps,
		cache:  make(map[string]cachedForecast),
		now:    time.Now,
	}
}

// Forecast returns the thermal forecast for running task on profile,
// starting from the current sensor reading. Forecasts are cached per
// task for the configured TTL. When the sensor is unavailable the
// forecast is computed from the nominal start temperature, rules
// Proceed, and is flagged Degraded — missing telemetry never blocks.
func (p *Predictor) Forecast(task domain.Task, profile domain.ThermalProfile) domain.Forecast {
	p.mu.Lock()
	if c, ok := p.cache[task.ID]; ok && p.now().Sub(c.at) < p.config.CacheTTL {
		p.mu.Unlock()
		return c.forecast
	}
	p.mu.Unlock()

	current, err := p.temps.Read()
	degraded := err != nil
	if degraded {
		metrics.SensorFailures.Inc()
		log.Printf("[thermal] sensor unavailable (%v): degraded forecast for task %s", err, task.ID)
		current = p.config.NominalTemp
	}

	f := p.ForecastFrom(task, profile, current)
	if degraded {
		// No trustworthy physics without a reading. Let it run and
		// rely on the supervisor to catch real trouble.
		f.Verdict = domain.VerdictProceed
		f.Degraded = true
		f.WaitMinutes = 0
		f.Segments = nil
	}

	p.mu.Lock()
	p.cache[task.ID] = cachedForecast{forecast: f, at: p.now()}
	p.mu.Unlock()

	metrics.ForecastPeak.Observe(f.PeakTemp)
	return f
}

// ForecastFrom computes a forecast from an explicit start temperature,
// bypassing sensor and cache. The model itself.
func (p *Predictor) ForecastFrom(task domain.Task, profile domain.ThermalProfile, start float64) domain.Forecast {
	heatRate := p.heatRate(task, profile)
	durMin := task.Duration.Minutes()

	var (
		rise       float64
		timeToPeak time.Duration
		trajectory domain.Trajectory
	)
	switch {
	case profile.ThermalMass < domain.MassLowMax:
		// Little mass to soak heat: temperature tracks load directly.
		capped := math.Min(durMin, p.config.LinearCapMinutes)
		rise = heatRate * capped
		timeToPeak = time.Duration(capped * float64(time.Minute))
		trajectory = domain.TrajectoryLinear
	case profile.ThermalMass < domain.MassMediumMax:
		rise = steadyRise(heatRate, profile)
		timeToPeak = time.Duration(p.config.AsymptoticPeakFrac * float64(task.Duration))
		trajectory = domain.TrajectoryAsymptotic
	default:
		rise = steadyRise(heatRate, profile) * p.config.ExponentialApproach
		timeToPeak = time.Duration(p.config.ExponentialPeakFrac * float64(task.Duration))
		trajectory = domain.TrajectoryExponential
	}

	peak := math.Min(start+rise, p.config.PhysicalCeiling)

	f := domain.Forecast{
		TaskID:     task.ID,
		PeakTemp:   peak,
		TimeToPeak: timeToPeak,
		Trajectory: trajectory,
		Zone:       profile.ZoneFor(peak),
		ComputedAt: p.now(),
	}

	// Verdict, strictest first.
	switch {
	case peak > profile.Critical:
		f.Verdict = domain.VerdictReject
	case peak > profile.WarningMax && !task.Segmentable:
		f.Verdict = domain.VerdictWait
		f.WaitMinutes = int(math.Ceil((peak - profile.SafeMax) / profile.CoolingRate))
	case peak > profile.WarningMax:
		f.Verdict = domain.VerdictSegment
		f.Segments = p.segmentPlan(task, profile, peak)
	default:
		f.Verdict = domain.VerdictProceed
	}
	return f
}

// Invalidate drops the cached forecast for a task. Called when
// conditions change materially (abort, new reading regime, profile
// update).
func (p *Predictor) Invalidate(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, taskID)
}

// InvalidateAll drops every cached forecast.
func (p *Predictor) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]cachedForecast)
}

// heatRate estimates °C added per minute of sustained load.
func (p *Predictor) heatRate(task domain.Task, profile domain.ThermalProfile) float64 {
	mult, ok := p.config.CategoryMultipliers[task.Category]
	if !ok {
		mult = p.config.DefaultMultiplier
	}
	mass := profile.ThermalMass
	if mass <= 0 {
		mass = 1
	}
	return task.PowerDraw * mult * profile.PowerToHeatEff / mass
}

// steadyRise is the equilibrium rise where active cooling balances
// heat input.
func steadyRise(heatRate float64, profile domain.ThermalProfile) float64 {
	eff := profile.CoolingEffectiveness
	if eff <= 0 {
		eff = 0.1
	}
	return heatRate / eff
}

// segmentPlan splits the task into equal sub-runs with fixed cooldowns
// in between (none after the last). Count grows quadratically with the
// predicted overshoot past the safe ceiling.
func (p *Predictor) segmentPlan(task domain.Task, profile domain.ThermalProfile, peak float64) []domain.Segment {
	over := (peak - profile.SafeMax) / 10
	count := int(math.Ceil(over * over))
	if count < 2 {
		count = 2
	}

	segDur := task.Duration / time.Duration(count)
	segments := make([]domain.Segment, count)
	for i := 0; i < count; i++ {
		seg := domain.Segment{
			Start:           time.Duration(i) * segDur,
			End:             time.Duration(i+1) * segDur,
			NeedsCheckpoint: i < count-1,
		}
		if i < count-1 {
			seg.CooldownAfter = p.config.SegmentCooldown
		}
		segments[i] = seg
	}
	// Absorb rounding in the final segment.
	segments[count-1].End = task.Duration
	return segments
}
