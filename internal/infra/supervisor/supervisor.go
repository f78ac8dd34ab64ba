// Package supervisor implements the in-flight health-check loop that
// watches running tasks for thermal and power emergencies.
//
// One lightweight ticker per monitored task, held in an explicit
// registry keyed by task id. Each tick reads the shared temperature
// source, updates the task's trace, and evaluates three triggers:
//
//   - threshold: current temperature at or past the abort ceiling
//   - trend:     close to the ceiling and climbing faster than
//     1°/tick over the recent window — proactive, it compensates
//     for sensor lag and thermal overshoot
//   - power:     battery below the floor, or sustained draw above
//     the alert ceiling (when power monitoring is enabled)
//
// An abort is idempotent and strictly ordered: emergency checkpoint,
// suspend callback, one episode record, loop shutdown, then a
// device-sleep request for thermal reasons.
package supervisor

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/checkpoint"
	"github.com/emberline/ember/internal/infra/metrics"
	"github.com/emberline/ember/internal/infra/sqlite"
)

// Config holds supervisor thresholds and cadence.
type Config struct {
	Interval   time.Duration // health-check cadence (default 5s)
	AlertTemp  float64       // raise alert, increase checkpoint cadence (default 68)
	AbortTemp  float64       // abort immediately (default 75)
	TrendTicks int           // readings in the slope window (default 6)
	TrendSlope float64       // °C per tick that trips the trend trigger (default 1.0)
	TrendBand  float64       // °C below AbortTemp where the trend trigger arms (default 5)

	PowerEnabled bool
	BatteryFloor float64 // percent; abort below (default 15)
	DrawCeiling  float64 // watts; abort when exceeded for DrawTicks ticks (0 disables)
	DrawTicks    int     // consecutive ticks of excess draw (default 6)
}

// DefaultConfig returns production supervisor defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Second,
		AlertTemp:    68,
		AbortTemp:    75,
		TrendTicks:   6,
		TrendSlope:   1.0,
		TrendBand:    5,
		PowerEnabled: false,
		BatteryFloor: 15,
		DrawCeiling:  0,
		DrawTicks:    6,
	}
}

// State is a monitored task's supervision state.
type State string

const (
	StateRunning     State = "RUNNING"
	StateAlertRaised State = "ALERT_RAISED"
	StateAborted     State = "ABORTED"
)

// monitor is the per-task registry entry: handle, loop control, and
// the caller-supplied suspend capability.
type monitor struct {
	mu        sync.Mutex
	task      domain.Task
	suspend   domain.Suspendable
	state     State
	baseline  float64
	peak      float64
	trace     []float64 // recent readings, trend window only
	alerts    int
	drawTicks int
	aborted   bool
	startedAt time.Time
	quit      chan struct{}
	stopped   bool
	busy      bool // skip-if-busy tick guard
}

// Stats is a read-only snapshot of one monitored task.
type Stats struct {
	TaskID     string  `json:"task_id"`
	State      State   `json:"state"`
	Baseline   float64 `json:"baseline"`
	PeakTemp   float64 `json:"peak_temp"`
	AlertCount int     `json:"alert_count"`
	Elapsed    float64 `json:"elapsed_seconds"`
	Aborted    bool    `json:"aborted"`
}

// Supervisor runs the per-task monitoring loops.
type Supervisor struct {
	mu          sync.Mutex
	config      Config
	temps       domain.TemperatureSource
	power       domain.PowerStatus
	checkpoints *checkpoint.Store
	db          *sqlite.DB
	sleeper     domain.DeviceSleeper
	monitors    map[string]*monitor
	now         func() time.Time
}

// New creates a supervisor. power may be nil when power monitoring is
// disabled.
func New(cfg Config, temps domain.TemperatureSource, power domain.PowerStatus,
	checkpoints *checkpoint.Store, db *sqlite.DB, sleeper domain.DeviceSleeper) *Supervisor {
	return &Supervisor{
		config:      cfg,
		temps:       temps,
		power:       power,
		checkpoints: checkpoints,
		db:          db,
		sleeper:     sleeper,
		monitors:    make(map[string]*monitor),
		now:         time.Now,
	}
}

// Start begins supervising a task. The suspend callback must return
// promptly; the abort sequence blocks on it. Returns
// ErrAlreadyMonitored if a loop is already running for the task.
func (s *Supervisor) Start(taskID string, task domain.Task, suspend domain.Suspendable) error {
	s.mu.Lock()
	if m, ok := s.monitors[taskID]; ok && !m.stopped {
		s.mu.Unlock()
		return domain.ErrAlreadyMonitored
	}

	m := &monitor{
		task:      task,
		suspend:   suspend,
		state:     StateRunning,
		startedAt: s.now(),
		quit:      make(chan struct{}),
	}
	if baseline, err := s.temps.Read(); err == nil {
		m.baseline = baseline
		m.peak = baseline
	} else {
		log.Printf("[supervisor] no baseline reading for task %s: %v", taskID, err)
	}
	s.monitors[taskID] = m
	s.mu.Unlock()

	metrics.MonitorsActive.Inc()
	log.Printf("[supervisor] monitoring task %s (baseline %.1f°C, interval %s)",
		taskID, m.baseline, s.config.Interval)

	go s.loop(taskID, m)
	return nil
}

// loop is the fixed-interval health-check loop for one task.
func (s *Supervisor) loop(taskID string, m *monitor) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			s.tick(taskID, m)
		}
	}
}

// tick runs one health check. Guarded against overlap: if the previous
// tick is still running (slow sensor, blocked store) this one is
// skipped rather than stacked.
func (s *Supervisor) tick(taskID string, m *monitor) {
	m.mu.Lock()
	if m.busy || m.aborted {
		m.mu.Unlock()
		return
	}
	m.busy = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	temp, err := s.temps.Read()
	if err != nil {
		// Missing telemetry never aborts on its own.
		metrics.SensorFailures.Inc()
		log.Printf("[supervisor] task %s: sensor read failed: %v", taskID, err)
		return
	}

	m.mu.Lock()
	if temp > m.peak {
		m.peak = temp
	}
	m.trace = append(m.trace, temp)
	if len(m.trace) > s.config.TrendTicks {
		m.trace = m.trace[len(m.trace)-s.config.TrendTicks:]
	}
	slope, slopeOK := trendSlope(m.trace)
	m.mu.Unlock()

	if err := s.db.AppendTrace(taskID, temp, s.now()); err != nil {
		log.Printf("[supervisor] task %s: trace append failed: %v", taskID, err)
	}

	// Threshold trigger: at or past the ceiling.
	if temp >= s.config.AbortTemp {
		s.Abort(taskID, domain.AbortThermalThreshold, temp)
		return
	}

	// Trend trigger: near the ceiling and climbing fast.
	if temp >= s.config.AbortTemp-s.config.TrendBand && slopeOK && slope > s.config.TrendSlope {
		log.Printf("[supervisor] task %s: trend trigger at %.1f°C (%.2f°/tick)", taskID, temp, slope)
		s.Abort(taskID, domain.AbortThermalTrend, temp)
		return
	}

	// Power triggers.
	if s.config.PowerEnabled && s.power != nil {
		if reading, err := s.power.Read(); err == nil {
			if reading.OnBattery && reading.BatteryPercent < s.config.BatteryFloor {
				s.Abort(taskID, domain.AbortBatteryLow, temp)
				return
			}
			m.mu.Lock()
			if s.config.DrawCeiling > 0 && reading.DrawWatts > s.config.DrawCeiling {
				m.drawTicks++
			} else {
				m.drawTicks = 0
			}
			excess := s.config.DrawCeiling > 0 && m.drawTicks >= s.config.DrawTicks
			m.mu.Unlock()
			if excess {
				s.Abort(taskID, domain.AbortPowerDraw, temp)
				return
			}
		}
	}

	// Alert zone: raise, log, leave abort to the future. The runner is
	// expected to checkpoint more often while the alert stands.
	if temp >= s.config.AlertTemp {
		m.mu.Lock()
		m.alerts++
		first := m.state == StateRunning
		m.state = StateAlertRaised
		m.mu.Unlock()
		metrics.AlertsRaised.Inc()
		if first {
			log.Printf("[supervisor] task %s: alert raised at %.1f°C", taskID, temp)
		}
	}
}

// trendSlope returns °C per tick over the window. Needs at least
// three readings to call it a trend.
func trendSlope(trace []float64) (float64, bool) {
	if len(trace) < 3 {
		return 0, false
	}
	return (trace[len(trace)-1] - trace[0]) / float64(len(trace)-1), true
}

// Abort performs the emergency abort sequence for a monitored task.
// Idempotent: a second call on an already-aborted task is a no-op.
// Sequence: emergency checkpoint → suspend callback → one episode
// record → stop loop → device-sleep request for thermal reasons.
func (s *Supervisor) Abort(taskID string, reason domain.AbortReason, temp float64) {
	s.mu.Lock()
	m, ok := s.monitors[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}

	m.mu.Lock()
	if m.aborted {
		m.mu.Unlock()
		return
	}
	m.aborted = true
	m.state = StateAborted
	peak := m.peak
	alerts := m.alerts
	elapsed := s.now().Sub(m.startedAt).Seconds()
	m.mu.Unlock()

	log.Printf("[supervisor] ABORT task %s: %s at %.1f°C (peak %.1f°C)", taskID, reason, temp, peak)

	// 1. Checkpoint first — thermal safety still wins if this fails.
	if _, err := s.checkpoints.EmergencySave(taskID, string(reason)); err != nil {
		log.Printf("[supervisor] task %s: emergency checkpoint failed: %v — continuing abort", taskID, err)
	}

	// 2. Suspend the runner. Failures are logged, never fatal.
	if m.suspend != nil {
		if err := m.suspend.Suspend(reason); err != nil {
			log.Printf("[supervisor] task %s: suspend callback failed: %v", taskID, err)
		}
	}

	// 3. Exactly one episode per monitoring session.
	ep := domain.AbortEpisode{
		ID:            uuid.NewString(),
		TaskID:        taskID,
		Reason:        reason,
		TempAtTrigger: temp,
		PeakTemp:      peak,
		Elapsed:       elapsed,
		AlertCount:    alerts,
		CreatedAt:     s.now(),
	}
	if err := s.db.InsertEpisode(ep); err != nil {
		log.Printf("[supervisor] task %s: episode record failed: %v", taskID, err)
	}
	metrics.Aborts.WithLabelValues(string(reason)).Inc()

	// 4. Stop the loop. Stats stay readable until cleared.
	s.halt(m)

	// 5. Thermal emergencies put the whole device to sleep.
	if reason.IsThermal() && s.sleeper != nil {
		if err := s.sleeper.Suspend("thermal emergency: task " + taskID); err != nil {
			log.Printf("[supervisor] device sleep request failed: %v", err)
		}
	}
}

// Stop halts a task's monitoring loop without aborting — the normal
// completion path. No-op if the task is not monitored. Stats remain
// readable until Clear.
func (s *Supervisor) Stop(taskID string) {
	s.mu.Lock()
	m, ok := s.monitors[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.halt(m)
}

// halt closes the loop channel exactly once.
func (s *Supervisor) halt(m *monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	close(m.quit)
	metrics.MonitorsActive.Dec()
}

// Clear removes a task's registry entry and its stats. Explicit
// disposal keeps the registry bounded.
func (s *Supervisor) Clear(taskID string) {
	s.mu.Lock()
	m, ok := s.monitors[taskID]
	if ok {
		delete(s.monitors, taskID)
	}
	s.mu.Unlock()
	if ok {
		s.halt(m)
	}
}

// Stats returns the read-only snapshot for a monitored task.
func (s *Supervisor) Stats(taskID string) (Stats, error) {
	s.mu.Lock()
	m, ok := s.monitors[taskID]
	s.mu.Unlock()
	if !ok {
		return Stats{}, domain.ErrNotMonitored
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TaskID:     taskID,
		State:      m.state,
		Baseline:   m.baseline,
		PeakTemp:   m.peak,
		AlertCount: m.alerts,
		Elapsed:    s.now().Sub(m.startedAt).Seconds(),
		Aborted:    m.aborted,
	}, nil
}

// Monitored returns the ids of all registered tasks.
func (s *Supervisor) Monitored() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.monitors))
	for id := range s.monitors {
		ids = append(ids, id)
	}
	return ids
}
