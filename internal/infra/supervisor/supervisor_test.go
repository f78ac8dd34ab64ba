package supervisor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/checkpoint"
	"github.com/emberline/ember/internal/infra/sensors"
	"github.com/emberline/ember/internal/infra/sqlite"
)

// newTestSupervisor builds a supervisor over a temp database with a
// very long tick interval; tests drive ticks by hand.
func newTestSupervisor(t *testing.T, temps domain.TemperatureSource, power domain.PowerStatus) (*Supervisor, *sqlite.DB, *sensors.LoggingSleeper) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := DefaultConfig()
	cfg.Interval = time.Hour // never fires in tests

	sleeper := sensors.NewLoggingSleeper()
	s := New(cfg, temps, power, checkpoint.NewStore(db), db, sleeper)
	return s, db, sleeper
}

// startMonitor registers a task and returns its registry entry so
// tests can call tick directly.
func startMonitor(t *testing.T, s *Supervisor, taskID string, suspend domain.Suspendable) *monitor {
	t.Helper()
	task := domain.Task{ID: taskID, Category: domain.CategoryVideoEncoding, PowerDraw: 400}
	if err := s.Start(taskID, task, suspend); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.mu.Lock()
	m := s.monitors[taskID]
	s.mu.Unlock()
	return m
}

// ─── Trigger Tests ──────────────────────────────────────────────────────────

func TestTick_ThresholdTrigger(t *testing.T) {
	s, db, _ := newTestSupervisor(t, sensors.Fixed{Temp: 80}, nil)
	m := startMonitor(t, s, "hot-1", nil)

	s.tick("hot-1", m)

	episodes, err := db.ListEpisodes(10)
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("episodes = %d, want 1", len(episodes))
	}
	if episodes[0].Reason != domain.AbortThermalThreshold {
		t.Errorf("reason = %s, want thermal_threshold", episodes[0].Reason)
	}
	if episodes[0].TempAtTrigger != 80 {
		t.Errorf("trigger temp = %.1f, want 80", episodes[0].TempAtTrigger)
	}
}

func TestTick_TrendTriggerBeforeThreshold(t *testing.T) {
	// Baseline read consumes the first value; ticks then see
	// 58, 62, 66, 70, 74. The trend trigger must fire at the fourth
	// reading (70°): within 5° of the 75° ceiling and climbing
	// 4°/tick, well before the threshold itself is crossed.
	src := &sensors.Scripted{Readings: []float64{58, 58, 62, 66, 70, 74}}
	s, db, _ := newTestSupervisor(t, src, nil)
	m := startMonitor(t, s, "climb-1", nil)

	for i := 0; i < 5; i++ {
		s.tick("climb-1", m)
		m.mu.Lock()
		aborted := m.aborted
		m.mu.Unlock()
		if aborted {
			break
		}
	}

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 1 {
		t.Fatalf("episodes = %d, want 1", len(episodes))
	}
	if episodes[0].Reason != domain.AbortThermalTrend {
		t.Errorf("reason = %s, want thermal_trend", episodes[0].Reason)
	}
	if episodes[0].TempAtTrigger != 70 {
		t.Errorf("trigger temp = %.1f, want 70 (fourth reading)", episodes[0].TempAtTrigger)
	}
}

func TestTick_SlowClimb_NoTrendTrigger(t *testing.T) {
	// 0.5°/tick stays under the 1°/tick trend slope.
	src := &sensors.Scripted{Readings: []float64{70, 70.5, 71, 71.5, 72}}
	s, db, _ := newTestSupervisor(t, src, nil)
	m := startMonitor(t, s, "slow-1", nil)

	for i := 0; i < 4; i++ {
		s.tick("slow-1", m)
	}

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 0 {
		t.Errorf("episodes = %d, want 0 for a slow climb below the ceiling", len(episodes))
	}
}

func TestTick_SensorFailureSkipsEvaluation(t *testing.T) {
	s, db, _ := newTestSupervisor(t, sensors.Fixed{Err: domain.ErrSensorUnavailable}, nil)
	m := startMonitor(t, s, "blind-1", nil)

	for i := 0; i < 3; i++ {
		s.tick("blind-1", m)
	}

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 0 {
		t.Errorf("episodes = %d, want 0: missing telemetry never aborts", len(episodes))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.trace) != 0 {
		t.Errorf("trace length = %d, want 0", len(m.trace))
	}
}

func TestTick_AlertRaisedBelowAbort(t *testing.T) {
	s, _, _ := newTestSupervisor(t, sensors.Fixed{Temp: 70}, nil)
	m := startMonitor(t, s, "warm-1", nil)

	s.tick("warm-1", m)
	s.tick("warm-1", m)

	st, err := s.Stats("warm-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.State != StateAlertRaised {
		t.Errorf("state = %s, want ALERT_RAISED", st.State)
	}
	if st.AlertCount != 2 {
		t.Errorf("alerts = %d, want 2", st.AlertCount)
	}
	if st.Aborted {
		t.Error("should not be aborted at 70° with flat slope")
	}
}

func TestTick_BatteryFloorTrigger(t *testing.T) {
	power := sensors.FixedPower{Reading: domain.PowerReading{BatteryPercent: 10, OnBattery: true}}
	s, db, _ := newTestSupervisor(t, sensors.Fixed{Temp: 40}, power)
	s.config.PowerEnabled = true
	m := startMonitor(t, s, "lowbat-1", nil)

	s.tick("lowbat-1", m)

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 1 {
		t.Fatalf("episodes = %d, want 1", len(episodes))
	}
	if episodes[0].Reason != domain.AbortBatteryLow {
		t.Errorf("reason = %s, want battery_low", episodes[0].Reason)
	}
}

func TestTick_SustainedDrawTrigger(t *testing.T) {
	power := sensors.FixedPower{Reading: domain.PowerReading{BatteryPercent: 80, DrawWatts: 150, OnBattery: true}}
	s, db, _ := newTestSupervisor(t, sensors.Fixed{Temp: 40}, power)
	s.config.PowerEnabled = true
	s.config.DrawCeiling = 100
	s.config.DrawTicks = 3
	m := startMonitor(t, s, "draw-1", nil)

	s.tick("draw-1", m)
	s.tick("draw-1", m)
	if eps, _ := db.ListEpisodes(10); len(eps) != 0 {
		t.Fatalf("aborted after 2 ticks, draw trigger needs 3")
	}
	s.tick("draw-1", m)

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 1 {
		t.Fatalf("episodes = %d, want 1", len(episodes))
	}
	if episodes[0].Reason != domain.AbortPowerDraw {
		t.Errorf("reason = %s, want power_draw", episodes[0].Reason)
	}
}

// ─── Abort Sequence Tests ───────────────────────────────────────────────────

func TestAbort_Idempotent(t *testing.T) {
	s, db, sleeper := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)

	var suspends int32
	suspend := domain.SuspendableFunc(func(reason domain.AbortReason) error {
		atomic.AddInt32(&suspends, 1)
		return nil
	})
	startMonitor(t, s, "dup-1", suspend)

	s.Abort("dup-1", domain.AbortThermalThreshold, 76)
	s.Abort("dup-1", domain.AbortThermalThreshold, 76)

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 1 {
		t.Errorf("episodes = %d, want exactly 1", len(episodes))
	}
	if n := atomic.LoadInt32(&suspends); n != 1 {
		t.Errorf("suspend calls = %d, want exactly 1", n)
	}
	if sleeper.SuspendCount() != 1 {
		t.Errorf("device sleep requests = %d, want exactly 1", sleeper.SuspendCount())
	}
}

func TestAbort_CheckpointBeforeSuspend(t *testing.T) {
	s, db, _ := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)

	var sawCheckpoint bool
	suspend := domain.SuspendableFunc(func(reason domain.AbortReason) error {
		n, err := db.CountCheckpoints("order-1")
		sawCheckpoint = err == nil && n > 0
		return nil
	})
	startMonitor(t, s, "order-1", suspend)

	s.Abort("order-1", domain.AbortThermalTrend, 71)

	if !sawCheckpoint {
		t.Error("emergency checkpoint must be written before the suspend callback runs")
	}
}

func TestAbort_SuspendFailureStillRecordsEpisode(t *testing.T) {
	s, db, sleeper := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)

	suspend := domain.SuspendableFunc(func(reason domain.AbortReason) error {
		return errors.New("runner unresponsive")
	})
	startMonitor(t, s, "stuck-1", suspend)

	s.Abort("stuck-1", domain.AbortThermalThreshold, 78)

	episodes, _ := db.ListEpisodes(10)
	if len(episodes) != 1 {
		t.Errorf("episodes = %d, want 1 despite suspend failure", len(episodes))
	}
	if sleeper.SuspendCount() != 1 {
		t.Error("device sleep should still be requested")
	}
}

func TestAbort_NonThermalSkipsDeviceSleep(t *testing.T) {
	s, _, sleeper := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)
	startMonitor(t, s, "bat-1", nil)

	s.Abort("bat-1", domain.AbortBatteryLow, 40)

	if sleeper.SuspendCount() != 0 {
		t.Errorf("device sleep requests = %d, want 0 for battery abort", sleeper.SuspendCount())
	}
}

func TestAbort_RecordsEmergencyCheckpoint(t *testing.T) {
	s, db, _ := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)
	startMonitor(t, s, "cp-1", nil)

	s.Abort("cp-1", domain.AbortThermalThreshold, 77)

	cp, err := db.LatestCheckpoint("cp-1")
	if err != nil {
		t.Fatalf("latest checkpoint: %v", err)
	}
	if cp.Reason != domain.CheckpointEmergency {
		t.Errorf("reason = %s, want emergency", cp.Reason)
	}
	if !cp.NoProducer || cp.Progress != domain.ProgressUnknown {
		t.Error("with no producer the row should be flagged unknown-progress")
	}
}

// ─── Lifecycle Tests ────────────────────────────────────────────────────────

func TestStart_DuplicateRejected(t *testing.T) {
	s, _, _ := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)
	startMonitor(t, s, "dup-2", nil)

	err := s.Start("dup-2", domain.Task{ID: "dup-2"}, nil)
	if !errors.Is(err, domain.ErrAlreadyMonitored) {
		t.Errorf("err = %v, want ErrAlreadyMonitored", err)
	}
}

func TestStop_StatsRemainUntilClear(t *testing.T) {
	s, _, _ := newTestSupervisor(t, sensors.Fixed{Temp: 50}, nil)
	startMonitor(t, s, "done-1", nil)

	s.Stop("done-1")

	st, err := s.Stats("done-1")
	if err != nil {
		t.Fatalf("stats after stop: %v", err)
	}
	if st.Aborted {
		t.Error("normal stop must not mark the task aborted")
	}

	s.Clear("done-1")
	if _, err := s.Stats("done-1"); !errors.Is(err, domain.ErrNotMonitored) {
		t.Errorf("stats after clear: err = %v, want ErrNotMonitored", err)
	}
}

func TestStats_TracksBaselineAndPeak(t *testing.T) {
	src := &sensors.Scripted{Readings: []float64{42, 55, 61, 58}}
	s, _, _ := newTestSupervisor(t, src, nil)
	m := startMonitor(t, s, "peak-1", nil)

	for i := 0; i < 3; i++ {
		s.tick("peak-1", m)
	}

	st, err := s.Stats("peak-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Baseline != 42 {
		t.Errorf("baseline = %.1f, want 42", st.Baseline)
	}
	if st.PeakTemp != 61 {
		t.Errorf("peak = %.1f, want 61", st.PeakTemp)
	}
	if st.State != StateRunning {
		t.Errorf("state = %s, want RUNNING", st.State)
	}
}

func TestTrendSlope_WindowBounds(t *testing.T) {
	if _, ok := trendSlope([]float64{60, 62}); ok {
		t.Error("two readings should not make a trend")
	}
	slope, ok := trendSlope([]float64{58, 62, 66, 70})
	if !ok {
		t.Fatal("four readings should make a trend")
	}
	if slope != 4 {
		t.Errorf("slope = %.2f, want 4.0", slope)
	}
}
