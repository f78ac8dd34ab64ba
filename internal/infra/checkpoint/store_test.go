package checkpoint

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

// ─── Sequence Tests ─────────────────────────────────────────────────────────

func TestSave_SequenceStrictlyIncreasing(t *testing.T) {
	s := newTestStore(t)

	var seqs []int64
	for i := 0; i < 5; i++ {
		cp, err := s.Save("task-1", domain.Snapshot{Progress: float64(i * 20)}, domain.CheckpointPeriodic)
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		seqs = append(seqs, cp.Seq)
	}

	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Errorf("seq[%d] = %d, want %d", i, seqs[i], seqs[i-1]+1)
		}
	}
	if seqs[0] != 1 {
		t.Errorf("first seq = %d, want 1", seqs[0])
	}
}

func TestSave_SequencesIndependentPerTask(t *testing.T) {
	s := newTestStore(t)

	s.Save("task-a", domain.Snapshot{Progress: 10}, domain.CheckpointPeriodic)
	s.Save("task-a", domain.Snapshot{Progress: 20}, domain.CheckpointPeriodic)
	cp, err := s.Save("task-b", domain.Snapshot{Progress: 5}, domain.CheckpointPeriodic)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if cp.Seq != 1 {
		t.Errorf("task-b first seq = %d, want 1", cp.Seq)
	}
}

func TestLatest_ReturnsMaximumSequence(t *testing.T) {
	s := newTestStore(t)

	s.Save("task-1", domain.Snapshot{Progress: 25, State: []byte("s1")}, domain.CheckpointPeriodic)
	s.Save("task-1", domain.Snapshot{Progress: 50, State: []byte("s2")}, domain.CheckpointPeriodic)
	s.Save("task-1", domain.Snapshot{Progress: 75, State: []byte("s3")}, domain.CheckpointPeriodic)

	cp, err := s.Latest("task-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if cp.Seq != 3 {
		t.Errorf("latest seq = %d, want 3", cp.Seq)
	}
	if cp.Progress != 75 {
		t.Errorf("latest progress = %.0f, want 75", cp.Progress)
	}
}

func TestLatest_NoRows(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Latest("ghost")
	if !errors.Is(err, domain.ErrNoCheckpoint) {
		t.Errorf("err = %v, want ErrNoCheckpoint", err)
	}
}

func TestSave_ProgressClamped(t *testing.T) {
	s := newTestStore(t)

	cp, err := s.Save("task-1", domain.Snapshot{Progress: 140}, domain.CheckpointPeriodic)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if cp.Progress != 100 {
		t.Errorf("progress = %.0f, want clamped to 100", cp.Progress)
	}

	cp, err = s.Save("task-1", domain.Snapshot{Progress: -7}, domain.CheckpointPeriodic)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if cp.Progress != 0 {
		t.Errorf("progress = %.0f, want clamped to 0", cp.Progress)
	}
}

// ─── Emergency Saves ────────────────────────────────────────────────────────

func TestEmergencySave_InvokesProducer(t *testing.T) {
	s := newTestStore(t)

	s.RegisterProducer("task-1", domain.CheckpointableFunc(func() (domain.Snapshot, error) {
		return domain.Snapshot{Progress: 42, State: []byte("mid"), Output: []byte("partial")}, nil
	}))

	cp, err := s.EmergencySave("task-1", "thermal_threshold")
	if err != nil {
		t.Fatalf("emergency save: %v", err)
	}
	if cp.Reason != domain.CheckpointEmergency {
		t.Errorf("reason = %s, want emergency", cp.Reason)
	}
	if cp.Progress != 42 {
		t.Errorf("progress = %.0f, want 42", cp.Progress)
	}
	if !bytes.Equal(cp.State, []byte("mid")) {
		t.Errorf("state = %q, want %q", cp.State, "mid")
	}
	if cp.NoProducer {
		t.Error("NoProducer should be false with a working producer")
	}
}

func TestEmergencySave_NoProducer_RecordsUnknown(t *testing.T) {
	s := newTestStore(t)

	cp, err := s.EmergencySave("task-1", "thermal_trend")
	if err != nil {
		t.Fatalf("emergency save: %v", err)
	}
	if !cp.NoProducer {
		t.Error("NoProducer should be set")
	}
	if cp.Progress != domain.ProgressUnknown {
		t.Errorf("progress = %.0f, want ProgressUnknown", cp.Progress)
	}
	if len(cp.State) != 0 || len(cp.Output) != 0 {
		t.Error("state and output should be empty with no producer")
	}
}

func TestEmergencySave_ProducerFails_RecordsUnknown(t *testing.T) {
	s := newTestStore(t)

	s.RegisterProducer("task-1", domain.CheckpointableFunc(func() (domain.Snapshot, error) {
		return domain.Snapshot{}, errors.New("runner hung")
	}))

	cp, err := s.EmergencySave("task-1", "thermal_threshold")
	if err != nil {
		t.Fatalf("emergency save: %v", err)
	}
	if !cp.NoProducer {
		t.Error("NoProducer should be set when the producer fails")
	}
	if cp.Progress != domain.ProgressUnknown {
		t.Errorf("progress = %.0f, want ProgressUnknown", cp.Progress)
	}
}

// ─── Resume & Dispose ───────────────────────────────────────────────────────

func TestResumePlan_MatchesLastSave(t *testing.T) {
	s := newTestStore(t)

	s.Save("task-1", domain.Snapshot{Progress: 30, State: []byte("early")}, domain.CheckpointPeriodic)
	last, err := s.Save("task-1", domain.Snapshot{
		Progress: 80,
		State:    []byte(`{"frame":9600}`),
		Output:   []byte("chunk"),
	}, domain.CheckpointPeriodic)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	plan, err := s.ResumePlan("task-1")
	if err != nil {
		t.Fatalf("resume plan: %v", err)
	}
	if plan.Seq != last.Seq {
		t.Errorf("plan seq = %d, want %d", plan.Seq, last.Seq)
	}
	if plan.Progress != 80 {
		t.Errorf("plan progress = %.0f, want 80", plan.Progress)
	}
	if !bytes.Equal(plan.State, last.State) || !bytes.Equal(plan.Output, last.Output) {
		t.Error("plan state/output should match the last save")
	}
}

func TestDispose_RemovesRowsAndProducer(t *testing.T) {
	s := newTestStore(t)

	s.RegisterProducer("task-1", domain.CheckpointableFunc(func() (domain.Snapshot, error) {
		return domain.Snapshot{}, nil
	}))
	s.Save("task-1", domain.Snapshot{Progress: 50}, domain.CheckpointPeriodic)
	s.Save("task-1", domain.Snapshot{Progress: 100}, domain.CheckpointPeriodic)

	if err := s.Dispose("task-1"); err != nil {
		t.Fatalf("dispose: %v", err)
	}

	if _, err := s.Latest("task-1"); !errors.Is(err, domain.ErrNoCheckpoint) {
		t.Errorf("after dispose: err = %v, want ErrNoCheckpoint", err)
	}
	if s.HasProducer("task-1") {
		t.Error("producer should be unregistered after dispose")
	}

	// A later save starts a fresh sequence.
	cp, err := s.Save("task-1", domain.Snapshot{Progress: 5}, domain.CheckpointPeriodic)
	if err != nil {
		t.Fatalf("save after dispose: %v", err)
	}
	if cp.Seq != 1 {
		t.Errorf("seq after dispose = %d, want 1", cp.Seq)
	}
}

// ─── Remaining Time Estimate ────────────────────────────────────────────────

func TestEstimateRemaining_Linear(t *testing.T) {
	s := newTestStore(t)

	s.Save("task-1", domain.Snapshot{Progress: 75}, domain.CheckpointPeriodic)

	rem, err := s.EstimateRemaining("task-1", 2*time.Hour)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if rem != 30*time.Minute {
		t.Errorf("remaining = %s, want 30m", rem)
	}
}

func TestEstimateRemaining_UnknownProgress_FullDuration(t *testing.T) {
	s := newTestStore(t)

	s.EmergencySave("task-1", "manual") // no producer: unknown progress

	rem, err := s.EstimateRemaining("task-1", time.Hour)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if rem != time.Hour {
		t.Errorf("remaining = %s, want full duration", rem)
	}
}
