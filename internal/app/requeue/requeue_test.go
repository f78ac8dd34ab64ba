package requeue

import (
	"testing"
	"time"
)

// ─── Requeue Tests ──────────────────────────────────────────────────────────

func newTestQueue(t *testing.T) (*Queue, func(time.Duration)) {
	t.Helper()
	q := New(Config{
		MaxDeferrals: 3,
		BaseBackoff:  5 * time.Minute,
		MaxBackoff:   time.Hour,
	})
	base := time.Now()
	offset := time.Duration(0)
	q.now = func() time.Time { return base.Add(offset) }
	advance := func(d time.Duration) { offset += d }
	return q, advance
}

func TestSchedule_ReadyAfterRetryWindow(t *testing.T) {
	q, advance := newTestQueue(t)

	if !q.Schedule("t-1", "device too warm", 8*time.Minute) {
		t.Fatal("first deferral should park")
	}
	if q.Len() != 1 {
		t.Fatalf("parked = %d, want 1", q.Len())
	}

	if _, ok := q.NextReady(); ok {
		t.Fatal("entry ready before its window passed")
	}

	advance(9 * time.Minute)
	e, ok := q.NextReady()
	if !ok {
		t.Fatal("entry should be ready after 9 minutes")
	}
	if e.TaskID != "t-1" || e.Attempt != 1 {
		t.Errorf("entry = %+v, want t-1 attempt 1", e)
	}
}

func TestSchedule_ZeroRetryUsesBackoff(t *testing.T) {
	q, advance := newTestQueue(t)

	q.Schedule("t-1", "outside window", 0)

	advance(4 * time.Minute)
	if _, ok := q.NextReady(); ok {
		t.Fatal("base backoff is 5m; 4m is too early")
	}
	advance(2 * time.Minute)
	if _, ok := q.NextReady(); !ok {
		t.Fatal("entry should be ready after the base backoff")
	}

	// Second deferral doubles the backoff.
	q.Schedule("t-1", "outside window", 0)
	advance(6 * time.Minute)
	if _, ok := q.NextReady(); ok {
		t.Fatal("second deferral backs off 10m; 6m is too early")
	}
	advance(5 * time.Minute)
	if _, ok := q.NextReady(); !ok {
		t.Fatal("entry should be ready after the doubled backoff")
	}
}

func TestSchedule_ExhaustionParks(t *testing.T) {
	q, _ := newTestQueue(t)

	for i := 0; i < 3; i++ {
		if !q.Schedule("t-1", "dirty energy", time.Minute) {
			t.Fatalf("deferral %d should park", i+1)
		}
	}
	if q.Schedule("t-1", "dirty energy", time.Minute) {
		t.Error("fourth deferral should exhaust (max 3)")
	}

	stats := q.Snapshot()
	if stats.Exhausted != 1 {
		t.Errorf("exhausted = %d, want 1", stats.Exhausted)
	}
}

func TestForget_ResetsDeferralCount(t *testing.T) {
	q, advance := newTestQueue(t)

	for i := 0; i < 3; i++ {
		q.Schedule("t-1", "busy", time.Minute)
	}
	q.Forget("t-1")
	advance(2 * time.Minute)
	q.DrainReady()

	if !q.Schedule("t-1", "busy", time.Minute) {
		t.Error("deferral history should reset after Forget")
	}
}

func TestDrainReady_EarliestFirst(t *testing.T) {
	q, advance := newTestQueue(t)

	q.Schedule("late", "policy", 20*time.Minute)
	q.Schedule("early", "policy", 5*time.Minute)
	q.Schedule("mid", "policy", 10*time.Minute)

	advance(30 * time.Minute)
	ready := q.DrainReady()

	if len(ready) != 3 {
		t.Fatalf("ready = %d, want 3", len(ready))
	}
	want := []string{"early", "mid", "late"}
	for i, w := range want {
		if ready[i].TaskID != w {
			t.Errorf("ready[%d] = %s, want %s", i, ready[i].TaskID, w)
		}
	}
}
