package policy

import (
	"testing"
	"time"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/sqlite"
)

func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
	}
}

// ─── Delegation Hours ───────────────────────────────────────────────────────

func TestHours_InsideWindow(t *testing.T) {
	h := NewHours(22, 6)
	h.now = fixedClock(23)

	res, err := h.Check("user-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Allowed {
		t.Errorf("23:30 should be inside a 22–06 window: %s", res.Reason)
	}
}

func TestHours_WrapMidnight(t *testing.T) {
	h := NewHours(22, 6)

	h.now = fixedClock(3)
	if res, _ := h.Check("user-1"); !res.Allowed {
		t.Error("03:30 should be inside a 22–06 window")
	}

	h.now = fixedClock(12)
	res, _ := h.Check("user-1")
	if res.Allowed {
		t.Error("12:30 should be outside a 22–06 window")
	}
	if res.NextWindow.IsZero() || !res.NextWindow.After(h.now()) {
		t.Error("a denied check should name the next window")
	}
	if res.NextWindow.Hour() != 22 {
		t.Errorf("next window opens at hour %d, want 22", res.NextWindow.Hour())
	}
}

func TestHours_IdenticalBounds_AlwaysAllowed(t *testing.T) {
	h := NewHours(0, 0)
	h.now = fixedClock(14)

	if res, _ := h.Check("user-1"); !res.Allowed {
		t.Error("identical start/end disables the window")
	}
}

// ─── Clean Energy ───────────────────────────────────────────────────────────

func TestCleanHours_Window(t *testing.T) {
	c := NewCleanHours(10, 16) // midday solar
	c.now = fixedClock(12)

	res, err := c.Check(domain.Task{ID: "t-1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Clean {
		t.Errorf("12:30 should be clean in a 10–16 window: %s", res.Reason)
	}

	c.now = fixedClock(20)
	res, _ = c.Check(domain.Task{ID: "t-1"})
	if res.Clean {
		t.Error("20:30 should be dirty in a 10–16 window")
	}
	if res.NextCleanWindow.IsZero() {
		t.Error("a dirty result should name the next clean window")
	}
}

// ─── Queue Occupancy ────────────────────────────────────────────────────────

func TestDBQueue_CountsQueuedRows(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for i, status := range []domain.TaskStatus{domain.TaskQueued, domain.TaskQueued, domain.TaskExecuting, domain.TaskCompleted} {
		task := domain.Task{
			ID:        string(rune('a' + i)),
			Category:  domain.CategoryDownload,
			Status:    status,
			CreatedAt: time.Now(),
		}
		if err := db.InsertTask(task); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	q := NewDBQueue(db)
	n, err := q.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if n != 2 {
		t.Errorf("pending = %d, want 2 (only QUEUED rows)", n)
	}
}
