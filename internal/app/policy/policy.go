// Package policy provides the built-in reference implementations of
// the external checks the coordinator consumes: a delegation-hours
// window policy, a clean-energy window check, and the queue-occupancy
// adapter over the task fact base. Deployments with real policy,
// carbon, or broker subsystems wire their own implementations of the
// domain interfaces instead.
package policy

import (
	"fmt"
	"time"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/sqlite"
)

// ─── Delegation Hours ───────────────────────────────────────────────────────

// Hours allows work only inside a daily window [StartHour, EndHour).
// A window wrapping midnight (start > end) is supported. Identical
// start and end means always allowed.
type Hours struct {
	StartHour int
	EndHour   int
	now       func() time.Time
}

// NewHours creates an hours policy.
func NewHours(startHour, endHour int) *Hours {
	return &Hours{StartHour: startHour, EndHour: endHour, now: time.Now}
}

// Check implements domain.PolicyChecker.
func (h *Hours) Check(userID string) (domain.PolicyResult, error) {
	now := h.now()
	if h.inWindow(now.Hour()) {
		return domain.PolicyResult{Allowed: true, Reason: "inside delegation hours"}, nil
	}
	return domain.PolicyResult{
		Allowed:    false,
		Reason:     fmt.Sprintf("delegation hours are %02d:00–%02d:00", h.StartHour, h.EndHour),
		NextWindow: h.nextWindow(now),
	}, nil
}

func (h *Hours) inWindow(hour int) bool {
	if h.StartHour == h.EndHour {
		return true
	}
	if h.StartHour < h.EndHour {
		return hour >= h.StartHour && hour < h.EndHour
	}
	return hour >= h.StartHour || hour < h.EndHour
}

func (h *Hours) nextWindow(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), h.StartHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ─── Clean Energy Window ────────────────────────────────────────────────────

// CleanHours is a static stand-in for grid-carbon estimation: energy
// is considered clean inside a daily window (think overnight wind or
// midday solar).
type CleanHours struct {
	StartHour int
	EndHour   int
	now       func() time.Time
}

// NewCleanHours creates a clean-energy window check.
func NewCleanHours(startHour, endHour int) *CleanHours {
	return &CleanHours{StartHour: startHour, EndHour: endHour, now: time.Now}
}

// Check implements domain.EnergyChecker.
func (c *CleanHours) Check(task domain.Task) (domain.EnergyResult, error) {
	now := c.now()
	h := Hours{StartHour: c.StartHour, EndHour: c.EndHour}
	if h.inWindow(now.Hour()) {
		return domain.EnergyResult{Clean: true, Reason: "inside clean-energy window"}, nil
	}
	return domain.EnergyResult{
		Clean:           false,
		Reason:          fmt.Sprintf("clean-energy window is %02d:00–%02d:00", c.StartHour, c.EndHour),
		NextCleanWindow: h.nextWindow(now),
	}, nil
}

// ─── Queue Occupancy ────────────────────────────────────────────────────────

// DBQueue reports pending work from the task fact base. The broker
// dequeues a task before asking for a decision, so QUEUED rows are
// exactly the work beyond the task under decision.
type DBQueue struct {
	db *sqlite.DB
}

// NewDBQueue creates a queue-occupancy adapter over db.
func NewDBQueue(db *sqlite.DB) *DBQueue {
	return &DBQueue{db: db}
}

// Pending implements domain.QueueOccupancy.
func (q *DBQueue) Pending() (int, error) {
	return q.db.CountPending("")
}
