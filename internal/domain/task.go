// Package domain — core task types.
// A Task is a unit of pending work owned by the external queue:
// queued → decided → executing → completed | aborted.
// Ember never executes task payloads; it only decides, observes,
// and can request suspension.
package domain

import "time"

// TaskStatus tracks task lifecycle as recorded in the fact base.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "QUEUED"
	TaskExecuting TaskStatus = "EXECUTING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskAborted   TaskStatus = "ABORTED"
	TaskDeferred  TaskStatus = "DEFERRED"
)

// TaskCategory classifies the workload's thermal character.
type TaskCategory string

const (
	CategoryVideoEncoding TaskCategory = "video-encoding"
	CategoryMLTraining    TaskCategory = "ml-training"
	CategoryCompile       TaskCategory = "compile"
	CategoryIndexing      TaskCategory = "indexing"
	CategoryBackup        TaskCategory = "backup"
	CategoryDownload      TaskCategory = "download"
)

// Urgency tiers. Top-tier tasks bypass the delegation-hours policy.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyHigh
	UrgencyCritical
)

// String returns a human-readable urgency label.
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "LOW"
	case UrgencyNormal:
		return "NORMAL"
	case UrgencyHigh:
		return "HIGH"
	case UrgencyCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Task is a pending unit of work. Owned by the external queue;
// read-only inside ember.
type Task struct {
	ID          string        `json:"id"`
	Category    TaskCategory  `json:"category"`
	PowerDraw   float64       `json:"power_draw_watts"`
	Duration    time.Duration `json:"duration"`
	Segmentable bool          `json:"segmentable"`
	Urgency     Urgency       `json:"urgency"`
	Status      TaskStatus    `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskAborted
}
