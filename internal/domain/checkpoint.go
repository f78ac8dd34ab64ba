package domain

import "time"

// CheckpointReason records why a snapshot was taken.
type CheckpointReason string

const (
	CheckpointPeriodic  CheckpointReason = "periodic"
	CheckpointEmergency CheckpointReason = "emergency"
	CheckpointManual    CheckpointReason = "manual"
)

// ProgressUnknown marks an emergency checkpoint taken with no
// registered producer.
const ProgressUnknown = -1.0

// Checkpoint is one durable progress snapshot. Append-only per task;
// the row with the highest sequence number is authoritative.
type Checkpoint struct {
	ID       string           `json:"id"`
	TaskID   string           `json:"task_id"`
	Seq      int64            `json:"seq"`
	Progress float64          `json:"progress"` // percent, 0–100; ProgressUnknown if untracked
	State    []byte           `json:"state"`    // opaque resume blob
	Output   []byte           `json:"output"`   // opaque partial output
	Reason   CheckpointReason `json:"reason"`

	// NoProducer flags an emergency row recorded without a producer:
	// progress is unknown and State/Output are empty.
	NoProducer bool `json:"no_producer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the payload a checkpoint producer hands back.
type Snapshot struct {
	Progress float64
	State    []byte
	Output   []byte
}

// ResumePlan packages everything the runner needs to skip forward
// instead of restarting.
type ResumePlan struct {
	TaskID   string  `json:"task_id"`
	Seq      int64   `json:"seq"`
	Progress float64 `json:"progress"`
	State    []byte  `json:"state"`
	Output   []byte  `json:"output"`
}
