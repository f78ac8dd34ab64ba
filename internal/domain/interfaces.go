package domain

import "time"

// ─── Capability Interfaces ──────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure and the external task runner implement them;
// the supervisory core depends only on the contracts.

// TemperatureSource returns the current device temperature in °C,
// or an error when no reading is available. Implementations may cache
// within a sub-second window; callers must tolerate staleness.
type TemperatureSource interface {
	Read() (float64, error)
}

// PowerReading is one sample of the device's power state.
type PowerReading struct {
	BatteryPercent float64
	DrawWatts      float64
	OnBattery      bool
}

// PowerStatus returns the current power state or an error.
type PowerStatus interface {
	Read() (PowerReading, error)
}

// Checkpointable is implemented by the external task runner: it must
// produce a progress snapshot on demand, promptly, as it is invoked
// synchronously during emergency aborts.
type Checkpointable interface {
	Checkpoint() (Snapshot, error)
}

// Suspendable is the runner-side suspend action invoked during an
// abort. Must return sub-second; the abort sequence blocks on it.
type Suspendable interface {
	Suspend(reason AbortReason) error
}

// CheckpointableFunc adapts a function to Checkpointable.
type CheckpointableFunc func() (Snapshot, error)

// Checkpoint implements Checkpointable.
func (f CheckpointableFunc) Checkpoint() (Snapshot, error) { return f() }

// SuspendableFunc adapts a function to Suspendable.
type SuspendableFunc func(reason AbortReason) error

// Suspend implements Suspendable.
func (f SuspendableFunc) Suspend(reason AbortReason) error { return f(reason) }

// DeviceSleeper requests whole-device suspension. The actual OS sleep
// trigger is an external collaborator; failures are logged, not fatal.
type DeviceSleeper interface {
	Suspend(reason string) error
	ScheduleWake(at time.Time) error
}

// PolicyResult is the outcome of the external delegation-hours /
// idle-cooldown policy check.
type PolicyResult struct {
	Allowed    bool
	Reason     string
	NextWindow time.Time
}

// PolicyChecker answers whether a user may run work right now.
type PolicyChecker interface {
	Check(userID string) (PolicyResult, error)
}

// EnergyResult is the outcome of the external energy-cleanliness check.
type EnergyResult struct {
	Clean           bool
	Reason          string
	NextCleanWindow time.Time
}

// EnergyChecker answers whether current grid energy is clean enough.
type EnergyChecker interface {
	Check(task Task) (EnergyResult, error)
}

// QueueOccupancy reports how many tasks are pending in the external
// queue (excluding the one being decided).
type QueueOccupancy interface {
	Pending() (int, error)
}

// ProfileStore resolves device thermal profiles. Implementations fall
// back to GenericProfile when the device is unknown.
type ProfileStore interface {
	Get(deviceID string) (ThermalProfile, error)
	Put(profile ThermalProfile) error
}
