package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Sensor errors
	ErrSensorUnavailable = errors.New("temperature sensor unavailable")
	ErrPowerUnavailable  = errors.New("power status unavailable")

	// Checkpoint errors
	ErrDuplicateSeq       = errors.New("checkpoint sequence already recorded")
	ErrNoCheckpoint       = errors.New("no checkpoint recorded for task")
	ErrNoProducer         = errors.New("no checkpoint producer registered")
	ErrCheckpointDisposed = errors.New("checkpoints already disposed")

	// Supervisor errors
	ErrAlreadyMonitored = errors.New("task is already being monitored")
	ErrNotMonitored     = errors.New("task is not being monitored")
	ErrAlreadyAborted   = errors.New("task monitoring already aborted")

	// Forecast errors
	ErrRejectedForecast = errors.New("task rejected by thermal forecast")

	// Profile errors
	ErrProfileNotFound = errors.New("device thermal profile not found")

	// Task errors
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskExists   = errors.New("task already recorded")
)
