package domain

import "time"

// ForecastVerdict is the predictor's pre-flight ruling.
type ForecastVerdict string

const (
	VerdictProceed ForecastVerdict = "PROCEED"
	VerdictSegment ForecastVerdict = "SEGMENT"
	VerdictWait    ForecastVerdict = "WAIT"
	VerdictReject  ForecastVerdict = "REJECT"
)

// Trajectory names the heat-accumulation model used for a forecast.
type Trajectory string

const (
	TrajectoryLinear      Trajectory = "LINEAR"      // low thermal mass
	TrajectoryAsymptotic  Trajectory = "ASYMPTOTIC"  // medium mass
	TrajectoryExponential Trajectory = "EXPONENTIAL" // high mass
)

// Segment is one sub-run of a segmented execution plan.
type Segment struct {
	Start           time.Duration `json:"start"`
	End             time.Duration `json:"end"`
	NeedsCheckpoint bool          `json:"needs_checkpoint"`
	CooldownAfter   time.Duration `json:"cooldown_after"`
}

// Forecast is the predicted thermal outcome of running a task.
// Ephemeral: computed per pre-flight check and cached briefly.
type Forecast struct {
	TaskID     string          `json:"task_id"`
	PeakTemp   float64         `json:"peak_temp"`
	TimeToPeak time.Duration   `json:"time_to_peak"`
	Trajectory Trajectory      `json:"trajectory"`
	Verdict    ForecastVerdict `json:"verdict"`
	Zone       Zone            `json:"zone"`

	// WaitMinutes is set for VerdictWait: estimated minutes until the
	// device has cooled enough to run the task whole.
	WaitMinutes int `json:"wait_minutes,omitempty"`

	// Segments is set for VerdictSegment.
	Segments []Segment `json:"segments,omitempty"`

	// Degraded marks a forecast produced without a live temperature
	// reading (sensor unavailable — assumed-nominal start temp).
	Degraded bool `json:"degraded,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
}

// SegmentCount returns the number of planned sub-runs.
func (f *Forecast) SegmentCount() int { return len(f.Segments) }
