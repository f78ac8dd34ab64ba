package domain

import "time"

// AbortReason classifies what tripped an emergency abort.
type AbortReason string

const (
	AbortThermalThreshold AbortReason = "thermal_threshold"
	AbortThermalTrend     AbortReason = "thermal_trend"
	AbortBatteryLow       AbortReason = "battery_low"
	AbortPowerDraw        AbortReason = "power_draw"
	AbortManual           AbortReason = "manual"
)

// IsThermal reports whether the reason warrants a device-sleep request.
func (r AbortReason) IsThermal() bool {
	return r == AbortThermalThreshold || r == AbortThermalTrend
}

// AbortEpisode is the immutable analytics record of one emergency
// suspension. Exactly one per abort event.
type AbortEpisode struct {
	ID            string      `json:"id"`
	TaskID        string      `json:"task_id"`
	Reason        AbortReason `json:"reason"`
	TempAtTrigger float64     `json:"temp_at_trigger"`
	PeakTemp      float64     `json:"peak_temp"`
	Elapsed       float64     `json:"elapsed_seconds"`
	AlertCount    int         `json:"alert_count"`
	CreatedAt     time.Time   `json:"created_at"`
}
