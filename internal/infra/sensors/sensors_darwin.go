//go:build darwin

package sensors

import (
	"os/exec"
	"strconv"
	"strings"
)

// readCPUTemp reads CPU temperature on macOS.
// Uses osx-cpu-temp if installed, otherwise reports unavailable.
func readCPUTemp() (float64, bool) {
	out, err := exec.Command("osx-cpu-temp").Output()
	if err != nil {
		return 0, false
	}
	// Output format: "65.0°C"
	s := strings.TrimSpace(string(out))
	s = strings.TrimSuffix(s, "°C")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// hasBattery checks for a battery via pmset.
func hasBattery() bool {
	out, err := exec.Command("pmset", "-g", "batt").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "InternalBattery")
}

// batteryPercentage parses charge from pmset output.
func batteryPercentage() float64 {
	out, err := exec.Command("pmset", "-g", "batt").Output()
	if err != nil {
		return 100
	}
	for _, field := range strings.Fields(string(out)) {
		if strings.HasSuffix(field, "%;") {
			pct, err := strconv.Atoi(strings.TrimSuffix(field, "%;"))
			if err == nil {
				return float64(pct)
			}
		}
	}
	return 100
}

// batteryDrawWatts is not readable without SMC access. Stub.
func batteryDrawWatts() float64 {
	return 0
}

// isBatteryCharging parses charging state from pmset output.
func isBatteryCharging() bool {
	out, err := exec.Command("pmset", "-g", "batt").Output()
	if err != nil {
		return true
	}
	return strings.Contains(string(out), "AC Power")
}
