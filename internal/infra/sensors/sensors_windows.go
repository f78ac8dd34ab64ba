//go:build windows

package sensors

import (
	"os/exec"
	"strconv"
	"strings"
)

// readCPUTemp reads CPU temperature on Windows via WMI.
func readCPUTemp() (float64, bool) {
	out, err := exec.Command("powershell", "-NoProfile", "-Command",
		`Get-CimInstance MSAcpi_ThermalZoneTemperature -Namespace root/wmi -ErrorAction SilentlyContinue | Select-Object -First 1 -ExpandProperty CurrentTemperature`).Output()
	if err != nil {
		return 0, false
	}
	// WMI returns temperature in tenths of Kelvin
	val, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, false
	}
	celsius := float64(val)/10 - 273.15
	if celsius < 0 || celsius > 150 {
		return 0, false
	}
	return celsius, true
}

// hasBattery checks for battery presence on Windows.
func hasBattery() bool {
	out, err := exec.Command("powershell", "-NoProfile", "-Command",
		`(Get-CimInstance Win32_Battery -ErrorAction SilentlyContinue).Count`).Output()
	if err != nil {
		return false
	}
	count, _ := strconv.Atoi(strings.TrimSpace(string(out)))
	return count > 0
}

// batteryPercentage returns charge level on Windows.
func batteryPercentage() float64 {
	out, err := exec.Command("powershell", "-NoProfile", "-Command",
		`(Get-CimInstance Win32_Battery -ErrorAction SilentlyContinue).EstimatedChargeRemaining`).Output()
	if err != nil {
		return 100
	}
	pct, _ := strconv.Atoi(strings.TrimSpace(string(out)))
	if pct == 0 {
		return 100 // Assume full if query fails
	}
	return float64(pct)
}

// batteryDrawWatts is not exposed by Win32_Battery. Stub.
func batteryDrawWatts() float64 {
	return 0
}

// isBatteryCharging returns charging status on Windows.
func isBatteryCharging() bool {
	out, err := exec.Command("powershell", "-NoProfile", "-Command",
		`(Get-CimInstance Win32_Battery -ErrorAction SilentlyContinue).BatteryStatus`).Output()
	if err != nil {
		return true
	}
	status, _ := strconv.Atoi(strings.TrimSpace(string(out)))
	return status == 2 // 2 = AC connected / charging
}
