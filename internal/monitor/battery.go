package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BatteryStatus is the charging state reported by the kernel.
type BatteryStatus string

const (
	BatteryCharging    BatteryStatus = "Charging"
	BatteryDischarging BatteryStatus = "Discharging"
	BatteryFull        BatteryStatus = "Full"
	BatteryNotCharging BatteryStatus = "Not charging"
	BatteryUnknown     BatteryStatus = "Unknown"
)

// BatteryInfo is the state of a single battery.
type BatteryInfo struct {
	Name   string
	Status BatteryStatus
	// Capacity is the charge level in percent.
	Capacity float64
	// Power is the charge or discharge rate in watts.
	Power float64
	// TimeRemaining is the time to empty while discharging or to full
	// while charging; zero when unknown.
	TimeRemaining time.Duration
}

// BatteryReader reads batteries from /sys/class/power_supply.
type BatteryReader struct {
	PowerSupplyPath string
}

// NewBatteryReader creates a BatteryReader with default paths.
func NewBatteryReader() *BatteryReader {
	return &BatteryReader{PowerSupplyPath: "/sys/class/power_supply"}
}

// Read returns the state of device, or of the first present battery when
// device is empty. A missing battery yields ErrNotAvailable.
func (r *BatteryReader) Read(device string) (BatteryInfo, error) {
	if device == "" {
		var err error
		if device, err = r.firstBattery(); err != nil {
			return BatteryInfo{}, NewComponentError(ErrorSourceBattery, err)
		}
	}

	devicePath := filepath.Join(r.PowerSupplyPath, device)
	if present, err := readInt(filepath.Join(devicePath, "present")); err == nil && present == 0 {
		return BatteryInfo{}, NewComponentError(ErrorSourceBattery, fmt.Errorf("%s: %w", device, ErrNotAvailable))
	}
	info, err := readBattery(devicePath, device)
	if err != nil {
		return BatteryInfo{}, NewComponentError(ErrorSourceBattery, err)
	}
	return info, nil
}

// firstBattery returns the name of the first power supply of type Battery
// in lexical order.
func (r *BatteryReader) firstBattery() (string, error) {
	entries, err := os.ReadDir(r.PowerSupplyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotAvailable
		}
		return "", fmt.Errorf("reading %s: %w", r.PowerSupplyPath, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		supplyType, err := readTrimmed(filepath.Join(r.PowerSupplyPath, name, "type"))
		if err == nil && strings.EqualFold(supplyType, "battery") {
			return name, nil
		}
	}
	return "", ErrNotAvailable
}

// readBattery reads a battery that reports either energy (µWh, µW) or
// charge (µAh, µA) attributes.
func readBattery(devicePath, name string) (BatteryInfo, error) {
	status, err := readTrimmed(filepath.Join(devicePath, "status"))
	if err != nil {
		return BatteryInfo{}, fmt.Errorf("%s: reading status: %w", name, err)
	}
	info := BatteryInfo{Name: name, Status: BatteryStatus(status)}

	attr := func(file string) (float64, bool) {
		v, err := readInt(filepath.Join(devicePath, file))
		return float64(v), err == nil
	}

	now, okNow := attr("energy_now")
	full, okFull := attr("energy_full")
	power, okPower := attr("power_now")
	if !okNow {
		// Charge-based battery: everything is in µAh and µA.
		now, okNow = attr("charge_now")
		full, okFull = attr("charge_full")
		power, okPower = attr("current_now")
		if volts, ok := attr("voltage_now"); ok && okPower {
			info.Power = power * volts / 1e12
		}
	} else if okPower {
		info.Power = power / 1e6
	}

	if capacity, ok := attr("capacity"); ok {
		info.Capacity = capacity
	} else if okNow && okFull && full > 0 {
		info.Capacity = now / full * 100
	} else {
		return BatteryInfo{}, fmt.Errorf("%s: no capacity information", name)
	}
	info.Capacity = min(max(info.Capacity, 0), 100)

	if okNow && okPower && power > 0 {
		var hours float64
		switch info.Status {
		case BatteryDischarging:
			hours = now / power
		case BatteryCharging:
			if okFull && full > now {
				hours = (full - now) / power
			}
		}
		info.TimeRemaining = time.Duration(hours * float64(time.Hour)).Round(time.Second)
	}

	return info, nil
}

// readInt reads an integer value from a sysfs file.
func readInt(path string) (int64, error) {
	s, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}
