package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TempSensor is one temperature input of a hwmon chip, in degrees Celsius.
type TempSensor struct {
	// Chip is the hwmon device name, e.g. "coretemp" or "acpitz".
	Chip string
	// Label is the sensor label, e.g. "Package id 0". Defaults to the
	// sensor type when the chip provides no label.
	Label string
	// Type is the sensor type identifier, e.g. "temp1".
	Type  string
	Input float64
	Max   float64
	Crit  float64
}

// HwmonReader reads temperature sensors from /sys/class/hwmon.
type HwmonReader struct {
	HwmonPath string
}

// NewHwmonReader creates a HwmonReader with default paths.
func NewHwmonReader() *HwmonReader {
	return &HwmonReader{HwmonPath: "/sys/class/hwmon"}
}

// Read returns every temperature sensor. Chips that cannot be read are
// skipped; a system without any sensor yields ErrNotAvailable.
func (r *HwmonReader) Read() ([]TempSensor, error) {
	entries, err := os.ReadDir(r.HwmonPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewComponentError(ErrorSourceHwmon, ErrNotAvailable)
		}
		return nil, NewComponentError(ErrorSourceHwmon, fmt.Errorf("reading %s: %w", r.HwmonPath, err))
	}

	var sensors []TempSensor
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "hwmon") {
			continue
		}
		sensors = append(sensors, r.readDevice(filepath.Join(r.HwmonPath, entry.Name()))...)
	}

	if len(sensors) == 0 {
		return nil, NewComponentError(ErrorSourceHwmon, ErrNotAvailable)
	}
	return sensors, nil
}

// readDevice reads the sensors of a single hwmon device.
func (r *HwmonReader) readDevice(devicePath string) []TempSensor {
	chip, err := readTrimmed(filepath.Join(devicePath, "name"))
	if err != nil {
		// Older kernels only expose the device symlink.
		if link, linkErr := os.Readlink(filepath.Join(devicePath, "device")); linkErr == nil {
			chip = filepath.Base(link)
		} else {
			chip = filepath.Base(devicePath)
		}
	}

	entries, err := os.ReadDir(devicePath)
	if err != nil {
		return nil
	}

	var sensors []TempSensor
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "temp") || !strings.HasSuffix(name, "_input") {
			continue
		}
		sensor, err := readTempSensor(devicePath, strings.TrimSuffix(name, "_input"))
		if err != nil {
			continue
		}
		sensor.Chip = chip
		sensors = append(sensors, sensor)
	}
	return sensors
}

// readTempSensor reads a single temperature sensor. Only the input is
// required; label, max and crit are optional.
func readTempSensor(devicePath, sensorType string) (TempSensor, error) {
	sensor := TempSensor{Type: sensorType, Label: sensorType}

	input, err := readMillidegrees(filepath.Join(devicePath, sensorType+"_input"))
	if err != nil {
		return sensor, fmt.Errorf("reading input: %w", err)
	}
	sensor.Input = input

	if label, err := readTrimmed(filepath.Join(devicePath, sensorType+"_label")); err == nil && label != "" {
		sensor.Label = label
	}
	if v, err := readMillidegrees(filepath.Join(devicePath, sensorType+"_max")); err == nil {
		sensor.Max = v
	}
	if v, err := readMillidegrees(filepath.Join(devicePath, sensorType+"_crit")); err == nil {
		sensor.Crit = v
	}
	return sensor, nil
}

func readMillidegrees(path string) (float64, error) {
	s, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(v) / 1000.0, nil
}
