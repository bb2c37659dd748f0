package monitor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// BacklightReader reads and adjusts a backlight under /sys/class/backlight.
type BacklightReader struct {
	BacklightPath string
	// Device is the backlight directory name. Empty selects the first one.
	Device string
}

// NewBacklightReader creates a BacklightReader for device.
func NewBacklightReader(device string) *BacklightReader {
	return &BacklightReader{BacklightPath: "/sys/class/backlight", Device: device}
}

// Brightness returns the current brightness in percent.
func (r *BacklightReader) Brightness() (float64, error) {
	dir, err := r.deviceDir()
	if err != nil {
		return 0, NewComponentError(ErrorSourceBacklight, err)
	}
	maxValue, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return 0, NewComponentError(ErrorSourceBacklight, fmt.Errorf("reading max_brightness: %w", err))
	}
	if maxValue <= 0 {
		return 0, NewComponentError(ErrorSourceBacklight, fmt.Errorf("invalid max_brightness %d", maxValue))
	}

	// actual_brightness reflects the hardware; brightness is only the last request.
	value, err := readInt(filepath.Join(dir, "actual_brightness"))
	if err != nil {
		if value, err = readInt(filepath.Join(dir, "brightness")); err != nil {
			return 0, NewComponentError(ErrorSourceBacklight, fmt.Errorf("reading brightness: %w", err))
		}
	}
	return float64(value) / float64(maxValue) * 100, nil
}

// SetBrightness sets the brightness to percent, clamped to [minimum, 100].
func (r *BacklightReader) SetBrightness(percent, minimum float64) error {
	dir, err := r.deviceDir()
	if err != nil {
		return NewComponentError(ErrorSourceBacklight, err)
	}
	maxValue, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return NewComponentError(ErrorSourceBacklight, fmt.Errorf("reading max_brightness: %w", err))
	}

	percent = min(max(percent, minimum, 0), 100)
	raw := int64(math.Round(percent / 100 * float64(maxValue)))
	err = os.WriteFile(filepath.Join(dir, "brightness"), []byte(strconv.FormatInt(raw, 10)), 0o644)
	if err != nil {
		return NewComponentError(ErrorSourceBacklight, fmt.Errorf("writing brightness: %w", err))
	}
	return nil
}

func (r *BacklightReader) deviceDir() (string, error) {
	if r.Device != "" {
		dir := filepath.Join(r.BacklightPath, r.Device)
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("%s: %w", r.Device, ErrNotAvailable)
		}
		return dir, nil
	}

	entries, err := os.ReadDir(r.BacklightPath)
	if err != nil || len(entries) == 0 {
		return "", ErrNotAvailable
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return filepath.Join(r.BacklightPath, names[0]), nil
}
