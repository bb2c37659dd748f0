package monitor

import (
	"errors"
	"fmt"
)

// ErrorSource identifies which reader produced an error.
type ErrorSource string

const (
	ErrorSourceCPU       ErrorSource = "cpu"
	ErrorSourceMemory    ErrorSource = "memory"
	ErrorSourceUptime    ErrorSource = "uptime"
	ErrorSourceNetwork   ErrorSource = "network"
	ErrorSourceWireless  ErrorSource = "wireless"
	ErrorSourceHwmon     ErrorSource = "hwmon"
	ErrorSourceBattery   ErrorSource = "battery"
	ErrorSourceBacklight ErrorSource = "backlight"
	ErrorSourceAudio     ErrorSource = "audio"
	ErrorSourceMPD       ErrorSource = "mpd"
	ErrorSourceWeather   ErrorSource = "weather"
	ErrorSourceLoad      ErrorSource = "load"
	ErrorSourceDisk      ErrorSource = "disk"
	ErrorSourceWindow    ErrorSource = "window"
	ErrorSourceBluetooth ErrorSource = "bluetooth"
)

// ComponentError wraps an error with source information.
// It preserves the original error for inspection via errors.Is/errors.As.
type ComponentError struct {
	Source ErrorSource
	Err    error
}

// Error implements the error interface.
func (e *ComponentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *ComponentError) Unwrap() error {
	return e.Err
}

// NewComponentError creates a new ComponentError. It returns nil for a nil err
// so callers can wrap unconditionally.
func NewComponentError(source ErrorSource, err error) error {
	if err == nil {
		return nil
	}
	return &ComponentError{Source: source, Err: err}
}

// ErrNotAvailable is returned when the hardware or service a reader talks to
// is absent on this machine (no battery, no hwmon chips, no X display).
var ErrNotAvailable = errors.New("not available")

// IsComponentError returns true if err wraps or is a ComponentError with the given source.
func IsComponentError(err error, source ErrorSource) bool {
	var ce *ComponentError
	for errors.As(err, &ce) {
		if ce.Source == source {
			return true
		}
		err = ce.Err
	}
	return false
}
