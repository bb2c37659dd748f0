package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UptimeReader reads the system uptime from /proc/uptime.
type UptimeReader struct {
	UptimePath string
}

// NewUptimeReader creates an UptimeReader with default paths.
func NewUptimeReader() *UptimeReader {
	return &UptimeReader{UptimePath: "/proc/uptime"}
}

// Read returns the time since boot.
func (r *UptimeReader) Read() (time.Duration, error) {
	data, err := readTrimmed(r.UptimePath)
	if err != nil {
		return 0, NewComponentError(ErrorSourceUptime, fmt.Errorf("reading %s: %w", r.UptimePath, err))
	}

	fields := strings.Fields(data)
	if len(fields) < 1 {
		return 0, NewComponentError(ErrorSourceUptime, fmt.Errorf("empty %s", r.UptimePath))
	}

	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || seconds < 0 {
		return 0, NewComponentError(ErrorSourceUptime, fmt.Errorf("parsing uptime value %q", fields[0]))
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
