package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// bytesPerKB is the number of bytes in a kilobyte.
const bytesPerKB = 1024

// MemoryStats holds /proc/meminfo values in bytes.
type MemoryStats struct {
	Total     uint64
	Free      uint64
	Available uint64
	Buffers   uint64
	Cached    uint64
	// Used excludes buffers and page cache.
	Used uint64
	// TotalUsed is everything that is not free.
	TotalUsed uint64
	SwapTotal uint64
	SwapFree  uint64
	SwapUsed  uint64
}

// UsedPercent returns Used as a share of Total.
func (m MemoryStats) UsedPercent() float64 {
	return percentOf(m.Used, m.Total)
}

// SwapUsedPercent returns SwapUsed as a share of SwapTotal.
func (m MemoryStats) SwapUsedPercent() float64 {
	return percentOf(m.SwapUsed, m.SwapTotal)
}

func percentOf(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100.0
}

// MemoryReader reads memory statistics from /proc/meminfo.
type MemoryReader struct {
	MemInfoPath string
}

// NewMemoryReader creates a MemoryReader with default paths.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{MemInfoPath: "/proc/meminfo"}
}

// Read reads current memory statistics.
func (r *MemoryReader) Read() (MemoryStats, error) {
	values, err := r.readMemInfo()
	if err != nil {
		return MemoryStats{}, NewComponentError(ErrorSourceMemory, err)
	}

	stats := MemoryStats{
		Total:     values["MemTotal"],
		Free:      values["MemFree"],
		Available: values["MemAvailable"],
		Buffers:   values["Buffers"],
		// Reclaimable slab behaves like page cache.
		Cached:    values["Cached"] + values["SReclaimable"],
		SwapTotal: values["SwapTotal"],
		SwapFree:  values["SwapFree"],
	}
	if stats.Total == 0 {
		return MemoryStats{}, NewComponentError(ErrorSourceMemory, fmt.Errorf("no MemTotal in %s", r.MemInfoPath))
	}

	// Kernels before 3.14 have no MemAvailable.
	if _, ok := values["MemAvailable"]; !ok {
		stats.Available = min(stats.Free+stats.Buffers+stats.Cached, stats.Total)
	}

	stats.Used = calculateUsedMemory(stats.Total, stats.Free, stats.Buffers, stats.Cached)
	stats.TotalUsed = safeSubtract(stats.Total, stats.Free)
	stats.SwapUsed = safeSubtract(stats.SwapTotal, stats.SwapFree)

	return stats, nil
}

func (r *MemoryReader) readMemInfo() (map[string]uint64, error) {
	file, err := os.Open(r.MemInfoPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", r.MemInfoPath, err)
	}
	defer file.Close()

	values := make(map[string]uint64)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		key, valueStr, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		valueStr = strings.TrimSuffix(strings.TrimSpace(valueStr), " kB")
		value, err := strconv.ParseUint(valueStr, 10, 64)
		if err != nil {
			continue
		}

		// Skip values that would overflow when converted to bytes.
		if value > ^uint64(0)/bytesPerKB {
			continue
		}
		values[strings.TrimSpace(key)] = value * bytesPerKB
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", r.MemInfoPath, err)
	}
	return values, nil
}

// calculateUsedMemory calculates used memory using safe stepwise subtraction
// to prevent underflow and avoid overflow in additions.
func calculateUsedMemory(total, free, buffers, cached uint64) uint64 {
	if total < free {
		return 0
	}
	remainingAfterFree := total - free

	if remainingAfterFree < buffers {
		return total - free
	}
	remainingAfterBuffers := remainingAfterFree - buffers

	if remainingAfterBuffers < cached {
		return total - free
	}
	return remainingAfterBuffers - cached
}

// safeSubtract performs subtraction with underflow protection.
func safeSubtract(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return 0
}
