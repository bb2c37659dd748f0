package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
)

// LoadStats holds the system load averages and the logical CPU count.
type LoadStats struct {
	Load1, Load5, Load15 float64
	LogicalCPUs          int
}

// PerCore returns the one minute load divided by the logical CPU count.
func (s LoadStats) PerCore() float64 {
	if s.LogicalCPUs <= 0 {
		return s.Load1
	}
	return s.Load1 / float64(s.LogicalCPUs)
}

// LoadReader reads load averages through gopsutil.
type LoadReader struct {
	avg    func(ctx context.Context) (*load.AvgStat, error)
	counts func(ctx context.Context, logical bool) (int, error)
}

// NewLoadReader creates a LoadReader backed by the host.
func NewLoadReader() *LoadReader {
	return &LoadReader{avg: load.AvgWithContext, counts: cpu.CountsWithContext}
}

// Read returns the current load averages.
func (r *LoadReader) Read(ctx context.Context) (LoadStats, error) {
	avg, err := r.avg(ctx)
	if err != nil {
		return LoadStats{}, NewComponentError(ErrorSourceLoad, err)
	}
	cpus, err := r.counts(ctx, true)
	if err != nil {
		return LoadStats{}, NewComponentError(ErrorSourceLoad, fmt.Errorf("counting CPUs: %w", err))
	}
	return LoadStats{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15, LogicalCPUs: cpus}, nil
}

// DiskStats is the usage of the filesystem holding Path, in bytes.
type DiskStats struct {
	Path string
	// Total, Used and Free follow statfs; Available excludes blocks
	// reserved for root.
	Total     uint64
	Used      uint64
	Free      uint64
	Available uint64
}

// UsedPercent returns Used as a share of the space visible to users.
func (s DiskStats) UsedPercent() float64 {
	return percentOf(s.Used, s.Used+s.Available)
}

// DiskReader reads filesystem usage through gopsutil.
type DiskReader struct {
	usage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewDiskReader creates a DiskReader backed by the host.
func NewDiskReader() *DiskReader {
	return &DiskReader{usage: disk.UsageWithContext}
}

// Read returns the usage of the filesystem containing path.
func (r *DiskReader) Read(ctx context.Context, path string) (DiskStats, error) {
	u, err := r.usage(ctx, path)
	if err != nil {
		return DiskStats{}, NewComponentError(ErrorSourceDisk, err)
	}
	// gopsutil's Free is the unprivileged Bavail; Total minus Used
	// includes the reserved blocks.
	return DiskStats{
		Path:      path,
		Total:     u.Total,
		Used:      u.Used,
		Free:      u.Total - u.Used,
		Available: u.Free,
	}, nil
}
