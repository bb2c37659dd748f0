package blocks

import (
	"context"
	"fmt"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("disk_space", newDiskSpace) }

type diskSpaceConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	Path     string    `toml:"path"`
	// InfoType selects what percentage and the thresholds refer to:
	// "available", "free" or "used".
	InfoType string   `toml:"info_type"`
	Warning  *float64 `toml:"warning"`
	Alert    *float64 `toml:"alert"`
}

type diskSpaceBlock struct {
	every          Interval
	formats        *Formats
	path           string
	infoType       string
	warning, alert float64
	reader         interface {
		Read(ctx context.Context, path string) (monitor.DiskStats, error)
	}
}

func newDiskSpace(dec Decoder) (Block, error) {
	var cfg diskSpaceConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$available.eng(3,B)")
	if err != nil {
		return nil, err
	}
	b := &diskSpaceBlock{
		every:    interval(cfg.Interval, 20),
		formats:  formats,
		path:     cfg.Path,
		infoType: cfg.InfoType,
		warning:  orDefault(cfg.Warning, 20),
		alert:    orDefault(cfg.Alert, 10),
		reader:   monitor.NewDiskReader(),
	}
	if b.path == "" {
		b.path = "/"
	}
	switch b.infoType {
	case "":
		b.infoType = "available"
	case "available", "free", "used":
	default:
		return nil, fmt.Errorf("info_type must be available, free or used, got %q", cfg.InfoType)
	}
	return b, nil
}

func (b *diskSpaceBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("disk_drive"); err != nil {
		return fail("disk_space", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *diskSpaceBlock) update(ctx context.Context, api *API) error {
	stats, err := b.reader.Read(ctx, b.path)
	if err != nil {
		return fail("disk_space", "failed to read filesystem usage", err)
	}
	pct := b.percentage(stats)
	api.Update(b.values(stats, pct), b.state(pct))
	return nil
}

func (b *diskSpaceBlock) values(stats monitor.DiskStats, pct float64) formatting.Values {
	bytes := func(v uint64) formatting.Value { return formatting.Number(float64(v)).Bytes() }
	return formatting.Values{
		"path":       formatting.Text(b.path),
		"total":      bytes(stats.Total),
		"used":       bytes(stats.Used),
		"free":       bytes(stats.Free),
		"available":  bytes(stats.Available),
		"percentage": formatting.Number(pct).Percents(),
	}
}

func (b *diskSpaceBlock) percentage(s monitor.DiskStats) float64 {
	if b.infoType == "used" {
		return s.UsedPercent()
	}
	if s.Total == 0 {
		return 0
	}
	v := s.Available
	if b.infoType == "free" {
		v = s.Free
	}
	return float64(v) / float64(s.Total) * 100
}

// state compares pct with the thresholds: upwards for used space,
// downwards for free and available space.
func (b *diskSpaceBlock) state(pct float64) widget.State {
	if b.infoType == "used" {
		switch {
		case pct >= b.alert:
			return widget.StateCritical
		case pct >= b.warning:
			return widget.StateWarning
		}
		return widget.StateIdle
	}
	switch {
	case pct <= b.alert:
		return widget.StateCritical
	case pct <= b.warning:
		return widget.StateWarning
	}
	return widget.StateIdle
}
