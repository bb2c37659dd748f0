package blocks

import (
	"context"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
)

func init() { Register("load", newLoad) }

type loadConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	Info     *float64  `toml:"info"`
	Warning  *float64  `toml:"warning"`
	Critical *float64  `toml:"critical"`
}

type loadBlock struct {
	every      Interval
	formats    *Formats
	thresholds Thresholds
	reader     interface {
		Read(ctx context.Context) (monitor.LoadStats, error)
	}
}

func newLoad(dec Decoder) (Block, error) {
	var cfg loadConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$1m.eng(4)")
	if err != nil {
		return nil, err
	}
	return &loadBlock{
		every:   interval(cfg.Interval, 3),
		formats: formats,
		// Thresholds apply to the load per logical CPU.
		thresholds: Thresholds{
			Info:     orDefault(cfg.Info, 0.3),
			Warning:  orDefault(cfg.Warning, 0.6),
			Critical: orDefault(cfg.Critical, 0.9),
		},
		reader: monitor.NewLoadReader(),
	}, nil
}

func (b *loadBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("load"); err != nil {
		return fail("load", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *loadBlock) update(ctx context.Context, api *API) error {
	stats, err := b.reader.Read(ctx)
	if err != nil {
		return fail("load", "failed to read load averages", err)
	}
	api.Update(loadValues(stats), b.thresholds.State(stats.PerCore()))
	return nil
}

func loadValues(stats monitor.LoadStats) formatting.Values {
	return formatting.Values{
		"1m":  formatting.Number(stats.Load1),
		"5m":  formatting.Number(stats.Load5),
		"15m": formatting.Number(stats.Load15),
	}
}
