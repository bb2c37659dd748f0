package blocks

import (
	"context"
	"fmt"
	"math"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
)

func init() { Register("cpu", newCPU) }

type cpuConfig struct {
	FormatOptions
	Interval    *Interval `toml:"interval"`
	InfoCPU     *float64  `toml:"info_cpu"`
	WarningCPU  *float64  `toml:"warning_cpu"`
	CriticalCPU *float64  `toml:"critical_cpu"`
}

type cpuBlock struct {
	every      Interval
	formats    *Formats
	thresholds Thresholds
	reader     *monitor.CPUReader
}

func newCPU(dec Decoder) (Block, error) {
	var cfg cpuConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$utilization.eng(3)")
	if err != nil {
		return nil, err
	}
	return &cpuBlock{
		every:   interval(cfg.Interval, 5),
		formats: formats,
		thresholds: Thresholds{
			Info:     orDefault(cfg.InfoCPU, 30),
			Warning:  orDefault(cfg.WarningCPU, 60),
			Critical: orDefault(cfg.CriticalCPU, 90),
		},
		reader: monitor.NewCPUReader(),
	}, nil
}

func (b *cpuBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("cpu"); err != nil {
		return fail("cpu", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *cpuBlock) update(_ context.Context, api *API) error {
	stats, err := b.reader.Read()
	if err != nil {
		return fail("cpu", "failed to read CPU statistics", err)
	}
	api.Update(cpuValues(stats, api), b.thresholds.State(stats.Utilization))
	return nil
}

func cpuValues(stats monitor.CPUStats, api *API) formatting.Values {
	values := formatting.Values{
		"utilization": formatting.Number(stats.Utilization).Percents(),
		"barchart":    formatting.Text(barchart(stats.Cores)),
	}
	for i, u := range stats.Cores {
		values[fmt.Sprintf("utilization%d", i+1)] = formatting.Number(u).Percents()
	}
	if len(stats.Frequencies) > 0 {
		values["frequency"] = formatting.Number(stats.AverageFrequency()).Hertz()
		for i, f := range stats.Frequencies {
			values[fmt.Sprintf("frequency%d", i+1)] = formatting.Number(f).Hertz()
		}
	}
	if stats.Boost != nil {
		icon := "cpu_boost_off"
		if *stats.Boost {
			icon = "cpu_boost_on"
		}
		values["boost"] = formatting.Text(api.Glyph(icon))
	}
	return values
}

var barchartGlyphs = []rune("▁▂▃▄▅▆▇█")

// barchart draws one vertical bar per core utilization.
func barchart(cores []float64) string {
	out := make([]rune, len(cores))
	for i, u := range cores {
		idx := int(math.Round(u / 100 * float64(len(barchartGlyphs)-1)))
		out[i] = barchartGlyphs[min(max(idx, 0), len(barchartGlyphs)-1)]
	}
	return string(out)
}

func orDefault[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
