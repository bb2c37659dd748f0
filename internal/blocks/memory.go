package blocks

import (
	"context"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("memory", newMemory) }

type memoryConfig struct {
	FormatOptions
	Interval     *Interval `toml:"interval"`
	WarningMem   *float64  `toml:"warning_mem"`
	CriticalMem  *float64  `toml:"critical_mem"`
	WarningSwap  *float64  `toml:"warning_swap"`
	CriticalSwap *float64  `toml:"critical_swap"`
}

type memoryBlock struct {
	every     Interval
	formats   *Formats
	mem, swap Thresholds
	reader    *monitor.MemoryReader
}

func newMemory(dec Decoder) (Block, error) {
	var cfg memoryConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$mem_used.eng(3,B,M)/$mem_total.eng(3,B,M)")
	if err != nil {
		return nil, err
	}
	return &memoryBlock{
		every:   interval(cfg.Interval, 5),
		formats: formats,
		mem: Thresholds{
			Info:     orDefault(cfg.WarningMem, 80),
			Warning:  orDefault(cfg.WarningMem, 80),
			Critical: orDefault(cfg.CriticalMem, 95),
		},
		swap: Thresholds{
			Info:     orDefault(cfg.WarningSwap, 80),
			Warning:  orDefault(cfg.WarningSwap, 80),
			Critical: orDefault(cfg.CriticalSwap, 95),
		},
		reader: monitor.NewMemoryReader(),
	}, nil
}

func (b *memoryBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("memory_mem"); err != nil {
		return fail("memory", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *memoryBlock) update(_ context.Context, api *API) error {
	stats, err := b.reader.Read()
	if err != nil {
		return fail("memory", "failed to read memory statistics", err)
	}
	api.Update(memoryValues(stats), b.state(stats))
	return nil
}

// state is driven by memory use, or by swap use when the format only
// shows swap.
func (b *memoryBlock) state(stats monitor.MemoryStats) widget.State {
	if b.formats.ContainsKey("swap_used") && !b.formats.ContainsKey("mem_used") {
		return b.swap.State(stats.SwapUsedPercent())
	}
	return b.mem.State(stats.UsedPercent())
}

func memoryValues(m monitor.MemoryStats) formatting.Values {
	bytes := func(v uint64) formatting.Value { return formatting.Number(float64(v)).Bytes() }
	percent := func(part uint64) formatting.Value {
		if m.Total == 0 {
			return formatting.Number(0).Percents()
		}
		return formatting.Number(float64(part) / float64(m.Total) * 100).Percents()
	}
	return formatting.Values{
		"mem_total":               bytes(m.Total),
		"mem_free":                bytes(m.Free),
		"mem_free_percents":       percent(m.Free),
		"mem_used":                bytes(m.Used),
		"mem_used_percents":       percent(m.Used),
		"mem_avail":               bytes(m.Available),
		"mem_avail_percents":      percent(m.Available),
		"mem_total_used":          bytes(m.TotalUsed),
		"mem_total_used_percents": percent(m.TotalUsed),
		"buffers":                 bytes(m.Buffers),
		"buffers_percent":         percent(m.Buffers),
		"cached":                  bytes(m.Cached),
		"cached_percent":          percent(m.Cached),
		"swap_total":              bytes(m.SwapTotal),
		"swap_free":               bytes(m.SwapFree),
		"swap_used":               bytes(m.SwapUsed),
		"swap_used_percents":      formatting.Number(m.SwapUsedPercent()).Percents(),
	}
}
