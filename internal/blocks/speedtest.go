package blocks

import (
	"context"
	"encoding/json"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("speedtest", newSpeedtest) }

type speedtestConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
}

// speedtestResult is the subset of `speedtest-cli --json` the block uses.
// Ping is in milliseconds, speeds in bits per second.
type speedtestResult struct {
	Ping     float64 `json:"ping"`
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
}

type speedtestBlock struct {
	every   Interval
	formats *Formats
	run     func(ctx context.Context, cmdline string) (string, error)
}

func newSpeedtest(dec Decoder) (Block, error) {
	var cfg speedtestConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$ping.eng(3) $speed_down.eng(3) $speed_up.eng(3)")
	if err != nil {
		return nil, err
	}
	return &speedtestBlock{
		every:   interval(cfg.Interval, 1800),
		formats: formats,
		run:     subprocess.Output,
	}, nil
}

func (b *speedtestBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("ping"); err != nil {
		return fail("speedtest", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *speedtestBlock) update(ctx context.Context, api *API) error {
	out, err := b.run(ctx, "speedtest-cli --json")
	if err != nil {
		return fail("speedtest", "failed to run speedtest-cli", err)
	}
	var res speedtestResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return fail("speedtest", "failed to parse speedtest-cli output", err)
	}
	api.Update(speedtestValues(res, api.Glyph), widget.StateIdle)
	return nil
}

func speedtestValues(res speedtestResult, glyph func(string) string) formatting.Values {
	return formatting.Values{
		"ping":       formatting.Number(res.Ping / 1000).Seconds(),
		"speed_down": formatting.Number(res.Download).BitsPerSecond().WithIcon(glyph("net_down")),
		"speed_up":   formatting.Number(res.Upload).BitsPerSecond().WithIcon(glyph("net_up")),
	}
}
