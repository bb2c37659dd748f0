package blocks

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("temperature", newTemperature) }

type temperatureConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// Chip is a glob matched against hwmon chip names.
	Chip string `toml:"chip"`
	// Inputs restricts the sensors to these labels.
	Inputs  []string `toml:"inputs"`
	Good    *float64 `toml:"good"`
	Idle    *float64 `toml:"idle"`
	Info    *float64 `toml:"info"`
	Warning *float64 `toml:"warning"`
}

type temperatureBlock struct {
	every   Interval
	formats *Formats
	chip    string
	inputs  []string

	good, idle, info, warning float64
	reader                    *monitor.HwmonReader
}

func newTemperature(dec Decoder) (Block, error) {
	var cfg temperatureConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$average.eng(2)")
	if err != nil {
		return nil, err
	}
	if cfg.Chip != "" {
		if _, err := path.Match(cfg.Chip, ""); err != nil {
			return nil, fmt.Errorf("chip: %w", err)
		}
	}
	return &temperatureBlock{
		every:   interval(cfg.Interval, 5),
		formats: formats,
		chip:    cfg.Chip,
		inputs:  cfg.Inputs,
		good:    orDefault(cfg.Good, 20),
		idle:    orDefault(cfg.Idle, 45),
		info:    orDefault(cfg.Info, 60),
		warning: orDefault(cfg.Warning, 80),
		reader:  monitor.NewHwmonReader(),
	}, nil
}

func (b *temperatureBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("thermometer"); err != nil {
		return fail("temperature", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *temperatureBlock) update(_ context.Context, api *API) error {
	sensors, err := b.reader.Read()
	if err != nil {
		return fail("temperature", "failed to read sensors", err)
	}
	temps := b.filter(sensors)
	if len(temps) == 0 {
		return fail("temperature", "no sensor matches", monitor.ErrNotAvailable)
	}

	api.Update(temperatureValues(temps), b.state(slices.Max(temps)))
	return nil
}

// temperatureValues summarises temps, which must not be empty.
func temperatureValues(temps []float64) formatting.Values {
	sum := 0.0
	for _, t := range temps {
		sum += t
	}
	return formatting.Values{
		"min":     formatting.Number(slices.Min(temps)).Degrees(),
		"average": formatting.Number(sum / float64(len(temps))).Degrees(),
		"max":     formatting.Number(slices.Max(temps)).Degrees(),
	}
}

func (b *temperatureBlock) filter(sensors []monitor.TempSensor) []float64 {
	var temps []float64
	for _, s := range sensors {
		if b.chip != "" {
			if ok, _ := path.Match(b.chip, s.Chip); !ok {
				continue
			}
		}
		if len(b.inputs) > 0 && !slices.Contains(b.inputs, s.Label) {
			continue
		}
		temps = append(temps, s.Input)
	}
	return temps
}

func (b *temperatureBlock) state(t float64) widget.State {
	switch {
	case t <= b.good:
		return widget.StateGood
	case t <= b.idle:
		return widget.StateIdle
	case t <= b.info:
		return widget.StateInfo
	case t <= b.warning:
		return widget.StateWarning
	}
	return widget.StateCritical
}
