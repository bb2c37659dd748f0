package blocks

import (
	"context"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("backlight", newBacklight) }

type backlightConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// Device is a directory name under /sys/class/backlight.
	Device    string   `toml:"device"`
	StepWidth *float64 `toml:"step_width"`
	Minimum   *float64 `toml:"minimum"`
}

// backlight is the part of monitor.BacklightReader the block uses.
type backlight interface {
	Brightness() (float64, error)
	SetBrightness(percent, minimum float64) error
}

type backlightBlock struct {
	every     Interval
	formats   *Formats
	step, min float64
	light     backlight
}

func newBacklight(dec Decoder) (Block, error) {
	var cfg backlightConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$brightness.eng(2)")
	if err != nil {
		return nil, err
	}
	return &backlightBlock{
		every:   interval(cfg.Interval, 5),
		formats: formats,
		step:    orDefault(cfg.StepWidth, 5),
		min:     orDefault(cfg.Minimum, 1),
		light:   monitor.NewBacklightReader(cfg.Device),
	}, nil
}

func (b *backlightBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update, handle: b.handle}.run(ctx, api, events)
}

func (b *backlightBlock) update(_ context.Context, api *API) error {
	pct, err := b.light.Brightness()
	if err != nil {
		return fail("backlight", "failed to read brightness", err)
	}
	if err := api.SetIcon(backlightIcon(pct)); err != nil {
		return fail("backlight", "missing icon", err)
	}
	api.Update(backlightValues(pct), widget.StateIdle)
	return nil
}

func backlightValues(pct float64) formatting.Values {
	return formatting.Values{"brightness": formatting.Number(pct).Percents()}
}

func (b *backlightBlock) handle(_ context.Context, _ *API, ev Event) error {
	if ev.Kind != EventClick {
		return nil
	}
	var delta float64
	switch ev.Button {
	case protocol.ButtonWheelUp:
		delta = b.step
	case protocol.ButtonWheelDown:
		delta = -b.step
	default:
		return nil
	}
	pct, err := b.light.Brightness()
	if err != nil {
		return fail("backlight", "failed to read brightness", err)
	}
	return fail("backlight", "failed to set brightness", b.light.SetBrightness(pct+delta, b.min))
}

func backlightIcon(pct float64) string {
	switch {
	case pct >= 90:
		return "backlight_full"
	case pct >= 65:
		return "backlight_partial3"
	case pct >= 40:
		return "backlight_partial2"
	case pct >= 15:
		return "backlight_partial1"
	}
	return "backlight_empty"
}
