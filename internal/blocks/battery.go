package blocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("battery", newBattery) }

type batteryConfig struct {
	FormatOptions
	Interval    *Interval `toml:"interval"`
	Device      string    `toml:"device"`
	HideMissing bool      `toml:"hide_missing"`
	Good        *float64  `toml:"good"`
	Warning     *float64  `toml:"warning"`
	Critical    *float64  `toml:"critical"`
}

type batteryBlock struct {
	every       Interval
	formats     *Formats
	device      string
	hideMissing bool

	good, warning, critical float64
	reader                  *monitor.BatteryReader
}

func newBattery(dec Decoder) (Block, error) {
	var cfg batteryConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$percentage.eng(2)")
	if err != nil {
		return nil, err
	}
	return &batteryBlock{
		every:       interval(cfg.Interval, 10),
		formats:     formats,
		device:      cfg.Device,
		hideMissing: cfg.HideMissing,
		good:        orDefault(cfg.Good, 60),
		warning:     orDefault(cfg.Warning, 30),
		critical:    orDefault(cfg.Critical, 15),
		reader:      monitor.NewBatteryReader(),
	}, nil
}

func (b *batteryBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *batteryBlock) update(_ context.Context, api *API) error {
	info, err := b.reader.Read(b.device)
	switch {
	case errors.Is(err, monitor.ErrNotAvailable):
		if b.hideMissing {
			api.Hide()
			return nil
		}
		if err := api.SetIcon("bat_not_available"); err != nil {
			return fail("battery", "missing icon", err)
		}
		api.Show()
		api.SetState(widget.StateIdle)
		api.SetText("N/A", "")
		return nil
	case err != nil:
		return fail("battery", "failed to read battery", err)
	}

	if err := api.SetIcon(batteryIcon(info)); err != nil {
		return fail("battery", "missing icon", err)
	}
	api.Update(batteryValues(info), b.state(info))
	return nil
}

func batteryValues(info monitor.BatteryInfo) formatting.Values {
	values := formatting.Values{
		"percentage": formatting.Number(info.Capacity).Percents(),
		"power":      formatting.Number(info.Power).Watts(),
		"time":       formatting.Text(hoursMinutes(info.TimeRemaining)),
	}
	if info.TimeRemaining > 0 {
		values["time_seconds"] = formatting.Number(info.TimeRemaining.Seconds()).Seconds()
	}
	return values
}

// hoursMinutes renders d as h:mm, or "" for zero.
func hoursMinutes(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Minute)
	return fmt.Sprintf("%d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func (b *batteryBlock) state(info monitor.BatteryInfo) widget.State {
	switch {
	case info.Status == monitor.BatteryCharging, info.Status == monitor.BatteryFull:
		return widget.StateGood
	case info.Capacity > b.good:
		return widget.StateGood
	case info.Capacity > b.warning:
		return widget.StateIdle
	case info.Capacity > b.critical:
		return widget.StateWarning
	}
	return widget.StateCritical
}

func batteryIcon(info monitor.BatteryInfo) string {
	switch {
	case info.Status == monitor.BatteryCharging:
		return "bat_charging"
	case info.Status == monitor.BatteryFull || info.Capacity >= 90:
		return "bat_full"
	case info.Capacity >= 65:
		return "bat_three_quarters"
	case info.Capacity >= 40:
		return "bat_half"
	case info.Capacity >= 15:
		return "bat_quarter"
	}
	return "bat_empty"
}
