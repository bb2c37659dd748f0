package blocks

import (
	"context"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("sound", newSound) }

type soundConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	Device   string    `toml:"device"`
	// Control is the ALSA simple mixer control, "Master" by default.
	Control   string   `toml:"control"`
	StepWidth *float64 `toml:"step_width"`
	MaxVolume *float64 `toml:"max_vol"`
}

// mixer is the part of monitor.Mixer the block uses.
type mixer interface {
	Read(ctx context.Context) (monitor.MixerInfo, error)
	SetVolume(ctx context.Context, percent, maxVolume float64) error
	ToggleMute(ctx context.Context) error
}

type soundBlock struct {
	every        Interval
	formats      *Formats
	step, maxVol float64
	mixer        mixer
}

func newSound(dec Decoder) (Block, error) {
	var cfg soundConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$volume.eng(2)")
	if err != nil {
		return nil, err
	}
	return &soundBlock{
		every:   interval(cfg.Interval, 2),
		formats: formats,
		step:    orDefault(cfg.StepWidth, 5),
		maxVol:  orDefault(cfg.MaxVolume, 100),
		mixer:   monitor.NewMixer(cfg.Device, cfg.Control),
	}, nil
}

func (b *soundBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update, handle: b.handle}.run(ctx, api, events)
}

func (b *soundBlock) update(ctx context.Context, api *API) error {
	info, err := b.mixer.Read(ctx)
	if err != nil {
		return fail("sound", "failed to read mixer", err)
	}
	if err := api.SetIcon(volumeIcon(info)); err != nil {
		return fail("sound", "missing icon", err)
	}
	state := widget.StateIdle
	if info.Muted {
		state = widget.StateWarning
	}
	api.Update(soundValues(info), state)
	return nil
}

func soundValues(info monitor.MixerInfo) formatting.Values {
	values := formatting.Values{
		"volume": formatting.Number(info.VolumePercent).Percents(),
	}
	if info.Muted {
		values["muted"] = formatting.Flag()
	}
	return values
}

// handle toggles mute on a right click and steps the volume on the wheel.
// A left click is left to format_alt.
func (b *soundBlock) handle(ctx context.Context, _ *API, ev Event) error {
	if ev.Kind != EventClick {
		return nil
	}
	switch ev.Button {
	case protocol.ButtonRight:
		return fail("sound", "failed to toggle mute", b.mixer.ToggleMute(ctx))
	case protocol.ButtonWheelUp, protocol.ButtonWheelDown:
		info, err := b.mixer.Read(ctx)
		if err != nil {
			return fail("sound", "failed to read mixer", err)
		}
		delta := b.step
		if ev.Button == protocol.ButtonWheelDown {
			delta = -delta
		}
		return fail("sound", "failed to set volume", b.mixer.SetVolume(ctx, info.VolumePercent+delta, b.maxVol))
	}
	return nil
}

func volumeIcon(info monitor.MixerInfo) string {
	switch {
	case info.Muted:
		return "volume_muted"
	case info.VolumePercent >= 66:
		return "volume_full"
	case info.VolumePercent >= 33:
		return "volume_half"
	}
	return "volume_empty"
}
