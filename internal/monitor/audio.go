package monitor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// amixerChannelRegex matches a channel line of `amixer get`, e.g.
// "  Front Left: Playback 26000 [40%] [-20.00dB] [on]".
var amixerChannelRegex = regexp.MustCompile(`\[(\d+)%\](?:.*\[(on|off)\])?`)

// MixerInfo represents an ALSA simple mixer control.
type MixerInfo struct {
	Name string
	// VolumePercent is the mean volume over all channels.
	VolumePercent float64
	// Muted is set when every channel with a switch is off.
	Muted bool
}

// Mixer reads and controls an ALSA simple mixer control through amixer.
type Mixer struct {
	Device  string
	Control string

	// run executes amixer with args and returns its standard output.
	run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewMixer creates a Mixer for control on device. Empty values default to
// "default" and "Master".
func NewMixer(device, control string) *Mixer {
	if device == "" {
		device = "default"
	}
	if control == "" {
		control = "Master"
	}
	return &Mixer{Device: device, Control: control, run: runAmixer}
}

func runAmixer(ctx context.Context, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "amixer", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("amixer: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("amixer: %w", err)
	}
	return out, nil
}

// Read returns the current volume and mute state.
func (m *Mixer) Read(ctx context.Context) (MixerInfo, error) {
	out, err := m.run(ctx, "-D", m.Device, "get", m.Control)
	if err != nil {
		return MixerInfo{}, NewComponentError(ErrorSourceAudio, err)
	}
	info, err := parseAmixer(m.Control, string(out))
	return info, NewComponentError(ErrorSourceAudio, err)
}

// SetVolume sets the volume to percent, clamped to [0, maxVolume].
func (m *Mixer) SetVolume(ctx context.Context, percent, maxVolume float64) error {
	percent = min(max(percent, 0), maxVolume)
	arg := strconv.FormatFloat(percent, 'f', 0, 64) + "%"
	_, err := m.run(ctx, "-D", m.Device, "set", m.Control, arg)
	return NewComponentError(ErrorSourceAudio, err)
}

// ToggleMute flips the playback switch.
func (m *Mixer) ToggleMute(ctx context.Context) error {
	_, err := m.run(ctx, "-D", m.Device, "set", m.Control, "toggle")
	return NewComponentError(ErrorSourceAudio, err)
}

func parseAmixer(control, output string) (MixerInfo, error) {
	info := MixerInfo{Name: control}

	var (
		total      float64
		channels   int
		switches   int
		switchesOn int
	)
	for _, line := range strings.Split(output, "\n") {
		m := amixerChannelRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		total += v
		channels++
		if m[2] != "" {
			switches++
			if m[2] == "on" {
				switchesOn++
			}
		}
	}

	if channels == 0 {
		return info, fmt.Errorf("control %q has no volume", control)
	}
	info.VolumePercent = total / float64(channels)
	info.Muted = switches > 0 && switchesOn == 0
	return info, nil
}
