package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const amixerStereo = `Simple mixer control 'Master',0
  Capabilities: pvolume pswitch pswitch-joined
  Playback channels: Front Left - Front Right
  Limits: Playback 0 - 65536
  Mono:
  Front Left: Playback 26000 [40%] [on]
  Front Right: Playback 39321 [60%] [on]
`

const amixerMuted = `Simple mixer control 'Master',0
  Capabilities: pvolume pvolume-joined pswitch pswitch-joined
  Playback channels: Mono
  Limits: Playback 0 - 87
  Mono: Playback 65 [75%] [-16.50dB] [off]
`

func TestParseAmixer(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantVolume float64
		wantMuted  bool
		wantErr    bool
	}{
		{name: "stereo average", output: amixerStereo, wantVolume: 50},
		{name: "muted mono", output: amixerMuted, wantVolume: 75, wantMuted: true},
		{name: "no switch", output: "  Mono: Playback 10 [10%]\n", wantVolume: 10},
		{name: "capture only", output: "Simple mixer control 'Capture',0\n  Capabilities: cswitch\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseAmixer("Master", tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmixer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if info.VolumePercent != tt.wantVolume {
				t.Errorf("VolumePercent = %v, want %v", info.VolumePercent, tt.wantVolume)
			}
			if info.Muted != tt.wantMuted {
				t.Errorf("Muted = %v, want %v", info.Muted, tt.wantMuted)
			}
		})
	}
}

func TestMixerCommands(t *testing.T) {
	var calls []string
	m := NewMixer("pulse", "")
	m.run = func(_ context.Context, args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(args, " "))
		return []byte(amixerStereo), nil
	}
	ctx := context.Background()

	info, err := m.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if info.Name != "Master" || info.VolumePercent != 50 {
		t.Errorf("Read() = %+v", info)
	}
	if err := m.SetVolume(ctx, 130, 100); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if err := m.SetVolume(ctx, 42.4, 150); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if err := m.ToggleMute(ctx); err != nil {
		t.Fatalf("ToggleMute() error = %v", err)
	}

	want := []string{
		"-D pulse get Master",
		"-D pulse set Master 100%",
		"-D pulse set Master 42%",
		"-D pulse set Master toggle",
	}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls = %q, want %q", calls, want)
	}
}

func TestMixerError(t *testing.T) {
	m := NewMixer("", "")
	m.run = func(context.Context, ...string) ([]byte, error) {
		return nil, errors.New("amixer: not found")
	}
	_, err := m.Read(context.Background())
	if !IsComponentError(err, ErrorSourceAudio) {
		t.Errorf("Read() error = %v, want audio component error", err)
	}
}
