package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

const procWireless = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
wlan0: 0000   56.  -54.  -256        0      0      0      0      0        0
wlan1: 0000   80   -30   -256        0      0      0      0      0        0
`

const iwLinkOutput = `Connected to 00:11:22:33:44:55 (on wlan0)
	SSID: Home Network
	freq: 5180
	signal: -54 dBm
`

func TestParseProcWirelessLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantIface string
		want      WirelessInfo
		wantErr   bool
	}{
		{"updated values", "wlan0: 0000   56.  -54.  -256   0 0 0 0 0 0", "wlan0", WirelessInfo{LinkQuality: 56, SignalLevel: -54}, false},
		{"plain values", "wlp3s0: 0000 70 -40 -95", "wlp3s0", WirelessInfo{LinkQuality: 70, SignalLevel: -40}, false},
		{"no colon", "wlan0 0000 70 -40", "", WirelessInfo{}, true},
		{"too short", "wlan0: 0000", "", WirelessInfo{}, true},
		{"bad quality", "wlan0: 0000 abc -40", "", WirelessInfo{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iface, info, err := parseProcWirelessLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProcWirelessLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if iface != tt.wantIface || info != tt.want {
				t.Errorf("parseProcWirelessLine() = %q %+v, want %q %+v", iface, info, tt.wantIface, tt.want)
			}
		})
	}
}

func TestWirelessReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wireless")
	writeFile(t, path, procWireless)

	r := &WirelessReader{
		ProcWirelessPath: path,
		iwLink: func(_ context.Context, device string) (string, error) {
			if device != "wlan0" {
				return "", errors.New("exit status 1")
			}
			return iwLinkOutput, nil
		},
	}

	info, err := r.Read(context.Background(), "wlan0")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if info.SSID != "Home Network" {
		t.Errorf("SSID = %q, want %q", info.SSID, "Home Network")
	}
	if got := info.SignalPercent(); got != 80 {
		t.Errorf("SignalPercent() = %v, want 80", got)
	}

	info, err = r.Read(context.Background(), "wlan1")
	if err != nil {
		t.Fatalf("Read(wlan1) error = %v", err)
	}
	if info.SSID != "" {
		t.Errorf("SSID = %q, want empty when iw fails", info.SSID)
	}
	if got := info.SignalPercent(); got != 100 {
		t.Errorf("SignalPercent() = %v, want clamped 100", got)
	}

	if _, err := r.Read(context.Background(), "eth0"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Read(eth0) error = %v, want ErrNotAvailable", err)
	}
}

func TestParseIWSSID(t *testing.T) {
	if got := parseIWSSID(iwLinkOutput); got != "Home Network" {
		t.Errorf("parseIWSSID() = %q", got)
	}
	if got := parseIWSSID("Not connected.\n"); got != "" {
		t.Errorf("parseIWSSID(not connected) = %q, want empty", got)
	}
}
