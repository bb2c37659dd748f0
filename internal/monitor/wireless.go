package monitor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// linkQualityMax is the scale of the link quality column of
// /proc/net/wireless used by cfg80211 drivers.
const linkQualityMax = 70

// WirelessInfo holds the state of a wireless link.
type WirelessInfo struct {
	SSID        string
	LinkQuality int
	// SignalLevel is in dBm.
	SignalLevel int
}

// SignalPercent returns link quality as a percentage (0-100).
func (info WirelessInfo) SignalPercent() float64 {
	pct := float64(info.LinkQuality) * 100 / linkQualityMax
	return min(max(pct, 0), 100)
}

// WirelessReader reads link quality from /proc/net/wireless and the SSID
// from "iw dev <device> link".
type WirelessReader struct {
	ProcWirelessPath string
	iwLink           func(ctx context.Context, device string) (string, error)
}

// NewWirelessReader creates a WirelessReader with default paths.
func NewWirelessReader() *WirelessReader {
	return &WirelessReader{
		ProcWirelessPath: "/proc/net/wireless",
		iwLink: func(ctx context.Context, device string) (string, error) {
			out, err := exec.CommandContext(ctx, "iw", "dev", device, "link").Output()
			return string(out), err
		},
	}
}

// Read returns the wireless state of device. A device without an
// association reports ErrNotAvailable.
func (r *WirelessReader) Read(ctx context.Context, device string) (WirelessInfo, error) {
	all, err := r.parseProcWireless()
	if err != nil {
		return WirelessInfo{}, NewComponentError(ErrorSourceWireless, err)
	}
	info, ok := all[device]
	if !ok {
		return WirelessInfo{}, NewComponentError(ErrorSourceWireless, fmt.Errorf("device %q: %w", device, ErrNotAvailable))
	}

	// The SSID is optional: iw may be missing.
	if out, err := r.iwLink(ctx, device); err == nil {
		info.SSID = parseIWSSID(out)
	}
	return info, nil
}

// parseProcWireless parses /proc/net/wireless. Format:
//
//	Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
//	 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
//	wlan0: 0000   70.  -40.  -256        0      0      0      0      0        0
func (r *WirelessReader) parseProcWireless() (map[string]WirelessInfo, error) {
	file, err := os.Open(r.ProcWirelessPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", r.ProcWirelessPath, err)
	}
	defer file.Close()

	result := make(map[string]WirelessInfo)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= 2 {
			continue
		}
		iface, info, err := parseProcWirelessLine(scanner.Text())
		if err != nil {
			continue
		}
		result[iface] = info
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", r.ProcWirelessPath, err)
	}
	return result, nil
}

func parseProcWirelessLine(line string) (string, WirelessInfo, error) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", WirelessInfo{}, fmt.Errorf("no colon separator")
	}
	iface := strings.TrimSpace(name)
	fields := strings.Fields(rest)
	if iface == "" || len(fields) < 3 {
		return "", WirelessInfo{}, fmt.Errorf("too few fields: %d", len(fields))
	}

	// Values carry a trailing '.' when they were updated since the last read.
	num := func(s string) (int, error) {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "."), 64)
		return int(f), err
	}
	quality, err := num(fields[1])
	if err != nil {
		return "", WirelessInfo{}, fmt.Errorf("parsing link quality: %w", err)
	}
	level, err := num(fields[2])
	if err != nil {
		return "", WirelessInfo{}, fmt.Errorf("parsing signal level: %w", err)
	}
	return iface, WirelessInfo{LinkQuality: quality, SignalLevel: level}, nil
}

func parseIWSSID(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if ssid, ok := strings.CutPrefix(strings.TrimSpace(line), "SSID: "); ok {
			return ssid
		}
	}
	return ""
}
