package blocks

import (
	"context"
	"errors"
	"math"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("net", newNet) }

// graphWidth is the number of samples drawn by graph_down and graph_up.
const graphWidth = 10

type netConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// Device defaults to the interface holding the default route.
	Device string `toml:"device"`
}

type netBlock struct {
	every    Interval
	formats  *Formats
	device   string
	reader   *monitor.NetworkReader
	wireless *monitor.WirelessReader
	addrs    *monitor.AddressReader

	down, up []float64
}

func newNet(dec Decoder) (Block, error) {
	var cfg netConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$speed_down.eng(3,B/s,K) $speed_up.eng(3,B/s,K)")
	if err != nil {
		return nil, err
	}
	return &netBlock{
		every:    interval(cfg.Interval, 2),
		formats:  formats,
		device:   cfg.Device,
		reader:   monitor.NewNetworkReader(),
		wireless: monitor.NewWirelessReader(),
		addrs:    monitor.NewAddressReader(),
	}, nil
}

func (b *netBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *netBlock) update(ctx context.Context, api *API) error {
	device := b.device
	if device == "" {
		var err error
		if device, err = b.reader.DefaultDevice(); err != nil {
			if errors.Is(err, monitor.ErrNotAvailable) {
				return b.showDown(api, "")
			}
			return fail("net", "failed to find the default route", err)
		}
	}

	stats, err := b.reader.Read(device)
	if err != nil {
		if errors.Is(err, monitor.ErrNotAvailable) {
			return b.showDown(api, device)
		}
		return fail("net", "failed to read interface statistics", err)
	}
	if !stats.Up {
		return b.showDown(api, device)
	}

	b.down = pushSample(b.down, stats.RxBytesPerSec)
	b.up = pushSample(b.up, stats.TxBytesPerSec)

	values := b.values(device, stats, api.Glyph)
	if addrs, err := b.addrs.Read(ctx, device); err == nil {
		if len(addrs.IPv4) > 0 {
			values["ip"] = formatting.Text(addrs.IPv4[0])
		}
		if len(addrs.IPv6) > 0 {
			values["ipv6"] = formatting.Text(addrs.IPv6[0])
		}
	}

	icon := "net_wired"
	if stats.Wireless {
		icon = "net_wireless"
		if info, err := b.wireless.Read(ctx, device); err == nil {
			values["ssid"] = formatting.Text(info.SSID)
			values["signal_strength"] = formatting.Number(info.SignalPercent()).Percents()
		}
	}
	if err := api.SetIcon(icon); err != nil {
		return fail("net", "missing icon", err)
	}
	api.Update(values, widget.StateIdle)
	return nil
}

// values builds the traffic values of device. glyph renders an icon name.
func (b *netBlock) values(device string, stats monitor.InterfaceStats, glyph func(string) string) formatting.Values {
	return formatting.Values{
		"device":     formatting.Text(device),
		"speed_down": formatting.Number(stats.RxBytesPerSec).BytesPerSecond().WithIcon(glyph("net_down")),
		"speed_up":   formatting.Number(stats.TxBytesPerSec).BytesPerSecond().WithIcon(glyph("net_up")),
		"graph_down": formatting.Text(sparkline(b.down)),
		"graph_up":   formatting.Text(sparkline(b.up)),
	}
}

// showDown marks the block critical while the interface is missing or down.
func (b *netBlock) showDown(api *API, device string) error {
	b.down, b.up = nil, nil
	if err := api.SetIcon("net_down"); err != nil {
		return fail("net", "missing icon", err)
	}
	text := "down"
	if device != "" {
		text = device + " down"
	}
	api.Show()
	api.SetState(widget.StateCritical)
	api.SetText(text, "")
	return nil
}

func pushSample(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > graphWidth {
		history = history[len(history)-graphWidth:]
	}
	return history
}

// sparkline draws history scaled to its maximum.
func sparkline(history []float64) string {
	peak := 0.0
	for _, v := range history {
		peak = math.Max(peak, v)
	}
	out := make([]rune, len(history))
	for i, v := range history {
		idx := 0
		if peak > 0 {
			idx = int(math.Round(v / peak * float64(len(barchartGlyphs)-1)))
		}
		out[i] = barchartGlyphs[min(max(idx, 0), len(barchartGlyphs)-1)]
	}
	return string(out)
}
