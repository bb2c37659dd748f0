package blocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("uptime", newUptime) }

type uptimeConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
}

type uptimeBlock struct {
	every   Interval
	formats *Formats
	reader  *monitor.UptimeReader
	now     func() time.Time
}

func newUptime(dec Decoder) (Block, error) {
	var cfg uptimeConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$text.str()")
	if err != nil {
		return nil, err
	}
	return &uptimeBlock{
		every:   interval(cfg.Interval, 60),
		formats: formats,
		reader:  monitor.NewUptimeReader(),
		now:     time.Now,
	}, nil
}

func (b *uptimeBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("uptime"); err != nil {
		return fail("uptime", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *uptimeBlock) update(_ context.Context, api *API) error {
	up, err := b.reader.Read()
	if err != nil {
		return fail("uptime", "failed to read uptime", err)
	}
	api.Update(uptimeValues(up, b.now()), widget.StateIdle)
	return nil
}

func uptimeValues(up time.Duration, now time.Time) formatting.Values {
	return formatting.Values{
		"uptime":  formatting.Number(up.Seconds()).Seconds(),
		"text":    formatting.Text(strings.TrimSpace(humanize.RelTime(now.Add(-up), now, "", ""))),
		"compact": formatting.Text(compactDuration(up)),
	}
}

// compactDuration renders d with its two largest units, e.g. "3d 4h".
func compactDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
