package blocks

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("time", newTime) }

const defaultTimeFormat = "%a %d/%m %R"

type timeConfig struct {
	FormatOptions
	Interval   *Interval `toml:"interval"`
	TimeFormat *string   `toml:"time_format"`
	Timezone   string    `toml:"timezone"`
}

type timeBlock struct {
	every      Interval
	formats    *Formats
	timeFormat *strftime.Strftime
	loc        *time.Location
	now        func() time.Time
}

func newTime(dec Decoder) (Block, error) {
	var cfg timeConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$timestamp.str()")
	if err != nil {
		return nil, err
	}
	layout := defaultTimeFormat
	if cfg.TimeFormat != nil {
		layout = *cfg.TimeFormat
	}
	timeFormat, err := newStrftime(layout)
	if err != nil {
		return nil, fmt.Errorf("time_format: %w", err)
	}
	b := &timeBlock{
		every:      interval(cfg.Interval, 10),
		formats:    formats,
		timeFormat: timeFormat,
		loc:        time.Local,
		now:        time.Now,
	}
	if cfg.Timezone != "" {
		if b.loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}
	return b, nil
}

func (b *timeBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("time"); err != nil {
		return fail("time", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *timeBlock) update(_ context.Context, api *API) error {
	api.Update(b.values(b.now()), widget.StateIdle)
	return nil
}

func (b *timeBlock) values(now time.Time) formatting.Values {
	now = now.In(b.loc)
	return formatting.Values{
		"timestamp": formatting.Text(b.timeFormat.FormatString(now)),
		"tz":        formatting.Text(now.Format("MST")),
	}
}

// newStrftime compiles a strftime layout. %s is the Unix time in seconds.
func newStrftime(layout string) (*strftime.Strftime, error) {
	return strftime.New(layout, strftime.WithUnixSeconds('s'))
}
