package blocks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("taskwarrior", newTaskwarrior) }

// taskFilter is a named taskwarrior filter expression.
type taskFilter struct {
	Name   string `toml:"name"`
	Filter string `toml:"filter"`
}

type taskwarriorConfig struct {
	FormatOptions
	// FormatSingular is used when exactly one task matches.
	FormatSingular *string `toml:"format_singular"`
	// FormatEverythingDone is used when no task matches.
	FormatEverythingDone *string      `toml:"format_everything_done"`
	Interval             *Interval    `toml:"interval"`
	Warning              *int         `toml:"warning_threshold"`
	Critical             *int         `toml:"critical_threshold"`
	HideWhenZero         bool         `toml:"hide_when_zero"`
	Filters              []taskFilter `toml:"filters"`
}

type taskwarriorBlock struct {
	every        Interval
	formats      *Formats
	singular     *formatting.Format
	done         *formatting.Format
	warning      int
	critical     int
	hideWhenZero bool
	filters      []taskFilter
	current      int
	run          func(ctx context.Context, cmdline string) (string, error)
}

func newTaskwarrior(dec Decoder) (Block, error) {
	var cfg taskwarriorConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$count.eng(1)")
	if err != nil {
		return nil, err
	}
	short := ""
	if cfg.ShortFormat != nil {
		short = *cfg.ShortFormat
	}
	b := &taskwarriorBlock{
		every:        interval(cfg.Interval, 600),
		formats:      formats,
		warning:      orDefault(cfg.Warning, 10),
		critical:     orDefault(cfg.Critical, 20),
		hideWhenZero: cfg.HideWhenZero,
		filters:      cfg.Filters,
		run:          subprocess.Output,
	}
	if cfg.FormatSingular != nil {
		if b.singular, err = formatting.NewFormat(*cfg.FormatSingular, short); err != nil {
			return nil, fmt.Errorf("format_singular: %w", err)
		}
	}
	if cfg.FormatEverythingDone != nil {
		if b.done, err = formatting.NewFormat(*cfg.FormatEverythingDone, short); err != nil {
			return nil, fmt.Errorf("format_everything_done: %w", err)
		}
	}
	if len(b.filters) == 0 {
		b.filters = []taskFilter{{Name: "pending", Filter: "-COMPLETED -DELETED"}}
	}
	for _, f := range b.filters {
		if f.Name == "" {
			return nil, errors.New("filters: every filter needs a 'name'")
		}
	}
	return b, nil
}

func (b *taskwarriorBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("tasks"); err != nil {
		return fail("taskwarrior", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update, handle: b.handle}.run(ctx, api, events)
}

// handle moves to the next filter on a right click.
func (b *taskwarriorBlock) handle(_ context.Context, _ *API, ev Event) error {
	if ev.Kind == EventClick && ev.Button == protocol.ButtonRight && ev.Instance == protocol.NoID {
		b.current = (b.current + 1) % len(b.filters)
	}
	return nil
}

func (b *taskwarriorBlock) update(ctx context.Context, api *API) error {
	filter := b.filters[b.current]
	out, err := b.run(ctx, "task rc.gc=off "+filter.Filter+" count")
	if err != nil {
		return fail("taskwarrior", "failed to run task", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return fail("taskwarrior", "failed to parse the task count", err)
	}

	if count == 0 && b.hideWhenZero {
		api.Hide()
		return nil
	}
	api.SetFormat(b.format(count))
	state := widget.StateIdle
	switch {
	case count >= b.critical:
		state = widget.StateCritical
	case count >= b.warning:
		state = widget.StateWarning
	}
	api.Update(taskValues(count, filter.Name), state)
	return nil
}

// format picks the format for count tasks.
func (b *taskwarriorBlock) format(count int) *formatting.Format {
	switch {
	case count == 0 && b.done != nil:
		return b.done
	case count == 1 && b.singular != nil:
		return b.singular
	}
	return b.formats.Current()
}

func taskValues(count int, filter string) formatting.Values {
	return formatting.Values{
		"count":       formatting.Int(int64(count)),
		"filter_name": formatting.Text(filter),
	}
}
