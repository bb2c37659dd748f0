package blocks

import (
	"context"
	"fmt"
	"time"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

// Interval is a block update period, written as a number of seconds or as
// "once".
type Interval struct {
	d    time.Duration
	once bool
}

// Seconds returns an Interval of s seconds.
func Seconds(s float64) Interval {
	return Interval{d: time.Duration(s * float64(time.Second))}
}

// Once is an Interval that never elapses.
var Once = Interval{once: true}

// UnmarshalTOML implements toml.Unmarshaler.
func (i *Interval) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		*i = Seconds(float64(v))
	case float64:
		*i = Seconds(v)
	case string:
		if v != "once" {
			return fmt.Errorf("interval must be a number of seconds or \"once\", got %q", v)
		}
		*i = Once
		return nil
	default:
		return fmt.Errorf("interval must be a number of seconds, got %T", v)
	}
	if i.d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

// Duration returns the period, or 0 for Once.
func (i Interval) Duration() time.Duration {
	if i.once {
		return 0
	}
	return i.d
}

// Once reports whether the interval never elapses.
func (i Interval) Once() bool {
	return i.once
}

// Wait blocks until interval elapses, an event arrives or ctx is done. It
// returns the event and true when woken by one. A closed events channel
// behaves like a channel that never delivers.
func Wait(ctx context.Context, interval Interval, events <-chan Event) (Event, bool, error) {
	var timeout <-chan time.Time
	if d := interval.Duration(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return Event{}, false, ctx.Err()
		case <-timeout:
			return Event{}, false, nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			return ev, true, nil
		}
	}
}

// FormatOptions are the format keys shared by most blocks.
type FormatOptions struct {
	Format      *string `toml:"format"`
	FormatAlt   *string `toml:"format_alt"`
	ShortFormat *string `toml:"short_format"`
}

// Formats holds a block's main format and, when configured, the alternate
// one a left click switches to.
type Formats struct {
	main, alt *formatting.Format
	showAlt   bool
}

// Build parses the configured formats, falling back to def for the main
// format. The short format applies to both the main and the alternate
// format.
func (o FormatOptions) Build(def string) (*Formats, error) {
	full := def
	if o.Format != nil {
		full = *o.Format
	}
	short := ""
	if o.ShortFormat != nil {
		short = *o.ShortFormat
	}

	main, err := formatting.NewFormat(full, short)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	f := &Formats{main: main}
	if o.FormatAlt != nil {
		if f.alt, err = formatting.NewFormat(*o.FormatAlt, short); err != nil {
			return nil, fmt.Errorf("format_alt: %w", err)
		}
	}
	return f, nil
}

// Current returns the format in use.
func (f *Formats) Current() *formatting.Format {
	if f.showAlt && f.alt != nil {
		return f.alt
	}
	return f.main
}

// HandleClick switches to the other format on a left click on the block
// itself. It reports whether the format changed.
func (f *Formats) HandleClick(ev Event) bool {
	if f.alt == nil || ev.Kind != EventClick || ev.Button != protocol.ButtonLeft || ev.Instance != protocol.NoID {
		return false
	}
	f.showAlt = !f.showAlt
	return true
}

// ContainsKey reports whether either format uses placeholder name.
func (f *Formats) ContainsKey(name string) bool {
	return f.main.ContainsKey(name) || (f.alt != nil && f.alt.ContainsKey(name))
}

// Thresholds maps a rising value to a state: above Critical is critical,
// above Warning is warning and above Info is info.
type Thresholds struct {
	Info, Warning, Critical float64
}

// State returns the state for v.
func (t Thresholds) State(v float64) widget.State {
	switch {
	case v > t.Critical:
		return widget.StateCritical
	case v > t.Warning:
		return widget.StateWarning
	case v > t.Info:
		return widget.StateInfo
	}
	return widget.StateIdle
}

// interval returns i, or def when i is unset.
func interval(i *Interval, def float64) Interval {
	if i == nil {
		return Seconds(def)
	}
	return *i
}
