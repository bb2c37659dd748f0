package blocks

import (
	"context"
	"errors"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("focused_window", newFocusedWindow) }

type focusedWindowConfig struct {
	FormatOptions
}

// windowSource is the part of monitor.WindowReader the block uses.
type windowSource interface {
	Watch(ctx context.Context) (<-chan string, error)
}

type focusedWindowBlock struct {
	formats *Formats
	source  windowSource
}

func newFocusedWindow(dec Decoder) (Block, error) {
	var cfg focusedWindowConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$title.str(0,40)")
	if err != nil {
		return nil, err
	}
	return &focusedWindowBlock{formats: formats, source: monitor.NewWindowReader()}, nil
}

// Run follows X11 focus changes instead of polling.
func (b *focusedWindowBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	titles, err := b.source.Watch(ctx)
	if err != nil {
		return fail("focused_window", "failed to watch the focused window", err)
	}
	api.SetFormat(b.formats.Current())

	title := ""
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-titles:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fail("focused_window", "lost the X connection", errors.New("watch closed"))
			}
			title = t
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !b.formats.HandleClick(ev) {
				continue
			}
			api.SetFormat(b.formats.Current())
		}

		if title == "" {
			api.Hide()
		} else {
			api.Update(windowValues(title), widget.StateIdle)
		}
		if err := api.Flush(ctx); err != nil {
			return nil
		}
	}
}

func windowValues(title string) formatting.Values {
	return formatting.Values{"title": formatting.Text(title)}
}
