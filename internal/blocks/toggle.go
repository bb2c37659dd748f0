package blocks

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("toggle", newToggle) }

type toggleConfig struct {
	FormatOptions
	// Interval is unset by default: the state is only checked after clicks.
	Interval *Interval `toml:"interval"`
	// CommandState prints something when the toggle is on.
	CommandState string `toml:"command_state"`
	CommandOn    string `toml:"command_on"`
	CommandOff   string `toml:"command_off"`
	Text         string `toml:"text"`
}

type toggleBlock struct {
	every    Interval
	formats  *Formats
	cmdState string
	cmdOn    string
	cmdOff   string
	text     string
	run      runner

	toggled bool
	failed  bool
}

func newToggle(dec Decoder) (Block, error) {
	var cfg toggleConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.CommandState == "" || cfg.CommandOn == "" || cfg.CommandOff == "" {
		return nil, errors.New("'command_state', 'command_on' and 'command_off' are required")
	}
	def := ""
	if cfg.Text != "" {
		def = "$text.str()"
	}
	formats, err := cfg.Build(def)
	if err != nil {
		return nil, err
	}
	every := Once
	if cfg.Interval != nil {
		every = *cfg.Interval
	}
	shell := os.Getenv("SHELL")
	return &toggleBlock{
		every:    every,
		formats:  formats,
		cmdState: cfg.CommandState,
		cmdOn:    cfg.CommandOn,
		cmdOff:   cfg.CommandOff,
		text:     cfg.Text,
		run: func(ctx context.Context, cmdline string) (string, error) {
			return subprocess.OutputShell(ctx, shell, cmdline)
		},
	}, nil
}

func (b *toggleBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update, handle: b.handle}.run(ctx, api, events)
}

func (b *toggleBlock) update(ctx context.Context, api *API) error {
	out, err := b.run(ctx, b.cmdState)
	if err != nil {
		return fail("toggle", "failed to run command_state", err)
	}
	b.toggled = strings.TrimSpace(out) != ""

	icon, state := "toggle_off", widget.StateIdle
	if b.toggled {
		icon, state = "toggle_on", widget.StateGood
	}
	if b.failed {
		state, b.failed = widget.StateCritical, false
	}
	if err := api.SetIcon(icon); err != nil {
		return fail("toggle", "missing icon", err)
	}
	api.Update(toggleValues(b.text), state)
	return nil
}

func toggleValues(text string) formatting.Values {
	values := formatting.Values{}
	if text != "" {
		values["text"] = formatting.Text(text)
	}
	return values
}

// handle runs command_off or command_on on a left click. A failing command
// shows the block as critical until the next update.
func (b *toggleBlock) handle(ctx context.Context, api *API, ev Event) error {
	if ev.Kind != EventClick || ev.Button != protocol.ButtonLeft {
		return nil
	}
	cmd := b.cmdOn
	if b.toggled {
		cmd = b.cmdOff
	}
	if _, err := b.run(ctx, cmd); err != nil {
		api.Log.Warn().Err(err).Msg("toggle command failed")
		b.failed = true
	}
	return nil
}
