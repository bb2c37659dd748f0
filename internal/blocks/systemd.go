package blocks

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("systemd", newSystemd) }

type systemdConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// User also reads the state of the user's service manager.
	User bool `toml:"user"`
}

// managerState reads the SystemState property of a service manager.
type managerState func(ctx context.Context, user bool) (string, error)

type systemdBlock struct {
	every   Interval
	formats *Formats
	user    bool
	read    managerState
}

func newSystemd(dec Decoder) (Block, error) {
	var cfg systemdConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$system.str()")
	if err != nil {
		return nil, err
	}
	return &systemdBlock{
		every:   interval(cfg.Interval, 30),
		formats: formats,
		user:    cfg.User,
		read:    systemState,
	}, nil
}

// systemState opens a private bus connection per read, so a restarted
// dbus daemon never leaves the block with a dead connection.
func systemState(ctx context.Context, user bool) (string, error) {
	connect := dbus.NewSystemConnectionContext
	if user {
		connect = dbus.NewUserConnectionContext
	}
	conn, err := connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	prop, err := conn.SystemStateContext(ctx)
	if err != nil {
		return "", err
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected SystemState type %s", prop.Value.Signature())
	}
	return state, nil
}

func (b *systemdBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("server"); err != nil {
		return fail("systemd", "missing icon", err)
	}
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *systemdBlock) update(ctx context.Context, api *API) error {
	system, err := b.read(ctx, false)
	if err != nil {
		return fail("systemd", "failed to read the system state", err)
	}
	states := []string{system}
	if b.user {
		user, err := b.read(ctx, true)
		if err != nil {
			return fail("systemd", "failed to read the user state", err)
		}
		states = append(states, user)
	}
	values, state := systemdValues(states...)
	api.Update(values, state)
	return nil
}

// systemdValues takes the system state optionally followed by the user
// state.
func systemdValues(states ...string) (formatting.Values, widget.State) {
	values := formatting.Values{"system": formatting.Text(states[0])}
	state := managerWidgetState(states[0])
	if len(states) > 1 {
		values["user"] = formatting.Text(states[1])
		state = max(state, managerWidgetState(states[1]))
	}
	if state != widget.StateIdle {
		values["degraded"] = formatting.Flag()
	}
	return values, state
}

// managerWidgetState maps a SystemState value.
func managerWidgetState(s string) widget.State {
	switch s {
	case "running":
		return widget.StateIdle
	case "degraded", "maintenance":
		return widget.StateWarning
	}
	return widget.StateCritical
}
