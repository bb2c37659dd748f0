package blocks

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("bluetooth", newBluetooth) }

type bluetoothConfig struct {
	FormatOptions
	MAC              string `toml:"mac"`
	HideDisconnected bool   `toml:"hide_disconnected"`
}

// bluez is the part of monitor.BluezClient the block uses.
type bluez interface {
	Device(ctx context.Context, mac string) (monitor.BluetoothDevice, error)
	SetConnected(ctx context.Context, path dbus.ObjectPath, connected bool) error
	Watch(ctx context.Context, path dbus.ObjectPath) (<-chan struct{}, error)
	Close() error
}

type bluetoothBlock struct {
	formats          *Formats
	mac              string
	hideDisconnected bool
	bluez            bluez
}

func newBluetooth(dec Decoder) (Block, error) {
	var cfg bluetoothConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.MAC == "" {
		return nil, errors.New("'mac' is required")
	}
	formats, err := cfg.Build("$name{ $percentage|}")
	if err != nil {
		return nil, err
	}
	return &bluetoothBlock{
		formats:          formats,
		mac:              cfg.MAC,
		hideDisconnected: cfg.HideDisconnected,
		bluez:            monitor.NewBluezClient(),
	}, nil
}

// Run follows the device's D-Bus property changes. A right click connects
// or disconnects the device.
func (b *bluetoothBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	defer b.bluez.Close()

	dev, err := b.bluez.Device(ctx, b.mac)
	if err != nil {
		return fail("bluetooth", "failed to find the device", err)
	}
	if err := api.SetIcon(bluetoothIcon(dev.Icon)); err != nil {
		return fail("bluetooth", "missing icon", err)
	}
	changes, err := b.bluez.Watch(ctx, dev.Path)
	if err != nil {
		return fail("bluetooth", "failed to watch the device", err)
	}
	api.SetFormat(b.formats.Current())

	for {
		if dev.Connected || !b.hideDisconnected {
			state := widget.StateIdle
			if dev.Connected {
				state = widget.StateGood
			}
			api.Update(bluetoothValues(dev), state)
		} else {
			api.Hide()
		}
		if err := api.Flush(ctx); err != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fail("bluetooth", "lost the system bus", errors.New("watch closed"))
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch {
			case b.formats.HandleClick(ev):
				api.SetFormat(b.formats.Current())
			case ev.Kind == EventClick && ev.Button == protocol.ButtonRight:
				if err := b.bluez.SetConnected(ctx, dev.Path, !dev.Connected); err != nil {
					api.Log.Warn().Err(err).Str("mac", b.mac).Msg("failed to toggle the connection")
				}
			}
		}

		if dev, err = b.bluez.Device(ctx, b.mac); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fail("bluetooth", "failed to read the device", err)
		}
	}
}

func bluetoothValues(dev monitor.BluetoothDevice) formatting.Values {
	name := dev.Name
	if name == "" {
		name = "N/A"
	}
	values := formatting.Values{"name": formatting.Text(name)}
	if dev.HasBattery {
		values["percentage"] = formatting.Number(dev.Battery).Percents()
	}
	return values
}

// bluetoothIcon maps the freedesktop icon name BlueZ reports.
func bluetoothIcon(icon string) string {
	switch icon {
	case "audio-card", "audio-headset", "audio-headphones":
		return "headphones"
	case "input-gaming":
		return "joystick"
	case "input-keyboard":
		return "keyboard"
	case "input-mouse":
		return "mouse"
	}
	return "bluetooth"
}
