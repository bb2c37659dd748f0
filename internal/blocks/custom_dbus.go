package blocks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("custom_dbus", newCustomDBus) }

const (
	// DBusService is the session bus name owned by the bar.
	DBusService = "org.barstatus"
	// DBusInterface is implemented by every custom_dbus object.
	DBusInterface = "org.barstatus.Block"
)

type customDBusConfig struct {
	// Path is the object path the block is exported at, e.g. "/vpn".
	Path string `toml:"path"`
}

// exporter publishes obj at path and returns a function that withdraws it.
type exporter func(obj *dbusObject, path dbus.ObjectPath) (func(), error)

type customDBusBlock struct {
	path   dbus.ObjectPath
	export exporter
}

func newCustomDBus(dec Decoder) (Block, error) {
	var cfg customDBusConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	path := dbus.ObjectPath(cfg.Path)
	if !path.IsValid() || path == "/" {
		return nil, fmt.Errorf("path: '%s' is not a valid object path", cfg.Path)
	}
	return &customDBusBlock{path: path, export: exportOnSessionBus}, nil
}

// Run serves SetText, SetIcon and SetState calls until ctx is done.
func (b *customDBusBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	obj := &dbusObject{calls: make(chan dbusCall), done: ctx.Done()}
	unexport, err := b.export(obj, b.path)
	if err != nil {
		return fail("custom_dbus", "failed to set up the D-Bus object", err)
	}
	defer unexport()

	api.Hide()
	if err := api.Flush(ctx); err != nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case call := <-obj.calls:
			if err := call.apply(api); err != nil {
				call.reply <- err.Error()
				continue
			}
			call.reply <- "OK"
			if err := api.Flush(ctx); err != nil {
				return nil
			}
		}
	}
}

// dbusCall is a method call handed from the bus goroutine to Run, which
// owns the API.
type dbusCall struct {
	apply func(api *API) error
	reply chan string
}

// dbusObject implements DBusInterface. Each method returns "OK" or the
// reason the call was rejected.
type dbusObject struct {
	calls chan dbusCall
	done  <-chan struct{}
}

var errBlockStopped = errors.New("block stopped")

func (o *dbusObject) call(apply func(api *API) error) (string, *dbus.Error) {
	c := dbusCall{apply: apply, reply: make(chan string, 1)}
	select {
	case o.calls <- c:
	case <-o.done:
		return "", dbus.MakeFailedError(errBlockStopped)
	}
	select {
	case reply := <-c.reply:
		return reply, nil
	case <-o.done:
		return "", dbus.MakeFailedError(errBlockStopped)
	}
}

// SetText shows the block with literal full and short text.
func (o *dbusObject) SetText(full, short string) (string, *dbus.Error) {
	return o.call(func(api *API) error {
		api.Show()
		api.SetText(full, short)
		return nil
	})
}

// SetIcon sets the icon by name; "" removes it.
func (o *dbusObject) SetIcon(icon string) (string, *dbus.Error) {
	return o.call(func(api *API) error { return api.SetIcon(icon) })
}

// SetState sets one of idle, info, good, warning or critical.
func (o *dbusObject) SetState(state string) (string, *dbus.Error) {
	return o.call(func(api *API) error {
		s := widget.ParseState(state)
		if s == widget.StateIdle && state != "idle" {
			return fmt.Errorf("'%s' is not a valid state", state)
		}
		api.SetState(s)
		return nil
	})
}

// sessionBus is shared by all custom_dbus blocks since they publish under
// one bus name.
var sessionBus struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func exportOnSessionBus(obj *dbusObject, path dbus.ObjectPath) (func(), error) {
	sessionBus.mu.Lock()
	defer sessionBus.mu.Unlock()

	if sessionBus.conn == nil || !sessionBus.conn.Connected() {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, err
		}
		reply, err := conn.RequestName(DBusService, dbus.NameFlagDoNotQueue)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if reply != dbus.RequestNameReplyPrimaryOwner {
			conn.Close()
			return nil, fmt.Errorf("bus name %s is already taken", DBusService)
		}
		sessionBus.conn = conn
	}
	conn := sessionBus.conn
	if err := conn.Export(obj, path, DBusInterface); err != nil {
		return nil, err
	}
	return func() { conn.Export(nil, path, DBusInterface) }, nil
}
