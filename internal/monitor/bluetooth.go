package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService   = "org.bluez"
	bluezDevice    = "org.bluez.Device1"
	bluezBattery   = "org.bluez.Battery1"
	objectManager  = "org.freedesktop.DBus.ObjectManager"
	propertiesIntf = "org.freedesktop.DBus.Properties"
)

// managedObjects is the reply of ObjectManager.GetManagedObjects.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BluetoothDevice is a device known to BlueZ.
type BluetoothDevice struct {
	Path    dbus.ObjectPath
	Address string
	Name    string
	// Icon is the freedesktop icon name BlueZ derives from the device
	// class, e.g. "audio-card".
	Icon      string
	Connected bool
	// Battery is the charge in percent. It is only meaningful when
	// HasBattery is set.
	Battery    float64
	HasBattery bool
}

// BluezClient reads and controls BlueZ devices over the system bus. The
// connection is opened lazily.
type BluezClient struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewBluezClient creates a BluezClient.
func NewBluezClient() *BluezClient {
	return &BluezClient{}
}

func (c *BluezClient) ensureConn() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.Connected() {
		return c.conn, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: system bus: %v", ErrNotAvailable, err)
	}
	c.conn = conn
	return conn, nil
}

// Device looks up the device with the given MAC address. The comparison
// ignores case.
func (c *BluezClient) Device(ctx context.Context, mac string) (BluetoothDevice, error) {
	conn, err := c.ensureConn()
	if err != nil {
		return BluetoothDevice{}, NewComponentError(ErrorSourceBluetooth, err)
	}
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := conn.Object(bluezService, "/").CallWithContext(ctx, objectManager+".GetManagedObjects", 0)
	if err := call.Store(&objects); err != nil {
		return BluetoothDevice{}, NewComponentError(ErrorSourceBluetooth, err)
	}
	dev, ok := findBluetoothDevice(objects, mac)
	if !ok {
		return BluetoothDevice{}, NewComponentError(ErrorSourceBluetooth,
			fmt.Errorf("%w: device %s not found", ErrNotAvailable, mac))
	}
	return dev, nil
}

// SetConnected connects or disconnects the device at path.
func (c *BluezClient) SetConnected(ctx context.Context, path dbus.ObjectPath, connected bool) error {
	conn, err := c.ensureConn()
	if err != nil {
		return NewComponentError(ErrorSourceBluetooth, err)
	}
	method := bluezDevice + ".Disconnect"
	if connected {
		method = bluezDevice + ".Connect"
	}
	if err := conn.Object(bluezService, path).CallWithContext(ctx, method, 0).Err; err != nil {
		return NewComponentError(ErrorSourceBluetooth, err)
	}
	return nil
}

// Watch signals each property change of the device at path and of its
// battery. The channel is closed when ctx is done or the bus goes away.
func (c *BluezClient) Watch(ctx context.Context, path dbus.ObjectPath) (<-chan struct{}, error) {
	conn, err := c.ensureConn()
	if err != nil {
		return nil, NewComponentError(ErrorSourceBluetooth, err)
	}
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propertiesIntf),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, NewComponentError(ErrorSourceBluetooth, err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer conn.RemoveSignal(signals)
		defer conn.RemoveMatchSignal(match...)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Path != path {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
	}()
	return changes, nil
}

// Close releases the bus connection.
func (c *BluezClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func findBluetoothDevice(objects managedObjects, mac string) (BluetoothDevice, bool) {
	for path, ifaces := range objects {
		props, ok := ifaces[bluezDevice]
		if !ok {
			continue
		}
		addr, _ := variantValue[string](props["Address"])
		if !strings.EqualFold(addr, mac) {
			continue
		}
		dev := BluetoothDevice{Path: path, Address: addr}
		dev.Name, _ = variantValue[string](props["Name"])
		dev.Icon, _ = variantValue[string](props["Icon"])
		dev.Connected, _ = variantValue[bool](props["Connected"])
		if battery, ok := ifaces[bluezBattery]; ok {
			if pct, ok := variantValue[byte](battery["Percentage"]); ok {
				dev.Battery, dev.HasBattery = float64(pct), true
			}
		}
		return dev, true
	}
	return BluetoothDevice{}, false
}

// variantValue returns the value of v when it holds a T. A missing
// property is the zero Variant.
func variantValue[T any](v dbus.Variant) (T, bool) {
	t, ok := v.Value().(T)
	return t, ok
}
