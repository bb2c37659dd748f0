package monitor

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestFindBluetoothDevice(t *testing.T) {
	objects := managedObjects{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Address": dbus.MakeVariant("AA:AA:AA:AA:AA:AA")},
		},
		"/org/bluez/hci0/dev_00_18_09_92_1B_BA": {
			bluezDevice: {
				"Address":   dbus.MakeVariant("00:18:09:92:1B:BA"),
				"Name":      dbus.MakeVariant("Headphones"),
				"Icon":      dbus.MakeVariant("audio-card"),
				"Connected": dbus.MakeVariant(true),
			},
			bluezBattery: {"Percentage": dbus.MakeVariant(byte(80))},
		},
		"/org/bluez/hci0/dev_11_22_33_44_55_66": {
			bluezDevice: {
				"Address":   dbus.MakeVariant("11:22:33:44:55:66"),
				"Connected": dbus.MakeVariant(false),
			},
		},
	}

	tests := []struct {
		name  string
		mac   string
		found bool
		want  BluetoothDevice
	}{
		{
			name:  "with battery",
			mac:   "00:18:09:92:1b:ba",
			found: true,
			want: BluetoothDevice{
				Path: "/org/bluez/hci0/dev_00_18_09_92_1B_BA", Address: "00:18:09:92:1B:BA",
				Name: "Headphones", Icon: "audio-card", Connected: true, Battery: 80, HasBattery: true,
			},
		},
		{
			name:  "missing properties",
			mac:   "11:22:33:44:55:66",
			found: true,
			want:  BluetoothDevice{Path: "/org/bluez/hci0/dev_11_22_33_44_55_66", Address: "11:22:33:44:55:66"},
		},
		{name: "adapter is not a device", mac: "AA:AA:AA:AA:AA:AA"},
		{name: "unknown", mac: "de:ad:be:ef:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findBluetoothDevice(objects, tt.mac)
			if ok != tt.found {
				t.Fatalf("findBluetoothDevice() found = %v, want %v", ok, tt.found)
			}
			if got != tt.want {
				t.Errorf("findBluetoothDevice() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBluezClientCloseUnused(t *testing.T) {
	c := NewBluezClient()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
