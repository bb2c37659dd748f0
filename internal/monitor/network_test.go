package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

func TestParseNetDevLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantName  string
		wantStats rawInterfaceStats
		wantErr   bool
	}{
		{
			name:      "valid eth0 line",
			line:      "  eth0: 523861305  362702    0    0    0     0          0         1  7179696   49506    0    1    0     0       0          0",
			wantName:  "eth0",
			wantStats: rawInterfaceStats{rxBytes: 523861305, txBytes: 7179696},
		},
		{
			name:      "no space after colon",
			line:      "wlan0:1000 500 10 5 0 0 0 0 2000 800 20 8 0 0 0 0",
			wantName:  "wlan0",
			wantStats: rawInterfaceStats{rxBytes: 1000, txBytes: 2000},
		},
		{name: "no colon", line: "eth0 1 2 3", wantErr: true},
		{name: "empty name", line: "  : 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16", wantErr: true},
		{name: "too few fields", line: "eth0: 1 2 3", wantErr: true},
		{name: "bad number", line: "eth0: x 0 0 0 0 0 0 0 2000 0 0 0 0 0 0 0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, stats, err := parseNetDevLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseNetDevLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if stats != tt.wantStats {
				t.Errorf("stats = %+v, want %+v", stats, tt.wantStats)
			}
		})
	}
}

const netDevHeader = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
`

func newTestNetworkReader(t *testing.T) (*NetworkReader, string, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	now := time.Unix(1000, 0)
	r := NewNetworkReader()
	r.ProcNetDevPath = filepath.Join(dir, "dev")
	r.RoutePath = filepath.Join(dir, "route")
	r.SysNetPath = filepath.Join(dir, "sys")
	r.now = func() time.Time { return now }
	return r, dir, &now
}

func TestNetworkReaderRates(t *testing.T) {
	r, dir, now := newTestNetworkReader(t)
	writeFile(t, filepath.Join(dir, "sys", "wlan0", "operstate"), "up\n")
	writeFile(t, filepath.Join(dir, "sys", "wlan0", "wireless", "link"), "")

	writeFile(t, filepath.Join(dir, "dev"), netDevHeader+
		"  wlan0: 1000 0 0 0 0 0 0 0 500 0 0 0 0 0 0 0\n"+
		"     lo: 10 0 0 0 0 0 0 0 10 0 0 0 0 0 0 0\n")

	first, err := r.Read("wlan0")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if first.RxBytesPerSec != 0 || first.TxBytesPerSec != 0 {
		t.Errorf("first Read() rates = %v/%v, want 0/0", first.RxBytesPerSec, first.TxBytesPerSec)
	}
	if !first.Up || !first.Wireless {
		t.Errorf("Up = %v, Wireless = %v, want both true", first.Up, first.Wireless)
	}

	*now = now.Add(2 * time.Second)
	writeFile(t, filepath.Join(dir, "dev"), netDevHeader+
		"  wlan0: 5000 0 0 0 0 0 0 0 700 0 0 0 0 0 0 0\n")

	second, err := r.Read("wlan0")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if second.RxBytesPerSec != 2000 {
		t.Errorf("RxBytesPerSec = %v, want 2000", second.RxBytesPerSec)
	}
	if second.TxBytesPerSec != 100 {
		t.Errorf("TxBytesPerSec = %v, want 100", second.TxBytesPerSec)
	}

	if _, err := r.Read("lo"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Read(lo) after it vanished = %v, want ErrNotAvailable", err)
	}
}

func TestNetworkReaderMissingFile(t *testing.T) {
	r, _, _ := newTestNetworkReader(t)
	_, err := r.Read("eth0")
	if !IsComponentError(err, ErrorSourceNetwork) {
		t.Errorf("Read() error = %v, want network component error", err)
	}
}

func TestNetworkReaderDefaultDevice(t *testing.T) {
	tests := []struct {
		name    string
		route   string
		want    string
		wantErr bool
	}{
		{
			name: "default route present",
			route: "Iface\tDestination\tGateway\tFlags\tRefCnt\tUse\tMetric\tMask\n" +
				"eth0\t0010A8C0\t00000000\t0001\t0\t0\t100\t00FFFFFF\n" +
				"wlan0\t00000000\t0100A8C0\t0003\t0\t0\t600\t00000000\n",
			want: "wlan0",
		},
		{
			name:    "no default route",
			route:   "Iface\tDestination\tGateway\tFlags\n" + "eth0\t0010A8C0\t00000000\t0001\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dir, _ := newTestNetworkReader(t)
			writeFile(t, filepath.Join(dir, "route"), tt.route)
			got, err := r.DefaultDevice()
			if (err != nil) != tt.wantErr {
				t.Fatalf("DefaultDevice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DefaultDevice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCalculateRate(t *testing.T) {
	tests := []struct {
		name    string
		prev    uint64
		curr    uint64
		elapsed float64
		want    float64
	}{
		{"normal", 1000, 3000, 2, 1000},
		{"wrap-around", 3000, 1000, 2, 0},
		{"zero elapsed", 1000, 3000, 0, 0},
		{"negative elapsed", 1000, 3000, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateRate(tt.prev, tt.curr, tt.elapsed); got != tt.want {
				t.Errorf("calculateRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddressReader(t *testing.T) {
	r := &AddressReader{interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
		return psnet.InterfaceStatList{
			{Name: "lo", Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "eth0", Addrs: psnet.InterfaceAddrList{
				{Addr: "192.168.1.20/24"},
				{Addr: "fe80::1/64"},
				{Addr: "2001:db8::20/64"},
				{Addr: "garbage"},
			}},
		}, nil
	}}

	got, err := r.Read(context.Background(), "eth0")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got.IPv4) != 1 || got.IPv4[0] != "192.168.1.20" {
		t.Errorf("IPv4 = %v, want [192.168.1.20]", got.IPv4)
	}
	if len(got.IPv6) != 1 || got.IPv6[0] != "2001:db8::20" {
		t.Errorf("IPv6 = %v, want [2001:db8::20] without link-local", got.IPv6)
	}

	if _, err := r.Read(context.Background(), "wlan9"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Read(unknown) error = %v, want ErrNotAvailable", err)
	}
}
