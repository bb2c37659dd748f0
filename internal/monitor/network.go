package monitor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rawInterfaceStats stores raw counters for rate calculation.
type rawInterfaceStats struct {
	rxBytes uint64
	txBytes uint64
}

// InterfaceStats describes one network interface at the time of a Read.
type InterfaceStats struct {
	Name          string
	Up            bool
	Wireless      bool
	RxBytes       uint64
	TxBytes       uint64
	RxBytesPerSec float64
	TxBytesPerSec float64
}

// NetworkReader reads interface counters from /proc/net/dev and derives
// transfer rates from consecutive reads.
type NetworkReader struct {
	mu        sync.Mutex
	prevStats map[string]rawInterfaceStats
	prevTime  time.Time
	now       func() time.Time

	ProcNetDevPath string
	RoutePath      string
	SysNetPath     string
}

// NewNetworkReader creates a NetworkReader with default paths.
func NewNetworkReader() *NetworkReader {
	return &NetworkReader{
		prevStats:      make(map[string]rawInterfaceStats),
		now:            time.Now,
		ProcNetDevPath: "/proc/net/dev",
		RoutePath:      "/proc/net/route",
		SysNetPath:     "/sys/class/net",
	}
}

// Read returns the statistics of device. The first Read of a device
// reports zero rates.
func (r *NetworkReader) Read(device string) (InterfaceStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readProcNetDev()
	if err != nil {
		return InterfaceStats{}, NewComponentError(ErrorSourceNetwork, err)
	}
	curr, ok := all[device]
	if !ok {
		return InterfaceStats{}, NewComponentError(ErrorSourceNetwork, fmt.Errorf("device %q: %w", device, ErrNotAvailable))
	}

	now := r.now()
	stats := InterfaceStats{
		Name:     device,
		Up:       r.operUp(device),
		Wireless: r.isWireless(device),
		RxBytes:  curr.rxBytes,
		TxBytes:  curr.txBytes,
	}
	if prev, ok := r.prevStats[device]; ok {
		elapsed := now.Sub(r.prevTime).Seconds()
		stats.RxBytesPerSec = calculateRate(prev.rxBytes, curr.rxBytes, elapsed)
		stats.TxBytesPerSec = calculateRate(prev.txBytes, curr.txBytes, elapsed)
	}

	r.prevStats = all
	r.prevTime = now
	return stats, nil
}

// DefaultDevice returns the interface that carries the default route.
func (r *NetworkReader) DefaultDevice() (string, error) {
	file, err := os.Open(r.RoutePath)
	if err != nil {
		return "", NewComponentError(ErrorSourceNetwork, fmt.Errorf("opening %s: %w", r.RoutePath, err))
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Iface Destination Gateway Flags ...
		if len(fields) >= 4 && fields[1] == "00000000" {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", NewComponentError(ErrorSourceNetwork, fmt.Errorf("scanning %s: %w", r.RoutePath, err))
	}
	return "", NewComponentError(ErrorSourceNetwork, fmt.Errorf("default route: %w", ErrNotAvailable))
}

func (r *NetworkReader) operUp(device string) bool {
	state, err := readTrimmed(filepath.Join(r.SysNetPath, device, "operstate"))
	if err != nil {
		return false
	}
	// Tunnels and some virtual devices report "unknown" while passing traffic.
	return state == "up" || state == "unknown"
}

func (r *NetworkReader) isWireless(device string) bool {
	_, err := os.Stat(filepath.Join(r.SysNetPath, device, "wireless"))
	return err == nil
}

// readProcNetDev parses /proc/net/dev and returns raw interface statistics.
func (r *NetworkReader) readProcNetDev() (map[string]rawInterfaceStats, error) {
	file, err := os.Open(r.ProcNetDevPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", r.ProcNetDevPath, err)
	}
	defer file.Close()

	result := make(map[string]rawInterfaceStats)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if lineNum <= 2 {
			continue
		}
		name, stats, err := parseNetDevLine(scanner.Text())
		if err != nil {
			continue
		}
		result[name] = stats
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", r.ProcNetDevPath, err)
	}
	return result, nil
}

// parseNetDevLine parses a single line from /proc/net/dev.
// Format: "iface: rxbytes rxpackets rxerrs rxdrop rxfifo rxframe rxcompressed rxmulticast
//
//	txbytes txpackets txerrs txdrop txfifo txcolls txcarrier txcompressed"
func parseNetDevLine(line string) (string, rawInterfaceStats, error) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", rawInterfaceStats{}, fmt.Errorf("invalid line format: no colon separator")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", rawInterfaceStats{}, fmt.Errorf("empty interface name")
	}

	fields := strings.Fields(rest)
	if len(fields) < 16 {
		return "", rawInterfaceStats{}, fmt.Errorf("insufficient fields: got %d, need 16", len(fields))
	}

	rx, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return "", rawInterfaceStats{}, fmt.Errorf("parsing rx bytes: %w", err)
	}
	tx, err := strconv.ParseUint(fields[8], 10, 64)
	if err != nil {
		return "", rawInterfaceStats{}, fmt.Errorf("parsing tx bytes: %w", err)
	}
	return name, rawInterfaceStats{rxBytes: rx, txBytes: tx}, nil
}

// calculateRate calculates the rate of change per second.
// Returns 0 if counter wrapped around (new < old).
func calculateRate(prev, curr uint64, elapsed float64) float64 {
	if curr < prev || elapsed <= 0 {
		return 0.0
	}
	return float64(curr-prev) / elapsed
}
