package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// cpuTimes stores raw CPU time values from /proc/stat.
type cpuTimes struct {
	user    uint64
	nice    uint64
	system  uint64
	idle    uint64
	iowait  uint64
	irq     uint64
	softirq uint64
	steal   uint64
}

// total returns the total CPU time.
func (c cpuTimes) total() uint64 {
	return c.user + c.nice + c.system + c.idle + c.iowait + c.irq + c.softirq + c.steal
}

// idleTime returns the idle CPU time.
func (c cpuTimes) idleTime() uint64 {
	return c.idle + c.iowait
}

// CPUStats is one CPU sample. Utilization values are percentages since the
// previous sample; frequencies are in hertz.
type CPUStats struct {
	Utilization float64
	Cores       []float64
	Frequencies []float64
	// Boost is nil when the platform exposes no turbo/boost switch.
	Boost *bool
}

// AverageFrequency returns the mean of Frequencies, or 0 without data.
func (s CPUStats) AverageFrequency() float64 {
	if len(s.Frequencies) == 0 {
		return 0
	}
	var sum float64
	for _, f := range s.Frequencies {
		sum += f
	}
	return sum / float64(len(s.Frequencies))
}

// CPUReader samples CPU utilization, frequency and boost state. The first
// Read reports utilization since boot.
type CPUReader struct {
	prevTimes     cpuTimes
	prevCoreTimes []cpuTimes

	ProcStatPath string
	CPUInfoPath  string
	BoostPath    string
	NoTurboPath  string
}

// NewCPUReader creates a CPUReader with default paths.
func NewCPUReader() *CPUReader {
	return &CPUReader{
		ProcStatPath: "/proc/stat",
		CPUInfoPath:  "/proc/cpuinfo",
		BoostPath:    "/sys/devices/system/cpu/cpufreq/boost",
		NoTurboPath:  "/sys/devices/system/cpu/intel_pstate/no_turbo",
	}
}

// Read takes a new sample.
func (r *CPUReader) Read() (CPUStats, error) {
	currentTimes, coreTimes, err := r.readProcStat()
	if err != nil {
		return CPUStats{}, NewComponentError(ErrorSourceCPU, err)
	}

	// Frequencies are optional: virtual machines often omit "cpu MHz".
	freqs, _ := r.readFrequencies()

	stats := CPUStats{
		Utilization: calculateUsage(r.prevTimes, currentTimes),
		Cores:       calculateCoreUsage(r.prevCoreTimes, coreTimes),
		Frequencies: freqs,
		Boost:       r.readBoost(),
	}

	r.prevTimes = currentTimes
	r.prevCoreTimes = coreTimes

	return stats, nil
}

// readProcStat reads and parses /proc/stat for CPU times.
func (r *CPUReader) readProcStat() (cpuTimes, []cpuTimes, error) {
	file, err := os.Open(r.ProcStatPath)
	if err != nil {
		return cpuTimes{}, nil, fmt.Errorf("opening %s: %w", r.ProcStatPath, err)
	}
	defer file.Close()

	var totalTimes cpuTimes
	var coreTimes []cpuTimes
	found := false

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 8 || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}

		t, err := parseCPULine(fields[1:])
		if fields[0] == "cpu" {
			if err != nil {
				return cpuTimes{}, nil, fmt.Errorf("parsing cpu line: %w", err)
			}
			totalTimes, found = t, true
		} else if err == nil {
			coreTimes = append(coreTimes, t)
		}
	}

	if err := scanner.Err(); err != nil {
		return cpuTimes{}, nil, fmt.Errorf("scanning %s: %w", r.ProcStatPath, err)
	}
	if !found {
		return cpuTimes{}, nil, fmt.Errorf("no aggregate cpu line in %s", r.ProcStatPath)
	}

	return totalTimes, coreTimes, nil
}

// parseCPULine parses the counters of a single CPU line from /proc/stat.
func parseCPULine(fields []string) (cpuTimes, error) {
	if len(fields) < 7 {
		return cpuTimes{}, fmt.Errorf("insufficient fields: got %d, need at least 7", len(fields))
	}

	var values [8]uint64
	for i := 0; i < len(values) && i < len(fields); i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return cpuTimes{}, fmt.Errorf("parsing field %d: %w", i, err)
		}
		values[i] = v
	}

	return cpuTimes{
		user:    values[0],
		nice:    values[1],
		system:  values[2],
		idle:    values[3],
		iowait:  values[4],
		irq:     values[5],
		softirq: values[6],
		steal:   values[7],
	}, nil
}

// calculateUsage calculates CPU usage percentage from time deltas.
func calculateUsage(prev, curr cpuTimes) float64 {
	if curr.total() <= prev.total() {
		return 0.0
	}
	totalDelta := curr.total() - prev.total()
	idleDelta := uint64(0)
	if curr.idleTime() > prev.idleTime() {
		idleDelta = curr.idleTime() - prev.idleTime()
	}
	if idleDelta > totalDelta {
		return 0.0
	}
	usage := float64(totalDelta-idleDelta) / float64(totalDelta) * 100.0
	return min(usage, 100.0)
}

// calculateCoreUsage calculates per-core CPU usage percentages.
func calculateCoreUsage(prev, curr []cpuTimes) []float64 {
	result := make([]float64, len(curr))
	for i, c := range curr {
		var p cpuTimes
		if i < len(prev) {
			p = prev[i]
		}
		result[i] = calculateUsage(p, c)
	}
	return result
}

// readFrequencies reads the current frequency of every core, in Hz, from
// the "cpu MHz" lines of /proc/cpuinfo.
func (r *CPUReader) readFrequencies() ([]float64, error) {
	file, err := os.Open(r.CPUInfoPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", r.CPUInfoPath, err)
	}
	defer file.Close()

	var freqs []float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "cpu MHz" {
			continue
		}
		if mhz, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			freqs = append(freqs, mhz*1e6)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", r.CPUInfoPath, err)
	}
	return freqs, nil
}

// readBoost reports the turbo state from the generic cpufreq switch or,
// failing that, the intel_pstate one (which is inverted).
func (r *CPUReader) readBoost() *bool {
	if v, err := readTrimmed(r.BoostPath); err == nil {
		on := v == "1"
		return &on
	}
	if v, err := readTrimmed(r.NoTurboPath); err == nil {
		on := v == "0"
		return &on
	}
	return nil
}

// readTrimmed reads a small sysfs or procfs file without its trailing newline.
func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
