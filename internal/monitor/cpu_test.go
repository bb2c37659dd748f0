package monitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCPUTimesTotal(t *testing.T) {
	ct := cpuTimes{user: 100, nice: 10, system: 50, idle: 500, iowait: 20, irq: 5, softirq: 3, steal: 2}

	if got, want := ct.total(), uint64(690); got != want {
		t.Errorf("total() = %d, want %d", got, want)
	}
	if got, want := ct.idleTime(), uint64(520); got != want {
		t.Errorf("idleTime() = %d, want %d", got, want)
	}
}

func TestParseCPULine(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		want    cpuTimes
		wantErr bool
	}{
		{
			name:   "valid line with all fields",
			fields: []string{"100", "10", "50", "500", "20", "5", "3", "2"},
			want:   cpuTimes{user: 100, nice: 10, system: 50, idle: 500, iowait: 20, irq: 5, softirq: 3, steal: 2},
		},
		{
			name:   "guest columns are ignored",
			fields: []string{"100", "10", "50", "500", "20", "5", "3", "2", "7", "7"},
			want:   cpuTimes{user: 100, nice: 10, system: 50, idle: 500, iowait: 20, irq: 5, softirq: 3, steal: 2},
		},
		{
			name:   "valid line with 7 fields",
			fields: []string{"100", "10", "50", "500", "20", "5", "3"},
			want:   cpuTimes{user: 100, nice: 10, system: 50, idle: 500, iowait: 20, irq: 5, softirq: 3},
		},
		{
			name:    "insufficient fields",
			fields:  []string{"100", "10", "50"},
			wantErr: true,
		},
		{
			name:    "invalid number",
			fields:  []string{"100", "abc", "50", "500", "20", "5", "3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCPULine(tt.fields)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseCPULine() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseCPULine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateUsage(t *testing.T) {
	tests := []struct {
		name     string
		prev     cpuTimes
		curr     cpuTimes
		expected float64
	}{
		{"50% usage", cpuTimes{user: 100, idle: 100}, cpuTimes{user: 150, idle: 150}, 50.0},
		{"all idle", cpuTimes{user: 100, idle: 100}, cpuTimes{user: 100, idle: 200}, 0.0},
		{"no idle", cpuTimes{user: 100, idle: 100}, cpuTimes{user: 200, idle: 100}, 100.0},
		{"no delta", cpuTimes{user: 100, idle: 100}, cpuTimes{user: 100, idle: 100}, 0.0},
		{"counter wrap-around", cpuTimes{user: 1000, idle: 1000}, cpuTimes{user: 100, idle: 100}, 0.0},
		{"idle counter reset", cpuTimes{user: 100, idle: 1000}, cpuTimes{user: 1200, idle: 100}, 100.0},
		{"iowait counts as idle", cpuTimes{user: 0}, cpuTimes{user: 50, iowait: 50}, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateUsage(tt.prev, tt.curr); got != tt.expected {
				t.Errorf("calculateUsage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateCoreUsage(t *testing.T) {
	prev := []cpuTimes{{user: 100, idle: 100}}
	curr := []cpuTimes{{user: 150, idle: 150}, {user: 100, idle: 100}}

	got := calculateCoreUsage(prev, curr)
	if len(got) != 2 {
		t.Fatalf("calculateCoreUsage() returned %d cores, want 2", len(got))
	}
	// The second core has no previous sample and is measured since boot.
	for i, usage := range got {
		if usage != 50.0 {
			t.Errorf("core %d usage = %v, want 50.0", i, usage)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestCPUReader(t *testing.T) (*CPUReader, string) {
	t.Helper()
	dir := t.TempDir()
	return &CPUReader{
		ProcStatPath: filepath.Join(dir, "stat"),
		CPUInfoPath:  filepath.Join(dir, "cpuinfo"),
		BoostPath:    filepath.Join(dir, "boost"),
		NoTurboPath:  filepath.Join(dir, "no_turbo"),
	}, dir
}

func TestCPUReaderWithMockFiles(t *testing.T) {
	reader, dir := newTestCPUReader(t)

	writeFile(t, filepath.Join(dir, "stat"), `cpu  100 0 0 100 0 0 0 0
cpu0 50 0 0 50 0 0 0 0
cpu1 50 0 0 50 0 0 0 0
intr 12345
`)
	writeFile(t, filepath.Join(dir, "cpuinfo"), `processor	: 0
model name	: Test CPU Model
cpu MHz		: 2400.000

processor	: 1
model name	: Test CPU Model
cpu MHz		: 1200.000
`)

	stats, err := reader.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if stats.Utilization != 50.0 {
		t.Errorf("Utilization = %v, want 50 since boot", stats.Utilization)
	}
	if len(stats.Cores) != 2 {
		t.Errorf("len(Cores) = %d, want 2", len(stats.Cores))
	}
	if len(stats.Frequencies) != 2 || stats.Frequencies[0] != 2.4e9 {
		t.Errorf("Frequencies = %v, want [2.4e9 1.2e9]", stats.Frequencies)
	}
	if got := stats.AverageFrequency(); got != 1.8e9 {
		t.Errorf("AverageFrequency() = %v, want 1.8e9", got)
	}
	if stats.Boost != nil {
		t.Errorf("Boost = %v, want nil without boost files", *stats.Boost)
	}

	writeFile(t, filepath.Join(dir, "stat"), `cpu  200 0 0 400 0 0 0 0
cpu0 150 0 0 50 0 0 0 0
cpu1 50 0 0 350 0 0 0 0
`)
	stats, err = reader.Read()
	if err != nil {
		t.Fatalf("second Read() error = %v", err)
	}
	if stats.Utilization != 25.0 {
		t.Errorf("Utilization = %v, want 25", stats.Utilization)
	}
	if stats.Cores[0] != 100.0 || stats.Cores[1] != 0.0 {
		t.Errorf("Cores = %v, want [100 0]", stats.Cores)
	}
}

func TestCPUReaderBoost(t *testing.T) {
	tests := []struct {
		name    string
		boost   string
		noTurbo string
		want    *bool
	}{
		{"cpufreq boost on", "1\n", "", ptr(true)},
		{"cpufreq boost off", "0\n", "", ptr(false)},
		{"intel no_turbo off", "", "0\n", ptr(true)},
		{"intel no_turbo on", "", "1\n", ptr(false)},
		{"cpufreq takes precedence", "0", "0", ptr(false)},
		{"unsupported", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, dir := newTestCPUReader(t)
			if tt.boost != "" {
				writeFile(t, filepath.Join(dir, "boost"), tt.boost)
			}
			if tt.noTurbo != "" {
				writeFile(t, filepath.Join(dir, "no_turbo"), tt.noTurbo)
			}
			got := reader.readBoost()
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("readBoost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCPUReaderMissingFile(t *testing.T) {
	reader := &CPUReader{ProcStatPath: "/nonexistent/stat", CPUInfoPath: "/nonexistent/cpuinfo"}

	_, err := reader.Read()
	if err == nil {
		t.Fatal("Read() should return error for missing file")
	}
	if !IsComponentError(err, ErrorSourceCPU) {
		t.Errorf("error %v is not tagged with the cpu source", err)
	}
}

func ptr[T any](v T) *T { return &v }
