package monitor

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"
)

func TestHwmonReader(t *testing.T) {
	dir := t.TempDir()
	core := filepath.Join(dir, "hwmon0")
	writeFile(t, filepath.Join(core, "name"), "coretemp\n")
	writeFile(t, filepath.Join(core, "temp1_input"), "45000\n")
	writeFile(t, filepath.Join(core, "temp1_label"), "Package id 0\n")
	writeFile(t, filepath.Join(core, "temp1_max"), "80000\n")
	writeFile(t, filepath.Join(core, "temp1_crit"), "100000\n")
	writeFile(t, filepath.Join(core, "temp2_input"), "52500\n")
	writeFile(t, filepath.Join(core, "temp3_input"), "garbage\n")
	writeFile(t, filepath.Join(core, "fan1_input"), "1200\n")

	acpi := filepath.Join(dir, "hwmon1")
	writeFile(t, filepath.Join(acpi, "name"), "acpitz\n")
	writeFile(t, filepath.Join(acpi, "temp1_input"), "-5000\n")

	writeFile(t, filepath.Join(dir, "not-hwmon", "temp1_input"), "99000\n")

	sensors, err := (&HwmonReader{HwmonPath: dir}).Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	sort.Slice(sensors, func(i, j int) bool {
		return sensors[i].Chip+sensors[i].Type < sensors[j].Chip+sensors[j].Type
	})

	want := []TempSensor{
		{Chip: "acpitz", Label: "temp1", Type: "temp1", Input: -5},
		{Chip: "coretemp", Label: "Package id 0", Type: "temp1", Input: 45, Max: 80, Crit: 100},
		{Chip: "coretemp", Label: "temp2", Type: "temp2", Input: 52.5},
	}
	if len(sensors) != len(want) {
		t.Fatalf("Read() returned %d sensors, want %d: %+v", len(sensors), len(want), sensors)
	}
	for i := range want {
		if sensors[i] != want[i] {
			t.Errorf("sensor %d = %+v, want %+v", i, sensors[i], want[i])
		}
	}
}

func TestHwmonReaderNotAvailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"missing directory", func(t *testing.T, dir string) {}},
		{"no sensors", func(t *testing.T, dir string) {
			writeFile(t, filepath.Join(dir, "hwmon", "hwmon0", "name"), "nvme\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			_, err := (&HwmonReader{HwmonPath: filepath.Join(dir, "hwmon")}).Read()
			if !errors.Is(err, ErrNotAvailable) {
				t.Errorf("Read() error = %v, want ErrNotAvailable", err)
			}
			if !IsComponentError(err, ErrorSourceHwmon) {
				t.Errorf("Read() error = %v, want hwmon component error", err)
			}
		})
	}
}
