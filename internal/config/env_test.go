package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_BAR_VAR", "test_value")
	t.Setenv("TEST_BAR_PATH", "/home/user/.config")
	t.Setenv("TEST_BAR_EMPTY", "")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no variables", "plain text without variables", "plain text without variables"},
		{"braced", "prefix ${TEST_BAR_VAR} suffix", "prefix test_value suffix"},
		{"simple", "prefix $TEST_BAR_VAR suffix", "prefix test_value suffix"},
		{"unset variable becomes empty", "prefix ${UNSET_VAR_12345} suffix", "prefix  suffix"},
		{"unset variable with default", "${UNSET_VAR_12345:-default_value}", "default_value"},
		{"empty variable uses default", "${TEST_BAR_EMPTY:-fallback}", "fallback"},
		{"set variable ignores default", "${TEST_BAR_VAR:-fallback}", "test_value"},
		{"empty default", "${UNSET_VAR_12345:-}", ""},
		{"adjacent variables", "${TEST_BAR_PATH}/${TEST_BAR_VAR}", "/home/user/.config/test_value"},
		{"default with colon", "${UNSET:-value:with:colons}", "value:with:colons"},
		{"lone dollar", "costs 5$", "costs 5$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.expected {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("TEST_BAR_DIR", "scripts")

	tests := []struct {
		input    string
		expected string
	}{
		{"~", home},
		{"~/bin/x.sh", filepath.Join(home, "bin/x.sh")},
		{"~/$TEST_BAR_DIR/run", filepath.Join(home, "scripts/run")},
		{"/abs/~/path", "/abs/~/path"},
		{"~user/file", "~user/file"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.expected {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
