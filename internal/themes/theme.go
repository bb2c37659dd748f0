// Package themes holds bar colors and icon sets.
package themes

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed builtin
var builtin embed.FS

// Theme maps widget states and separators to colors.
type Theme struct {
	IdleBg     Color `toml:"idle_bg"`
	IdleFg     Color `toml:"idle_fg"`
	InfoBg     Color `toml:"info_bg"`
	InfoFg     Color `toml:"info_fg"`
	GoodBg     Color `toml:"good_bg"`
	GoodFg     Color `toml:"good_fg"`
	WarningBg  Color `toml:"warning_bg"`
	WarningFg  Color `toml:"warning_fg"`
	CriticalBg Color `toml:"critical_bg"`
	CriticalFg Color `toml:"critical_fg"`
	// Separator is the glyph drawn between blocks. Empty keeps the bar's
	// native separators.
	Separator         string `toml:"separator"`
	SeparatorBg       Color  `toml:"separator_bg"`
	SeparatorFg       Color  `toml:"separator_fg"`
	AlternatingTintBg Color  `toml:"alternating_tint_bg"`
	AlternatingTintFg Color  `toml:"alternating_tint_fg"`
}

// DefaultTheme is used when the configuration names no theme.
const DefaultTheme = "plain"

// NativeSeparators reports whether the bar draws its own separators.
func (t *Theme) NativeSeparators() bool {
	return t.Separator == ""
}

// ParseTheme decodes a theme file. Unknown keys are rejected.
func ParseTheme(data []byte) (*Theme, error) {
	var t Theme
	md, err := toml.Decode(string(data), &t)
	if err != nil {
		return nil, fmt.Errorf("decoding theme: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown theme key '%s'", undecoded[0])
	}
	return &t, nil
}

// BuiltinTheme returns the embedded theme called name.
func BuiltinTheme(name string) (*Theme, error) {
	data, err := builtin.ReadFile("builtin/themes/" + name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("theme '%s' not found", name)
	}
	return ParseTheme(data)
}

// BuiltinThemes lists the embedded theme names.
func BuiltinThemes() []string {
	return listBuiltin("builtin/themes")
}

// ApplyOverrides replaces individual theme keys.
func (t *Theme) ApplyOverrides(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := overrides[key]
		if key == "separator" {
			t.Separator = value
			continue
		}
		field := t.colorField(key)
		if field == nil {
			return fmt.Errorf("unknown theme key '%s'", key)
		}
		c, err := ParseColor(value)
		if err != nil {
			return fmt.Errorf("theme override '%s': %w", key, err)
		}
		*field = c
	}
	return nil
}

func (t *Theme) colorField(key string) *Color {
	switch key {
	case "idle_bg":
		return &t.IdleBg
	case "idle_fg":
		return &t.IdleFg
	case "info_bg":
		return &t.InfoBg
	case "info_fg":
		return &t.InfoFg
	case "good_bg":
		return &t.GoodBg
	case "good_fg":
		return &t.GoodFg
	case "warning_bg":
		return &t.WarningBg
	case "warning_fg":
		return &t.WarningFg
	case "critical_bg":
		return &t.CriticalBg
	case "critical_fg":
		return &t.CriticalFg
	case "separator_bg":
		return &t.SeparatorBg
	case "separator_fg":
		return &t.SeparatorFg
	case "alternating_tint_bg":
		return &t.AlternatingTintBg
	case "alternating_tint_fg":
		return &t.AlternatingTintFg
	}
	return nil
}

// Clone returns a copy of t that can take block-level overrides.
func (t *Theme) Clone() *Theme {
	c := *t
	return &c
}

func listBuiltin(dir string) []string {
	entries, err := builtin.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Strings(names)
	return names
}
