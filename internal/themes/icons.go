package themes

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultIcons is used when the configuration names no icon set.
const DefaultIcons = "none"

// DefaultIconsFormat wraps every icon unless a block or the configuration
// sets its own.
const DefaultIconsFormat = " {icon} "

// Icons maps icon names to glyphs.
type Icons map[string]string

// ParseIcons decodes an icon set file of name = "glyph" pairs.
func ParseIcons(data []byte) (Icons, error) {
	icons := make(Icons)
	if _, err := toml.Decode(string(data), &icons); err != nil {
		return nil, fmt.Errorf("decoding icons: %w", err)
	}
	return icons, nil
}

// BuiltinIcons returns the embedded icon set called name.
func BuiltinIcons(name string) (Icons, error) {
	data, err := builtin.ReadFile("builtin/icons/" + name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("icon set '%s' not found", name)
	}
	return ParseIcons(data)
}

// BuiltinIconSets lists the embedded icon set names.
func BuiltinIconSets() []string {
	return listBuiltin("builtin/icons")
}

// ApplyOverrides replaces or adds individual icons.
func (i Icons) ApplyOverrides(overrides map[string]string) {
	for k, v := range overrides {
		i[k] = v
	}
}

// Get returns the glyph for name substituted into format at "{icon}". An
// empty name yields "". A glyph that is itself empty also yields "", so a
// set can disable an icon without breaking spacing.
func (i Icons) Get(name, format string) (string, error) {
	if name == "" {
		return "", nil
	}
	glyph, ok := i[name]
	if !ok {
		return "", fmt.Errorf("icon '%s' not found", name)
	}
	if glyph == "" {
		return "", nil
	}
	if format == "" {
		format = DefaultIconsFormat
	}
	return strings.ReplaceAll(format, "{icon}", glyph), nil
}
