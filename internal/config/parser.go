package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/opd-ai/go-barstatus/internal/themes"
)

// fileConfig mirrors the top level of the configuration file.
type fileConfig struct {
	Theme           assetSpec        `toml:"theme"`
	Icons           assetSpec        `toml:"icons"`
	IconsFormat     *string          `toml:"icons_format"`
	InvertScrolling bool             `toml:"invert_scrolling"`
	ErrorInterval   *float64         `toml:"error_interval"`
	Blocks          []toml.Primitive `toml:"block"`
}

// assetSpec selects a theme or an icon set. It is written either as a
// plain name or as a table with a name or a file plus overrides.
type assetSpec struct {
	Name      string
	File      string
	Overrides map[string]string
}

// UnmarshalTOML implements toml.Unmarshaler.
func (a *assetSpec) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		a.Name = v
		return nil
	case map[string]any:
		for key, val := range v {
			switch key {
			case "name", "theme", "icons":
				s, ok := val.(string)
				if !ok {
					return fmt.Errorf("'%s' must be a string", key)
				}
				a.Name = s
			case "file":
				s, ok := val.(string)
				if !ok {
					return fmt.Errorf("'file' must be a string")
				}
				a.File = s
			case "overrides":
				table, ok := val.(map[string]any)
				if !ok {
					return fmt.Errorf("'overrides' must be a table")
				}
				a.Overrides = make(map[string]string, len(table))
				for k, o := range table {
					s, ok := o.(string)
					if !ok {
						return fmt.Errorf("override '%s' must be a string", k)
					}
					a.Overrides[k] = s
				}
			default:
				return fmt.Errorf("unknown key '%s'", key)
			}
		}
		if a.Name != "" && a.File != "" {
			return fmt.Errorf("'name' and 'file' are mutually exclusive")
		}
		return nil
	}
	return fmt.Errorf("expected a name or a table, got %T", v)
}

// Load finds and parses the configuration called name (see Find).
func Load(name string) (*Config, error) {
	path, ok := Find(name, "", ".toml")
	if !ok {
		return nil, fmt.Errorf("configuration file '%s' not found", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes a configuration from data and resolves its theme and icons.
func Parse(data []byte) (*Config, error) {
	var raw fileConfig
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		IconsFormat:     themes.DefaultIconsFormat,
		InvertScrolling: raw.InvertScrolling,
		ErrorInterval:   DefaultErrorInterval,
	}
	if raw.IconsFormat != nil {
		cfg.IconsFormat = *raw.IconsFormat
	}
	if raw.ErrorInterval != nil {
		cfg.ErrorInterval = seconds(*raw.ErrorInterval)
	}
	if cfg.Theme, err = loadTheme(raw.Theme); err != nil {
		return nil, err
	}
	if cfg.Icons, err = loadIcons(raw.Icons); err != nil {
		return nil, err
	}

	for i, prim := range raw.Blocks {
		var common commonOptions
		if err := md.PrimitiveDecode(prim, &common); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		b := &Block{
			Index:          i,
			Type:           common.Block,
			Click:          common.Click,
			IconsFormat:    cfg.IconsFormat,
			ThemeOverrides: common.ThemeOverrides,
			IfCommand:      common.IfCommand,
			ErrorInterval:  cfg.ErrorInterval,
			prim:           prim,
			md:             &md,
		}
		if common.IconsFormat != nil {
			b.IconsFormat = *common.IconsFormat
		}
		if common.ErrorInterval != nil {
			b.ErrorInterval = seconds(*common.ErrorInterval)
		}
		cfg.Blocks = append(cfg.Blocks, b)
	}
	return cfg, nil
}

func loadTheme(spec assetSpec) (*themes.Theme, error) {
	var (
		theme *themes.Theme
		err   error
	)
	switch {
	case spec.File != "":
		theme, err = readAsset(ExpandPath(spec.File), themes.ParseTheme)
	default:
		name := spec.Name
		if name == "" {
			name = themes.DefaultTheme
		}
		if path, ok := Find(name, "themes", ".toml"); ok {
			theme, err = readAsset(path, themes.ParseTheme)
		} else {
			theme, err = themes.BuiltinTheme(name)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := theme.ApplyOverrides(spec.Overrides); err != nil {
		return nil, err
	}
	return theme, nil
}

func loadIcons(spec assetSpec) (themes.Icons, error) {
	var (
		icons themes.Icons
		err   error
	)
	switch {
	case spec.File != "":
		icons, err = readAsset(ExpandPath(spec.File), themes.ParseIcons)
	default:
		name := spec.Name
		if name == "" {
			name = themes.DefaultIcons
		}
		if path, ok := Find(name, "icons", ".toml"); ok {
			icons, err = readAsset(path, themes.ParseIcons)
		} else {
			icons, err = themes.BuiltinIcons(name)
		}
	}
	if err != nil {
		return nil, err
	}
	icons.ApplyOverrides(spec.Overrides)
	return icons, nil
}

func readAsset[T any](path string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := parse(data)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
