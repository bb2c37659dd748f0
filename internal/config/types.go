// Package config loads the barstatus TOML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/opd-ai/go-barstatus/internal/click"
	"github.com/opd-ai/go-barstatus/internal/themes"
)

// DefaultErrorInterval is how long a failed block waits before it restarts.
const DefaultErrorInterval = 5 * time.Second

// Config is a loaded configuration file.
type Config struct {
	// Path is the file the configuration was read from.
	Path string

	Theme           *themes.Theme
	Icons           themes.Icons
	IconsFormat     string
	InvertScrolling bool
	ErrorInterval   time.Duration

	Blocks []*Block
}

// Block is one [[block]] table. Options understood by every block are
// decoded here; the block's own options stay undecoded until the block
// calls Decode.
type Block struct {
	// Index is the block's position in the configuration.
	Index int
	// Type is the value of the "block" key.
	Type string

	Click          []click.Entry
	IconsFormat    string
	ThemeOverrides map[string]string
	IfCommand      *string
	ErrorInterval  time.Duration

	prim toml.Primitive
	md   *toml.MetaData
}

// commonOptions holds the keys shared by every [[block]] table.
type commonOptions struct {
	Block          string            `toml:"block"`
	Click          []click.Entry     `toml:"click"`
	IconsFormat    *string           `toml:"icons_format"`
	ThemeOverrides map[string]string `toml:"theme_overrides"`
	IfCommand      *string           `toml:"if_command"`
	ErrorInterval  *float64          `toml:"error_interval"`
}

// Decode decodes the block's table into v. Keys that v does not declare
// are ignored, which lets a block share its table with the common options.
func (b *Block) Decode(v any) error {
	if b.md == nil {
		return nil
	}
	if err := b.md.PrimitiveDecode(b.prim, v); err != nil {
		return fmt.Errorf("block %d (%s): %w", b.Index, b.Type, err)
	}
	return nil
}

// Defined reports whether the block's table sets key.
func (b *Block) Defined(key string) bool {
	if b.md == nil {
		return false
	}
	var raw map[string]any
	if err := b.md.PrimitiveDecode(b.prim, &raw); err != nil {
		return false
	}
	_, ok := raw[key]
	return ok
}

// ResolveTheme returns base with the block's theme overrides applied.
// base itself is never modified.
func (b *Block) ResolveTheme(base *themes.Theme) (*themes.Theme, error) {
	if len(b.ThemeOverrides) == 0 {
		return base, nil
	}
	t := base.Clone()
	if err := t.ApplyOverrides(b.ThemeOverrides); err != nil {
		return nil, fmt.Errorf("block %d (%s): %w", b.Index, b.Type, err)
	}
	return t, nil
}

// seconds converts a TOML number of seconds to a Duration.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
