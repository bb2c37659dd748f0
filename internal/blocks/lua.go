package blocks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/opd-ai/go-barstatus/internal/config"
	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/lua"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("lua", newLua) }

type luaConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// Script is inline Lua source. File is read when Script is empty.
	Script string `toml:"script"`
	File   string `toml:"file"`
}

type luaBlock struct {
	every   Interval
	formats *Formats
	runtime *lua.Runtime
	chunk   *lua.Chunk
}

func newLua(dec Decoder) (Block, error) {
	var cfg luaConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$text.str()")
	if err != nil {
		return nil, err
	}

	name, src := "script", cfg.Script
	switch {
	case cfg.Script != "" && cfg.File != "":
		return nil, errors.New("'script' and 'file' are mutually exclusive")
	case cfg.File != "":
		name = config.ExpandPath(cfg.File)
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		src = string(data)
	case cfg.Script == "":
		return nil, errors.New("either 'script' or 'file' must be specified")
	}

	runtime := lua.New(lua.DefaultConfig())
	chunk, err := runtime.Load(name, src)
	if err != nil {
		runtime.Close()
		return nil, err
	}
	return &luaBlock{
		every:   interval(cfg.Interval, 10),
		formats: formats,
		runtime: runtime,
		chunk:   chunk,
	}, nil
}

func (b *luaBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update}.run(ctx, api, events)
}

func (b *luaBlock) update(ctx context.Context, api *API) error {
	result, err := b.runtime.Run(ctx, b.chunk)
	if err != nil {
		return fail("lua", "script failed", err)
	}
	if err := api.SetIcon(result["icon"]); err != nil {
		return fail("lua", fmt.Sprintf("unknown icon '%s'", result["icon"]), err)
	}
	api.Update(luaValues(result), widget.ParseState(strings.ToLower(result["state"])))
	return nil
}

// luaValues turns the table returned by a script into text values. The
// "state" and "icon" keys configure the widget instead.
func luaValues(result map[string]string) formatting.Values {
	values := make(formatting.Values, len(result))
	for k, v := range result {
		if k != "state" && k != "icon" {
			values[k] = formatting.Text(v)
		}
	}
	return values
}
