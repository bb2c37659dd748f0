// Package click runs the commands bound to mouse buttons in the
// configuration.
package click

import (
	"fmt"

	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
)

// Button is a mouse button as written in the configuration: either a name
// ("left", "up", ...) or an X11 button number.
type Button protocol.MouseButton

// UnmarshalTOML implements toml.Unmarshaler.
func (b *Button) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		*b = Button(protocol.ParseButton(v))
	case int64:
		*b = Button(protocol.ButtonFromCode(int(v)))
	default:
		return fmt.Errorf("button must be a name or a number, got %T", v)
	}
	return nil
}

// Entry binds a command to a button.
type Entry struct {
	Button Button `toml:"button"`
	Cmd    string `toml:"cmd"`
	// Update also delivers the click to the block.
	Update bool `toml:"update"`
}

// Handler dispatches clicks to the configured entries.
type Handler struct {
	entries []Entry
	spawn   func(cmd string) error
}

// NewHandler creates a Handler for entries.
func NewHandler(entries []Entry) *Handler {
	return &Handler{entries: entries, spawn: subprocess.Spawn}
}

// Handle runs the command bound to button, if any, and reports whether the
// block should also receive the click. It does when no entry matches or
// the matching entry asks for an update.
func (h *Handler) Handle(button protocol.MouseButton) (forward bool, err error) {
	if h == nil {
		return true, nil
	}
	for _, e := range h.entries {
		if protocol.MouseButton(e.Button) != button {
			continue
		}
		if e.Cmd != "" {
			if err := h.spawn(e.Cmd); err != nil {
				return e.Update, err
			}
		}
		return e.Update, nil
	}
	return true, nil
}
