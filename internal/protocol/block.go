// Package protocol speaks the i3bar/swaybar JSON protocol: the header, the
// stream of block arrays on stdout, and click events on stdin.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/opd-ai/go-barstatus/internal/themes"
)

// Block is one entry of a status line update.
type Block struct {
	FullText   string
	ShortText  string
	Color      themes.Color
	Background themes.Color
	// Name carries the block id and Instance the button id, so click events
	// can be routed back.
	Name     string
	Instance string
	Markup   string
	Urgent   bool
	// Separator and SeparatorBlockWidth are omitted when nil, letting the
	// bar draw its native separator.
	Separator           *bool
	SeparatorBlockWidth *int
}

type wireBlock struct {
	FullText            string `json:"full_text"`
	ShortText           string `json:"short_text,omitempty"`
	Color               string `json:"color,omitempty"`
	Background          string `json:"background,omitempty"`
	Name                string `json:"name,omitempty"`
	Instance            string `json:"instance,omitempty"`
	Separator           *bool  `json:"separator,omitempty"`
	SeparatorBlockWidth *int   `json:"separator_block_width,omitempty"`
	Markup              string `json:"markup,omitempty"`
	Urgent              bool   `json:"urgent,omitempty"`
}

// MarshalJSON renders colors as #RRGGBBAA and drops unset fields.
func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireBlock{
		FullText:            b.FullText,
		ShortText:           b.ShortText,
		Color:               b.Color.Hex(),
		Background:          b.Background.Hex(),
		Name:                b.Name,
		Instance:            b.Instance,
		Separator:           b.Separator,
		SeparatorBlockWidth: b.SeparatorBlockWidth,
		Markup:              b.Markup,
		Urgent:              b.Urgent,
	})
}

// WriteHeader writes the protocol header and opens the infinite array.
// When neverPause is set the bar is asked not to stop the process when it
// is hidden.
func WriteHeader(w io.Writer, neverPause bool) error {
	header := `{"version": 1, "click_events": true}`
	if neverPause {
		header = `{"version": 1, "click_events": true, "stop_signal": 0}`
	}
	_, err := fmt.Fprintf(w, "%s\n[\n", header)
	return err
}
