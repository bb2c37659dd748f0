// Package widget turns block state into protocol blocks.
package widget

import (
	"strconv"

	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/themes"
)

// State selects the theme colors of a widget.
type State int

const (
	StateIdle State = iota
	StateInfo
	StateGood
	StateWarning
	StateCritical
)

var stateNames = [...]string{"idle", "info", "good", "warning", "critical"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ParseState maps a state name, as returned by custom commands and Lua
// scripts, to a State. Unknown names are Idle.
func ParseState(name string) State {
	for i, n := range stateNames {
		if n == name {
			return State(i)
		}
	}
	return StateIdle
}

// Colors returns the background and foreground for s.
func (s State) Colors(t *themes.Theme) (bg, fg themes.Color) {
	switch s {
	case StateInfo:
		return t.InfoBg, t.InfoFg
	case StateGood:
		return t.GoodBg, t.GoodFg
	case StateWarning:
		return t.WarningBg, t.WarningFg
	case StateCritical:
		return t.CriticalBg, t.CriticalFg
	}
	return t.IdleBg, t.IdleFg
}

// Spacing controls the padding around widget text.
type Spacing int

const (
	// SpacingNormal pads the text on both sides.
	SpacingNormal Spacing = iota
	// SpacingInline drops the leading pad.
	SpacingInline
	// SpacingHidden drops both pads.
	SpacingHidden
)

// NoInstance marks a widget that is not a button.
const NoInstance = -1

// Widget is the visible part of a block or one of its buttons.
type Widget struct {
	// ID is the owning block's id.
	ID int
	// Instance is the button id, or NoInstance.
	Instance int
	// Icon is the already formatted icon, including its padding.
	Icon  string
	State State

	fullText     string
	shortText    string
	fullSpacing  Spacing
	shortSpacing Spacing
}

// New returns an empty idle widget for block id.
func New(id int) *Widget {
	return &Widget{
		ID:           id,
		Instance:     NoInstance,
		fullSpacing:  SpacingHidden,
		shortSpacing: SpacingHidden,
	}
}

// NewButton returns a widget that reports clicks with instance.
func NewButton(id, instance int, icon string) *Widget {
	w := New(id)
	w.Instance = instance
	w.Icon = icon
	return w
}

// SetText sets the full and short text. Empty text hides the padding.
func (w *Widget) SetText(full, short string) {
	w.fullText, w.fullSpacing = full, spacingFor(full)
	w.shortText, w.shortSpacing = short, spacingFor(short)
}

// SetSpacing overrides the spacing of both texts.
func (w *Widget) SetSpacing(s Spacing) {
	w.fullSpacing = s
	w.shortSpacing = s
}

// Text returns the full and short text.
func (w *Widget) Text() (full, short string) {
	return w.fullText, w.shortText
}

func spacingFor(text string) Spacing {
	if text == "" {
		return SpacingHidden
	}
	return SpacingNormal
}

// Block renders the widget with colors from theme.
func (w *Widget) Block(theme *themes.Theme) protocol.Block {
	bg, fg := w.State.Colors(theme)
	noSep, zero := false, 0
	b := protocol.Block{
		FullText:            pad(w.Icon, w.fullText, w.fullSpacing),
		Color:               fg,
		Background:          bg,
		Name:                strconv.Itoa(w.ID),
		Separator:           &noSep,
		SeparatorBlockWidth: &zero,
	}
	if w.shortText != "" {
		b.ShortText = pad(w.Icon, w.shortText, w.shortSpacing)
	}
	if w.Instance != NoInstance {
		b.Instance = strconv.Itoa(w.Instance)
	}
	return b
}

// Collapsed renders only the widget's icon, as used for collapsed blocks.
func (w *Widget) Collapsed(theme *themes.Theme) protocol.Block {
	c := *w
	c.SetText("", "")
	b := c.Block(theme)
	if b.FullText == "" {
		b.FullText = " "
	}
	return b
}

func pad(icon, text string, spacing Spacing) string {
	lead := icon
	if icon == "" && spacing == SpacingNormal {
		lead = " "
	}
	trail := " "
	if spacing == SpacingHidden {
		trail = ""
	}
	return lead + text + trail
}
