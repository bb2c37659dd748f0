package blocks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/themes"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

// CmdKind identifies a command sent to the runtime.
type CmdKind int

const (
	CmdHide CmdKind = iota
	CmdCollapse
	CmdShow
	CmdSetIcon
	CmdSetState
	CmdSetText
	CmdSetValues
	CmdSetFormat
	CmdAddButton
	CmdSetButton
	CmdRender
)

var cmdNames = [...]string{
	"hide", "collapse", "show", "set_icon", "set_state", "set_text",
	"set_values", "set_format", "add_button", "set_button", "render",
}

func (k CmdKind) String() string {
	if int(k) < len(cmdNames) {
		return cmdNames[k]
	}
	return "unknown"
}

// Cmd is one change to a block's widgets. Only the fields relevant to
// Kind are set.
type Cmd struct {
	Kind CmdKind
	// Icon is the formatted icon for SetIcon, AddButton and SetButton.
	Icon     string
	State    widget.State
	Full     string
	Short    string
	Values   formatting.Values
	Format   *formatting.Format
	Instance int
}

// Request carries the commands of one flush.
type Request struct {
	ID   int
	Cmds []Cmd
}

// API is a block's handle on the runtime. It is not safe for concurrent
// use; a block owns its API.
type API struct {
	// ID is the block's position in the configuration.
	ID int
	// Log is tagged with the block id and type.
	Log zerolog.Logger

	icons       themes.Icons
	iconsFormat string
	requests    chan<- Request
	cmds        []Cmd
}

// NewAPI creates the API of block id. Commands are delivered on requests.
func NewAPI(id int, icons themes.Icons, iconsFormat string, requests chan<- Request, log zerolog.Logger) *API {
	return &API{
		ID:          id,
		Log:         log,
		icons:       icons,
		iconsFormat: iconsFormat,
		requests:    requests,
	}
}

func (a *API) push(c Cmd) {
	a.cmds = append(a.cmds, c)
}

// Hide removes the block from the bar.
func (a *API) Hide() { a.push(Cmd{Kind: CmdHide}) }

// Collapse shows only the block's icon.
func (a *API) Collapse() { a.push(Cmd{Kind: CmdCollapse}) }

// Show undoes Hide and Collapse.
func (a *API) Show() { a.push(Cmd{Kind: CmdShow}) }

// SetIcon sets the block's icon by name. An empty name removes it.
func (a *API) SetIcon(name string) error {
	icon, err := a.Icon(name)
	if err != nil {
		return err
	}
	a.push(Cmd{Kind: CmdSetIcon, Icon: icon})
	return nil
}

// SetState sets the block's color state.
func (a *API) SetState(s widget.State) { a.push(Cmd{Kind: CmdSetState, State: s}) }

// SetText sets literal text, bypassing the format.
func (a *API) SetText(full, short string) {
	a.push(Cmd{Kind: CmdSetText, Full: full, Short: short})
}

// SetValues replaces the values the format is rendered with.
func (a *API) SetValues(v formatting.Values) { a.push(Cmd{Kind: CmdSetValues, Values: v}) }

// SetFormat replaces the block's format.
func (a *API) SetFormat(f *formatting.Format) { a.push(Cmd{Kind: CmdSetFormat, Format: f}) }

// AddButton adds a clickable widget after the block's own widget.
func (a *API) AddButton(instance int, icon string) error {
	glyph, err := a.Icon(icon)
	if err != nil {
		return err
	}
	a.push(Cmd{Kind: CmdAddButton, Instance: instance, Icon: glyph})
	return nil
}

// SetButton changes the icon of a button added with AddButton.
func (a *API) SetButton(instance int, icon string) error {
	glyph, err := a.Icon(icon)
	if err != nil {
		return err
	}
	a.push(Cmd{Kind: CmdSetButton, Instance: instance, Icon: glyph})
	return nil
}

// Render renders the current format with the current values.
func (a *API) Render() { a.push(Cmd{Kind: CmdRender}) }

// Update is the common Show, SetValues, SetState, Render sequence.
func (a *API) Update(values formatting.Values, state widget.State) {
	a.Show()
	a.SetValues(values)
	a.SetState(state)
	a.Render()
}

// Icon returns the named icon wrapped in the block's icons format.
func (a *API) Icon(name string) (string, error) {
	return a.icons.Get(name, a.iconsFormat)
}

// Glyph returns the bare named icon, for values that carry their own icon.
// Missing icons yield "".
func (a *API) Glyph(name string) string {
	return a.icons[name]
}

// Flush sends the queued commands to the runtime. Nothing is sent when no
// command is queued.
func (a *API) Flush(ctx context.Context) error {
	if len(a.cmds) == 0 {
		return nil
	}
	req := Request{ID: a.ID, Cmds: a.cmds}
	select {
	case a.requests <- req:
		a.cmds = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the queued commands without sending them.
func (a *API) Pending() []Cmd {
	return a.cmds
}
