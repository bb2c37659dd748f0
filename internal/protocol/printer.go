package protocol

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/opd-ai/go-barstatus/internal/themes"
)

// Printer writes status line updates.
type Printer struct {
	mu    sync.Mutex
	w     *bufio.Writer
	theme *themes.Theme
}

// NewPrinter creates a Printer that draws separators and tints with theme.
func NewPrinter(w io.Writer, theme *themes.Theme) *Printer {
	return &Printer{w: bufio.NewWriter(w), theme: theme}
}

// Print writes one update. Each group holds the widgets of one block;
// empty groups are skipped. Every second visible group is tinted, counted
// so the rightmost group never is.
func (p *Printer) Print(groups [][]Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := Render(groups, p.theme)
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	if _, err := p.w.Write(data); err != nil {
		return err
	}
	if _, err := p.w.WriteString(",\n"); err != nil {
		return err
	}
	return p.w.Flush()
}

// Render flattens groups into a status line, applying the alternating tint
// and inserting themed separators.
func Render(groups [][]Block, theme *themes.Theme) []Block {
	visible := 0
	for _, g := range groups {
		if len(g) > 0 {
			visible++
		}
	}
	// The last visible group has index visible-1 and must not be tinted.
	alt := visible%2 == 0

	var (
		line   []Block
		lastBg = themes.None
	)
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}

		widgets := make([]Block, len(group))
		copy(widgets, group)
		if alt {
			for i := range widgets {
				widgets[i].Background = widgets[i].Background.Add(theme.AlternatingTintBg)
				widgets[i].Color = widgets[i].Color.Add(theme.AlternatingTintFg)
			}
		}
		alt = !alt

		if theme.NativeSeparators() {
			// Only the group's last widget gets the native separator back.
			last := &widgets[len(widgets)-1]
			last.Separator = nil
			last.SeparatorBlockWidth = nil
			line = append(line, widgets...)
			continue
		}

		sepFg := theme.SeparatorFg
		if sepFg.IsAuto() {
			sepFg = widgets[0].Background
		}
		sepBg := theme.SeparatorBg
		if sepBg.IsAuto() {
			sepBg = lastBg
		}
		noSep, zero := false, 0
		line = append(line, Block{
			FullText:            theme.Separator,
			Color:               sepFg,
			Background:          sepBg,
			Separator:           &noSep,
			SeparatorBlockWidth: &zero,
		})
		line = append(line, widgets...)
		lastBg = widgets[len(widgets)-1].Background
	}
	if line == nil {
		line = []Block{}
	}
	return line
}
