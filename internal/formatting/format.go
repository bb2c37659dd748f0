package formatting

import (
	"fmt"
	"time"
)

// Format pairs the template for a block's full text with an optional
// template for its short text, used by the bar when space runs out.
type Format struct {
	Full  *Template
	Short *Template
}

// NewFormat parses full and, when non-empty, short.
func NewFormat(full, short string) (*Format, error) {
	f := &Format{}
	var err error
	if f.Full, err = Parse(full); err != nil {
		return nil, err
	}
	if short != "" {
		if f.Short, err = Parse(short); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Render renders the full and short texts. The short text is empty when
// no short template is set.
func (f *Format) Render(values Values) (full, short string, err error) {
	if full, err = f.Full.Render(values); err != nil {
		return "", "", fmt.Errorf("failed to render full text: %w", err)
	}
	if f.Short != nil {
		if short, err = f.Short.Render(values); err != nil {
			return "", "", fmt.Errorf("failed to render short text: %w", err)
		}
	}
	return full, short, nil
}

// ContainsKey reports whether either template references name.
func (f *Format) ContainsKey(name string) bool {
	return f.Full.ContainsKey(name) || (f.Short != nil && f.Short.ContainsKey(name))
}

// TickInterval is the shortest Ticker interval of both templates.
func (f *Format) TickInterval() time.Duration {
	d := f.Full.TickInterval()
	if f.Short != nil {
		if s := f.Short.TickInterval(); s > 0 && (d == 0 || s < d) {
			d = s
		}
	}
	return d
}
