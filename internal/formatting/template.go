package formatting

import (
	"fmt"
	"strings"
	"time"
)

// Token is one node of a parsed template: *TextToken, *VarToken or
// *NestedToken.
type Token interface {
	isToken()
}

// TextToken is literal text, already unescaped.
type TextToken struct {
	Text string
}

// VarToken is a placeholder bound to its formatter.
type VarToken struct {
	Name      string
	Formatter Formatter
}

// NestedToken is a "{...}" group. It renders as the empty string when
// none of its alternatives can be rendered.
type NestedToken struct {
	Template *Template
}

func (*TextToken) isToken()   {}
func (*VarToken) isToken()    {}
func (*NestedToken) isToken() {}

// TokenList is a sequence of tokens rendered left to right.
type TokenList []Token

// Template is a list of '|'-separated alternatives. It is immutable after
// Parse and safe for concurrent use by multiple goroutines, provided its
// formatters are (all built-in formatters are).
type Template struct {
	Alternatives []TokenList
}

// Parse parses a template source string. Formatters are constructed here,
// so an unknown formatter or bad formatter argument is reported by Parse
// rather than by Render.
func Parse(source string) (*Template, error) {
	p := &parser{src: append([]rune(source), '}')}
	t, err := p.template()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.src) {
		return nil, &ParseError{Reason: "Unexpected '}'", Pos: p.pos - 1}
	}
	return t, nil
}

// MustParse is like Parse but panics on error. It is meant for templates
// compiled into the program, such as block defaults.
func MustParse(source string) *Template {
	t, err := Parse(source)
	if err != nil {
		panic(fmt.Sprintf("formatting: Parse(%q): %v", source, err))
	}
	return t
}

// Render renders the first alternative that succeeds. A format-class error
// moves on to the next alternative unless it occurred in the last one.
// An unknown placeholder is returned immediately from any alternative.
func (t *Template) Render(values Values) (string, error) {
	last := len(t.Alternatives) - 1
	for i, alt := range t.Alternatives {
		out, err := alt.render(values)
		if err == nil {
			return out, nil
		}
		if !IsFormatError(err) || i == last {
			return "", err
		}
	}
	return "", nil
}

func (tl TokenList) render(values Values) (string, error) {
	var b strings.Builder
	for _, tok := range tl {
		switch tok := tok.(type) {
		case *TextToken:
			b.WriteString(tok.Text)
		case *NestedToken:
			// Optional section: any failure inside collapses it.
			if out, err := tok.Template.Render(values); err == nil {
				b.WriteString(out)
			}
		case *VarToken:
			v, ok := values[tok.Name]
			if !ok {
				return "", &UnknownPlaceholderError{Name: tok.Name}
			}
			out, err := tok.Formatter.Format(v)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		}
	}
	return b.String(), nil
}

// ContainsKey reports whether any alternative, at any nesting depth,
// references the placeholder name.
func (t *Template) ContainsKey(name string) bool {
	found := false
	t.walk(func(v *VarToken) {
		if v.Name == name {
			found = true
		}
	})
	return found
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	var names []string
	seen := make(map[string]bool)
	t.walk(func(v *VarToken) {
		if !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	})
	return names
}

// TickInterval returns the shortest re-render interval requested by a
// time-dependent formatter, or zero when the output depends only on values.
func (t *Template) TickInterval() time.Duration {
	var d time.Duration
	t.walk(func(v *VarToken) {
		if tk, ok := v.Formatter.(Ticker); ok {
			if i := tk.Interval(); d == 0 || i < d {
				d = i
			}
		}
	})
	return d
}

func (t *Template) walk(fn func(*VarToken)) {
	for _, alt := range t.Alternatives {
		for _, tok := range alt {
			switch tok := tok.(type) {
			case *VarToken:
				fn(tok)
			case *NestedToken:
				tok.Template.walk(fn)
			}
		}
	}
}

// parser is a single-pass recursive descent parser over the template
// runes. The source always ends with a synthetic '}' closing the
// outermost template.
type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) template() (*Template, error) {
	t := &Template{}
	var cur TokenList
	for {
		if p.eof() {
			return nil, &ParseError{Reason: "Missing '}'", Pos: p.pos - 1}
		}
		switch p.src[p.pos] {
		case '{':
			p.pos++
			nested, err := p.template()
			if err != nil {
				return nil, err
			}
			cur = append(cur, &NestedToken{Template: nested})
		case '}':
			p.pos++
			t.Alternatives = append(t.Alternatives, cur)
			return t, nil
		case '|':
			p.pos++
			t.Alternatives = append(t.Alternatives, cur)
			cur = nil
		case '$':
			tok, err := p.placeholder()
			if err != nil {
				return nil, err
			}
			cur = append(cur, tok)
		default:
			text, err := p.text()
			if err != nil {
				return nil, err
			}
			cur = append(cur, &TextToken{Text: text})
		}
	}
}

// text reads literal text up to the next unescaped special rune. A
// backslash that would escape the synthetic closing '}' is an error.
func (p *parser) text() (string, error) {
	var b strings.Builder
	escaped := false
	for !p.eof() {
		c := p.src[p.pos]
		if escaped {
			escaped = false
			b.WriteRune(c)
			p.pos++
			continue
		}
		switch c {
		case '\\':
			if p.pos == len(p.src)-2 {
				return "", &ParseError{Reason: "Dangling escape", Pos: p.pos}
			}
			escaped = true
			p.pos++
		case '{', '}', '$', '|':
			return b.String(), nil
		default:
			b.WriteRune(c)
			p.pos++
		}
	}
	return b.String(), nil
}

// until reads runes up to and including the unescaped terminator and
// returns the unescaped content before it.
func (p *parser) until(term rune) (string, bool) {
	var b strings.Builder
	escaped := false
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch {
		case escaped:
			escaped = false
			b.WriteRune(c)
		case c == '\\':
			escaped = true
		case c == term:
			return b.String(), true
		default:
			b.WriteRune(c)
		}
	}
	return b.String(), false
}

func (p *parser) args() ([]string, bool) {
	var args []string
	var cur strings.Builder
	escaped := false
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch {
		case escaped:
			escaped = false
			cur.WriteRune(c)
		case c == '\\':
			escaped = true
		case c == ',':
			args = append(args, cur.String())
			cur.Reset()
		case c == ')':
			if cur.Len() > 0 || len(args) > 0 {
				args = append(args, cur.String())
			}
			return args, true
		default:
			cur.WriteRune(c)
		}
	}
	return nil, false
}

func (p *parser) placeholder() (Token, error) {
	start := p.pos
	p.pos++ // '$'

	name, ok := p.until('.')
	if !ok {
		return nil, &ParseError{Reason: "Missing '.'", Pos: p.pos - 1}
	}
	if name == "" {
		return nil, &ParseError{Reason: "Empty placeholder name", Pos: start}
	}
	formatter, ok := p.until('(')
	if !ok {
		return nil, &ParseError{Reason: "Missing '('", Pos: p.pos - 1}
	}
	args, ok := p.args()
	if !ok {
		return nil, &ParseError{Reason: "Missing ')'", Pos: p.pos - 1}
	}

	f, err := NewFormatter(formatter, args)
	if err != nil {
		return nil, &ParseError{
			Reason: fmt.Sprintf("Invalid formatter for '%s'", name),
			Pos:    start,
			Err:    err,
		}
	}
	return &VarToken{Name: name, Formatter: f}, nil
}
