package formatting

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, source string, values Values) (string, error) {
	t.Helper()
	tmpl, err := Parse(source)
	require.NoError(t, err, "Parse(%q)", source)
	return tmpl.Render(values)
}

func TestParseLiteralRoundTrip(t *testing.T) {
	for _, s := range []string{
		"",
		"hello",
		"CPU: 100%",
		"multi word text with spaces ",
		"unicode ✓ ünïcödé",
		"punctuation.()[],;:",
	} {
		t.Run(s, func(t *testing.T) {
			got, err := render(t, s, nil)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestParseEscapes(t *testing.T) {
	got, err := render(t, `a\{b\}\$c\|d\\e`, nil)
	require.NoError(t, err)
	assert.Equal(t, `a{b}$c|d\e`, got)

	got, err = render(t, `$na\.me.str()`, Values{"na.me": Text("x")})
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	_, err = Parse(`$v.str(\,)`)
	require.Error(t, err, "escaped comma is a malformed width")
}

func TestRenderPlaceholders(t *testing.T) {
	values := Values{
		"name":  Text("eth0"),
		"speed": Number(1500).BytesPerSecond(),
		"up":    Flag(),
	}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"text", "$name.str()", "eth0"},
		{"surrounding text", "[$name.str()]", "[eth0]"},
		{"number", "$speed.eng(3)", "1.5KB/s"},
		{"default formatter text", "$name.()", "eth0"},
		{"default formatter number", "$speed.()", " 1KB/s"},
		{"default formatter flag", "$up.()", ""},
		{"flag in nested group", "{$up.flag()online}", "online"},
		{"two placeholders", "$name.str(): $speed.eng(4)", "eth0: 1.50KB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, tt.source, values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderAlternatives(t *testing.T) {
	values := Values{"t": Text("abc"), "n": Number(50).Percents()}

	t.Run("format error falls through", func(t *testing.T) {
		got, err := render(t, "$t.eng()|fallback", values)
		require.NoError(t, err)
		assert.Equal(t, "fallback", got)
	})

	t.Run("first success wins", func(t *testing.T) {
		got, err := render(t, "$n.eng(2)|fallback", values)
		require.NoError(t, err)
		assert.Equal(t, "50%", got)
	})

	t.Run("format error in last alternative is returned", func(t *testing.T) {
		_, err := render(t, "$n.str()|$t.eng()", values)
		require.Error(t, err)
		var inc *IncompatibleFormatterError
		require.ErrorAs(t, err, &inc)
		assert.Equal(t, "eng", inc.Formatter)
		assert.Equal(t, KindText, inc.Kind)
	})

	t.Run("unknown placeholder is not soft", func(t *testing.T) {
		_, err := render(t, "$missing.str()|fallback", values)
		require.Error(t, err)
		var up *UnknownPlaceholderError
		require.ErrorAs(t, err, &up)
		assert.Equal(t, "missing", up.Name)
		assert.False(t, IsFormatError(err))
	})

	t.Run("empty alternatives", func(t *testing.T) {
		got, err := render(t, "|", values)
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})
}

// Nested groups swallow every failure, including unknown placeholders,
// while top-level alternatives only swallow format errors.
func TestNestedGroupSwallowsAllErrors(t *testing.T) {
	got, err := render(t, "{$missing.str()}|fallback", Values{})
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = render(t, "a{$missing.str()}b", Values{})
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	got, err = render(t, "Percentage: {$p.eng(2)|N/A}", Values{"p": Text("x")})
	require.NoError(t, err)
	assert.Equal(t, "Percentage: N/A", got)

	got, err = render(t, "Percentage: {$p.eng(2)|N/A}", Values{"p": Number(7).Percents()})
	require.NoError(t, err)
	assert.Equal(t, "Percentage:  7%", got)

	got, err = render(t, "{outer {$missing.str()} inner}", Values{})
	require.NoError(t, err)
	assert.Equal(t, "outer  inner", got)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		source string
		reason string
		pos    int
	}{
		{"${unterminated", "Missing '.'", 14},
		{"$x", "Missing '.'", 2},
		{"$x.str", "Missing '('", 6},
		{"$x.str(", "Missing ')'", 7},
		{"$x.str(1,2", "Missing ')'", 10},
		{"{abc", "Missing '}'", 4},
		{"{a{b}", "Missing '}'", 5},
		{"abc}", "Unexpected '}'", 3},
		{"a|b}c", "Unexpected '}'", 3},
		{"$.str()", "Empty placeholder name", 0},
		{`abc\`, "Dangling escape", 3},
		{`{a\`, "Dangling escape", 2},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tmpl, err := Parse(tt.source)
			require.Error(t, err)
			assert.Nil(t, tmpl)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.Equal(t, tt.pos, pe.Pos)
		})
	}
}

func TestParseFormatterConfigErrors(t *testing.T) {
	for _, source := range []string{
		"$x.nope()",
		"$x.str(abc)",
		"$x.str(5,2)",
		"$x.bar(-1)",
		"$x.bar(5,zero)",
		"$x.bar(5,0)",
		"$x.eng(3,furlongs)",
		"$x.eng(3,B,X)",
		"$x.rot-str(10,0.01)",
		"$x.fix(abc)",
	} {
		t.Run(source, func(t *testing.T) {
			_, err := Parse(source)
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			var ce *ConfigError
			assert.True(t, errors.As(err, &ce), "want ConfigError cause, got %v", err)
		})
	}
}

func TestArgs(t *testing.T) {
	v := Values{"t": Text("abcdef")}

	got, err := render(t, "$t.str(,3)", v)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = render(t, "$t.str(8)", v)
	require.NoError(t, err)
	assert.Equal(t, "abcdef  ", got)

	got, err = render(t, "$t.str(0,inf)", v)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", got)

	n := Values{"n": Number(1500).Bytes()}
	got, err = render(t, "$n.eng(3, B)", n)
	require.NoError(t, err)
	assert.Equal(t, "1.5K B", got)

	got, err = render(t, "$n.eng(3,B, K)", n)
	require.NoError(t, err)
	assert.Equal(t, "1.5 KB", got)
}

func TestTemplateIntrospection(t *testing.T) {
	tmpl, err := Parse("$a.str() {$b.eng()|$c.rot-str(5,0.5)} $a.str()|$d.bar()")
	require.NoError(t, err)

	assert.True(t, tmpl.ContainsKey("a"))
	assert.True(t, tmpl.ContainsKey("c"))
	assert.True(t, tmpl.ContainsKey("d"))
	assert.False(t, tmpl.ContainsKey("e"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, tmpl.Placeholders())
	assert.Equal(t, 500*time.Millisecond, tmpl.TickInterval())

	plain := MustParse("$a.str()")
	assert.Zero(t, plain.TickInterval())
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("$x") })
}

func TestFormatRender(t *testing.T) {
	f, err := NewFormat("$name.str() $n.eng(2)", "$n.eng(2)")
	require.NoError(t, err)

	full, short, err := f.Render(Values{"name": Text("cpu"), "n": Number(42).Percents()})
	require.NoError(t, err)
	assert.Equal(t, "cpu 42%", full)
	assert.Equal(t, "42%", short)
	assert.True(t, f.ContainsKey("name"))

	noShort, err := NewFormat("$n.eng(2)", "")
	require.NoError(t, err)
	_, short, err = noShort.Render(Values{"n": Number(1)})
	require.NoError(t, err)
	assert.Empty(t, short)

	_, _, err = f.Render(Values{"n": Number(1)})
	require.Error(t, err)
	assert.True(t, IsUnknownPlaceholder(err))

	_, err = NewFormat("ok", "$x")
	require.Error(t, err)
}
