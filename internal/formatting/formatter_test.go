package formatting

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormatter(t *testing.T, name string, args ...string) Formatter {
	t.Helper()
	f, err := NewFormatter(name, args)
	require.NoError(t, err)
	return f
}

func TestStrFormatter(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
		want string
	}{
		{"defaults", nil, "hello", "hello"},
		{"pad", []string{"4"}, "ab", "ab  "},
		{"truncate", []string{"0", "3"}, "abcdef", "abc"},
		{"truncate counts runes", []string{"", "4"}, "héllo wörld", "héll"},
		{"pad counts runes", []string{"3"}, "ü", "ü  "},
		{"exact", []string{"3", "3"}, "abc", "abc"},
		{"empty input", []string{"2"}, "", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newFormatter(t, "str", tt.args...).Format(Text(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := newFormatter(t, "str").Format(Number(1))
	var inc *IncompatibleFormatterError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, "A number cannot be formatted with 'str' formatter", err.Error())
}

func TestRotStrFormatter(t *testing.T) {
	f := newFormatter(t, "rot-str", "5", "1")
	rot, ok := f.(*RotStrFormatter)
	require.True(t, ok)
	assert.Equal(t, time.Second, rot.Interval())

	start := time.Unix(1000, 0)
	now := start
	rot.start = start
	rot.now = func() time.Time { return now }

	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "abcde"},
		{1500 * time.Millisecond, "bcdef"},
		{4 * time.Second, "efgh|"},
		{6 * time.Second, "gh|ab"},
		{8 * time.Second, "|abcd"},
		{9 * time.Second, "abcde"},
	}
	for _, tt := range tests {
		now = start.Add(tt.elapsed)
		got, err := rot.Format(Text("abcdefgh"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "after %v", tt.elapsed)
	}

	got, err := rot.Format(Text("ab"))
	require.NoError(t, err)
	assert.Equal(t, "ab   ", got)

	_, err = rot.Format(Flag())
	assert.True(t, IsFormatError(err))
}

func TestBarFormatter(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   float64
		want string
	}{
		{"zero", nil, 0, "     "},
		{"negative", nil, -10, "     "},
		{"full", nil, 100, "█████"},
		{"over max", nil, 150, "█████"},
		{"half", nil, 50, "██▌  "},
		{"eighth", []string{"1", "8"}, 1, "▏"},
		{"custom max", []string{"4", "1"}, 0.5, "██  "},
		{"nan", nil, math.NaN(), "     "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newFormatter(t, "bar", tt.args...).Format(Number(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := newFormatter(t, "bar").Format(Text("x"))
	assert.True(t, IsFormatError(err))
}

func TestEngFormatter(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   Value
		want string
	}{
		{"kilo bytes", []string{"3"}, Number(1500).Bytes(), "1.5KB"},
		{"plain bytes", []string{"3"}, Number(1.5).Bytes(), "1.5B"},
		{"mega bytes", []string{"3"}, Number(1.5e6).Bytes(), "1.5MB"},
		{"forced prefix hidden unit", []string{"3", "_B", "!M"}, Number(2.5e9).Bytes(), "2500M"},
		{"forced prefix by name", []string{"3", "B", "!Mega"}, Number(2.5e9).Bytes(), "2500MB"},
		{"minimum prefix", []string{"3", "", "K"}, Number(500).Bytes(), "0.5KB"},
		{"zero", []string{"3"}, Number(0).Bytes(), "0.0B"},
		{"negative", []string{"3"}, Number(-5), " -5"},
		{"bytes to bits", []string{"3", "b"}, Number(1000).Bytes(), "8.0Kb"},
		{"bits to bytes", []string{"3", "B/s"}, Number(16000).BitsPerSecond(), "2.0KB/s"},
		{"hidden prefix", []string{"3", "B", "_"}, Number(1500).Bytes(), "1.5B"},
		{"icon first", []string{"3"}, Number(1500).Bytes().WithIcon("↓"), "↓1.5KB"},
		{"milli watts", []string{"3"}, Number(0.5).Watts(), "500mW"},
		{"seconds never scaled up", []string{"3"}, Number(7200).Seconds(), "7200s"},
		{"percents never scaled", []string{"3"}, Number(99.5).Percents(), " 99%"},
		{"percents integer", []string{"2"}, Number(42).Percents(), "42%"},
		{"decimals", []string{"5"}, Number(3.14159), "3.142"},
		{"degrees", nil, Number(45).Degrees(), " 45°"},
		{"hertz", []string{"3"}, Number(2.4e9).Hertz(), "2.4GHz"},
		{"space before unit", []string{"3", " B"}, Number(1500).Bytes(), "1.5K B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newFormatter(t, "eng", tt.args...).Format(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Values three orders of magnitude apart render with the same numeral and
// adjacent prefixes.
func TestEngPrefixShift(t *testing.T) {
	f := newFormatter(t, "eng", "3")
	prev, err := f.Format(Number(1.5).Watts())
	require.NoError(t, err)
	assert.Equal(t, "1.5W", prev)

	v := 1.5
	for _, want := range []string{"1.5KW", "1.5MW", "1.5GW", "1.5TW", "1.5PW"} {
		v *= 1000
		got, err := f.Format(Number(v).Watts())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEngFormatterErrors(t *testing.T) {
	f := newFormatter(t, "eng", "3", "B")

	_, err := f.Format(Number(20).Degrees())
	require.Error(t, err)
	var conv *ConversionError
	require.ErrorAs(t, err, &conv)
	assert.Equal(t, UnitDegrees, conv.From)
	assert.Equal(t, UnitBytes, conv.To)
	assert.True(t, IsFormatError(err))

	_, err = f.Format(Text("x"))
	assert.True(t, IsFormatError(err))
}

func TestFixFormatter(t *testing.T) {
	f := newFormatter(t, "fix", "3")

	_, err := f.Format(Number(1))
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.True(t, IsFormatError(err))

	_, err = f.Format(Text("x"))
	var inc *IncompatibleFormatterError
	assert.ErrorAs(t, err, &inc)
}

func TestFlagFormatter(t *testing.T) {
	f := newFormatter(t, "flag")

	got, err := f.Format(Flag())
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.Format(Number(1))
	assert.True(t, IsFormatError(err))
}

func TestKindFormatter(t *testing.T) {
	f := newFormatter(t, "")

	got, err := f.Format(Text("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = f.Format(Number(75).Percents())
	require.NoError(t, err)
	assert.Equal(t, "75%", got)

	got, err = f.Format(Flag())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewFormatterUnknown(t *testing.T) {
	_, err := NewFormatter("pango", nil)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Unknown formatter: 'pango'", ce.Error())
}
