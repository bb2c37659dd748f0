package formatting

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Formatter renders a single Value into text.
type Formatter interface {
	Format(v Value) (string, error)
}

// Ticker is implemented by formatters whose output changes with time even
// when the value does not. The owner of the template should re-render at
// least every Interval.
type Ticker interface {
	Interval() time.Duration
}

const (
	defaultStrMinWidth    = 0
	defaultRotStrWidth    = 15
	defaultRotStrInterval = 1.0
	defaultBarWidth       = 5
	defaultBarMaxValue    = 100.0
	defaultEngWidth       = 3
	minRotStrInterval     = 0.1
)

// Default formatters used when a placeholder has no explicit formatter.
var (
	DefaultTextFormatter   Formatter = StrFormatter{MinWidth: defaultStrMinWidth, MaxWidth: -1}
	DefaultNumberFormatter Formatter = EngFormatter{Width: 2}
	DefaultFlagFormatter   Formatter = FlagFormatter{}
)

// NewFormatter constructs the formatter called name from its positional
// arguments. Missing or empty arguments take their documented defaults.
// An unknown name or malformed argument yields a *ConfigError.
func NewFormatter(name string, args []string) (Formatter, error) {
	switch name {
	case "":
		return kindFormatter{}, nil
	case "str":
		return newStrFormatter(args)
	case "rot-str":
		return newRotStrFormatter(args)
	case "bar":
		return newBarFormatter(args)
	case "eng":
		cfg, err := parseEngConfig("eng", args)
		if err != nil {
			return nil, err
		}
		return EngFormatter(cfg), nil
	case "fix":
		cfg, err := parseEngConfig("fix", args)
		if err != nil {
			return nil, err
		}
		return FixFormatter(cfg), nil
	case "flag":
		return FlagFormatter{}, nil
	default:
		return nil, &ConfigError{Message: "Unknown formatter: '" + name + "'"}
	}
}

// arg returns the i-th argument and whether it was given and non-empty.
func arg(args []string, i int) (string, bool) {
	if i >= len(args) || args[i] == "" {
		return "", false
	}
	return args[i], true
}

func parseWidth(formatter string, args []string, i, def int) (int, error) {
	s, ok := arg(args, i)
	if !ok {
		return def, nil
	}
	w, err := strconv.ParseUint(strings.TrimSpace(s), 10, 31)
	if err != nil {
		return 0, &ConfigError{Formatter: formatter, Message: "Width must be a positive integer"}
	}
	return int(w), nil
}

// kindFormatter dispatches to the default formatter of the value's kind.
type kindFormatter struct{}

func (kindFormatter) Format(v Value) (string, error) {
	switch v.Kind {
	case KindText:
		return DefaultTextFormatter.Format(v)
	case KindFlag:
		return DefaultFlagFormatter.Format(v)
	default:
		return DefaultNumberFormatter.Format(v)
	}
}

// StrFormatter pads text with trailing spaces to MinWidth and truncates it
// to MaxWidth characters. A negative MaxWidth means unbounded.
type StrFormatter struct {
	MinWidth int
	MaxWidth int
}

func newStrFormatter(args []string) (Formatter, error) {
	minWidth, err := parseWidth("str", args, 0, defaultStrMinWidth)
	if err != nil {
		return nil, err
	}
	maxWidth := -1
	if s, ok := arg(args, 1); ok && s != "inf" {
		if maxWidth, err = parseWidth("str", args, 1, -1); err != nil {
			return nil, err
		}
		if maxWidth < minWidth {
			return nil, &ConfigError{Formatter: "str", Message: "Max width must be greater of equal to min width"}
		}
	}
	return StrFormatter{MinWidth: minWidth, MaxWidth: maxWidth}, nil
}

// Format implements Formatter.
func (f StrFormatter) Format(v Value) (string, error) {
	if v.Kind != KindText {
		return "", &IncompatibleFormatterError{Formatter: "str", Kind: v.Kind}
	}
	runes := []rune(v.Text)
	if len(runes) < f.MinWidth {
		return v.Text + strings.Repeat(" ", f.MinWidth-len(runes)), nil
	}
	if f.MaxWidth >= 0 && len(runes) > f.MaxWidth {
		return string(runes[:f.MaxWidth]), nil
	}
	return v.Text, nil
}

// RotStrFormatter shows text in a fixed-width window. Text longer than the
// window scrolls by one character every interval, with a '|' marking the
// wrap point.
type RotStrFormatter struct {
	Width    int
	interval float64
	start    time.Time
	now      func() time.Time
}

func newRotStrFormatter(args []string) (Formatter, error) {
	width, err := parseWidth("rot-str", args, 0, defaultRotStrWidth)
	if err != nil {
		return nil, err
	}
	interval := defaultRotStrInterval
	if s, ok := arg(args, 1); ok {
		interval, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(interval) {
			return nil, &ConfigError{Formatter: "rot-str", Message: "Interval must be a positive number"}
		}
	}
	if interval < minRotStrInterval {
		return nil, &ConfigError{Formatter: "rot-str", Message: "Interval must be a positive number"}
	}
	return &RotStrFormatter{Width: width, interval: interval, start: time.Now(), now: time.Now}, nil
}

// Interval implements Ticker.
func (f *RotStrFormatter) Interval() time.Duration {
	return time.Duration(f.interval * float64(time.Second))
}

// Format implements Formatter.
func (f *RotStrFormatter) Format(v Value) (string, error) {
	if v.Kind != KindText {
		return "", &IncompatibleFormatterError{Formatter: "rot-str", Kind: v.Kind}
	}
	text := []rune(v.Text)
	if len(text) <= f.Width {
		return v.Text + strings.Repeat(" ", f.Width-len(text)), nil
	}
	ring := append(append([]rune{}, text...), '|')
	full := len(ring)
	elapsed := f.now().Sub(f.start).Seconds()
	step := int(math.Mod(elapsed/f.interval, float64(full)))
	if step < 0 {
		step = 0
	}
	w1 := min(f.Width, full-step)
	w2 := f.Width - w1
	var b strings.Builder
	b.WriteString(string(ring[step : step+w1]))
	b.WriteString(string(text[:w2]))
	return b.String(), nil
}

// barGlyphs are the nine fill levels of one bar cell, empty to full.
var barGlyphs = [9]rune{' ', '▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

// BarFormatter draws Value/MaxValue as a horizontal bar Width cells wide,
// each cell having eight sub-steps.
type BarFormatter struct {
	Width    int
	MaxValue float64
}

func newBarFormatter(args []string) (Formatter, error) {
	width, err := parseWidth("bar", args, 0, defaultBarWidth)
	if err != nil {
		return nil, err
	}
	maxValue := defaultBarMaxValue
	if s, ok := arg(args, 1); ok {
		maxValue, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(maxValue) {
			return nil, &ConfigError{Formatter: "bar", Message: "Max value must be a number"}
		}
	}
	if maxValue <= 0 {
		return nil, &ConfigError{Formatter: "bar", Message: "Max value must be a positive number"}
	}
	return BarFormatter{Width: width, MaxValue: maxValue}, nil
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Format implements Formatter.
func (f BarFormatter) Format(v Value) (string, error) {
	if v.Kind != KindNumber {
		return "", &IncompatibleFormatterError{Formatter: "bar", Kind: v.Kind}
	}
	fill := clamp01(v.Number/f.MaxValue) * float64(f.Width)
	out := make([]rune, f.Width)
	for i := range out {
		out[i] = barGlyphs[int(clamp01(fill-float64(i))*8)]
	}
	return string(out), nil
}

type unitConfig struct {
	unit     Unit
	set      bool
	hasSpace bool
	hidden   bool
}

type prefixConfig struct {
	prefix   Prefix
	set      bool
	forced   bool
	hasSpace bool
	hidden   bool
}

// EngConfig holds the arguments shared by the eng and fix formatters.
type EngConfig struct {
	Width  int
	unit   unitConfig
	prefix prefixConfig
}

func parseEngConfig(name string, args []string) (EngConfig, error) {
	width, err := parseWidth(name, args, 0, defaultEngWidth)
	if err != nil {
		return EngConfig{}, err
	}
	cfg := EngConfig{Width: width}

	if s, ok := arg(args, 1); ok && s != "auto" {
		s, cfg.unit.hasSpace = strings.CutPrefix(s, " ")
		s, cfg.unit.hidden = strings.CutPrefix(s, "_")
		if s != "" && s != "auto" {
			u, err := ParseUnit(s)
			if err != nil {
				return EngConfig{}, &ConfigError{Formatter: name, Message: err.Error()}
			}
			cfg.unit.unit, cfg.unit.set = u, true
		}
	}

	if s, ok := arg(args, 2); ok && s != "auto" {
		s, cfg.prefix.hasSpace = strings.CutPrefix(s, " ")
		s, cfg.prefix.hidden = strings.CutPrefix(s, "_")
		s, cfg.prefix.forced = strings.CutPrefix(s, "!")
		if s != "" && s != "auto" {
			p, err := ParsePrefix(s)
			if err != nil {
				return EngConfig{}, &ConfigError{Formatter: name, Message: err.Error()}
			}
			cfg.prefix.prefix, cfg.prefix.set = p, true
		}
	}
	return cfg, nil
}

// EngFormatter renders numbers in engineering notation: the SI prefix is
// chosen from the magnitude, then as many decimals as fit in Width are shown.
type EngFormatter EngConfig

// Format implements Formatter.
func (f EngFormatter) Format(v Value) (string, error) {
	if v.Kind != KindNumber {
		return "", &IncompatibleFormatterError{Formatter: "eng", Kind: v.Kind}
	}

	val, unit := v.Number, v.Unit
	if f.unit.set {
		converted, err := unit.Convert(val, f.unit.unit)
		if err != nil {
			return "", err
		}
		val, unit = converted, f.unit.unit
	}

	lo, hi := MinPrefix, MaxPrefix
	if f.prefix.set {
		lo = f.prefix.prefix
		if f.prefix.forced {
			hi = f.prefix.prefix
		}
	}
	prefix := unit.ClampPrefix(ForValue(val).Clamp(lo, hi))
	val = prefix.Apply(val)

	digits := intDigits(val)
	if val < 0 {
		digits++
	}

	var b strings.Builder
	b.WriteString(v.Icon)
	switch rest := f.Width - digits; {
	case rest <= 0:
		b.WriteString(strconv.FormatFloat(math.Floor(val), 'f', -1, 64))
	case rest == 1:
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(int64(math.Floor(val)), 10))
	default:
		b.WriteString(strconv.FormatFloat(val, 'f', rest-1, 64))
	}
	if !f.prefix.hidden {
		if f.prefix.hasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(prefix.String())
	}
	if !f.unit.hidden {
		if f.unit.hasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(unit.String())
	}
	return b.String(), nil
}

// intDigits counts the digits of the integer part of |val|.
func intDigits(val float64) int {
	return len(strconv.FormatFloat(math.Floor(math.Abs(val)), 'f', 0, 64))
}

// FixFormatter is reserved for fixed-point rendering. It accepts the eng
// arguments but rendering is not implemented and always fails with a
// format error.
type FixFormatter EngConfig

// Format implements Formatter.
func (f FixFormatter) Format(v Value) (string, error) {
	if v.Kind != KindNumber {
		return "", &IncompatibleFormatterError{Formatter: "fix", Kind: v.Kind}
	}
	return "", &FormatError{Message: "'fix' formatter is not implemented yet"}
}

// FlagFormatter renders a flag as the empty string. Combined with nested
// groups it lets a template test for the presence of a flag:
// "$charging.flag(){charging}".
type FlagFormatter struct{}

// Format implements Formatter.
func (FlagFormatter) Format(v Value) (string, error) {
	if v.Kind != KindFlag {
		return "", &IncompatibleFormatterError{Formatter: "flag", Kind: v.Kind}
	}
	return "", nil
}
