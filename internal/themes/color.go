package themes

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

type colorKind uint8

const (
	colorNone colorKind = iota
	colorAuto
	colorRGB
	colorHSV
)

// Color is a theme color: none, auto, an RGBA value, or an HSVA value.
// The zero Color is none.
type Color struct {
	kind colorKind
	// rgb holds channels in [0, 1] for RGB colors.
	rgb colorful.Color
	// h is in degrees, s and v in [0, 1], for HSV colors.
	h, s, v float64
	a       uint8
}

var (
	// None leaves the color to the bar.
	None = Color{}
	// Auto is resolved by the printer from neighbouring blocks.
	Auto = Color{kind: colorAuto}
)

// RGBA returns an RGB color from 8 bit channels.
func RGBA(r, g, b, a uint8) Color {
	return Color{kind: colorRGB, rgb: colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}, a: a}
}

// HSVA returns an HSV color. s and v are in [0, 1].
func HSVA(h, s, v float64, a uint8) Color {
	return Color{kind: colorHSV, h: math.Mod(h, 360), s: s, v: v, a: a}
}

// ParseColor parses "none", "auto", "#RRGGBB", "#RRGGBBAA" and
// "hsv:H:S:V[:A]" with S, V and A in percent.
func ParseColor(s string) (Color, error) {
	switch {
	case s == "" || s == "none":
		return None, nil
	case s == "auto":
		return Auto, nil
	case strings.HasPrefix(s, "hsv:"):
		return parseHSV(s)
	}

	if len(s) != 7 && len(s) != 9 {
		return None, fmt.Errorf("'%s' is not a valid RGBA color", s)
	}
	rgb, err := colorful.Hex(s[:7])
	if err != nil {
		return None, fmt.Errorf("'%s' is not a valid RGBA color", s)
	}
	alpha := uint64(0xFF)
	if len(s) == 9 {
		if alpha, err = strconv.ParseUint(s[7:], 16, 8); err != nil {
			return None, fmt.Errorf("'%s' is not a valid RGBA color", s)
		}
	}
	return Color{kind: colorRGB, rgb: rgb, a: uint8(alpha)}, nil
}

func parseHSV(s string) (Color, error) {
	parts := strings.Split(strings.TrimPrefix(s, "hsv:"), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return None, fmt.Errorf("'%s' is not a valid HSVA color", s)
	}
	vals := []float64{0, 0, 0, 100}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return None, fmt.Errorf("'%s' is not a valid HSVA color", s)
		}
		vals[i] = v
	}
	alpha := uint8(math.Max(0, math.Min(vals[3], 100)) / 100 * 255)
	return HSVA(vals[0], vals[1]/100, vals[2]/100, alpha), nil
}

// MustParseColor is like ParseColor but panics on error.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// IsNone reports whether c leaves the color to the bar.
func (c Color) IsNone() bool { return c.kind == colorNone }

// IsAuto reports whether c is the auto placeholder.
func (c Color) IsAuto() bool { return c.kind == colorAuto }

// Add tints c by o. RGB channels add and clamp; HSV hue wraps around while
// saturation and value clamp. Mixing the two adds in HSV space. A none or
// auto operand leaves the other unchanged.
func (c Color) Add(o Color) Color {
	switch {
	case o.kind == colorNone || o.kind == colorAuto:
		return c
	case c.kind == colorNone || c.kind == colorAuto:
		return o
	}

	alpha := uint8(min(int(c.a)+int(o.a), 255))
	if c.kind == colorRGB && o.kind == colorRGB {
		return Color{
			kind: colorRGB,
			rgb: colorful.Color{
				R: clamp01(c.rgb.R + o.rgb.R),
				G: clamp01(c.rgb.G + o.rgb.G),
				B: clamp01(c.rgb.B + o.rgb.B),
			},
			a: alpha,
		}
	}

	h1, s1, v1 := c.hsv()
	h2, s2, v2 := o.hsv()
	return Color{
		kind: colorHSV,
		h:    math.Mod(h1+h2, 360),
		s:    clamp01(s1 + s2),
		v:    clamp01(v1 + v2),
		a:    alpha,
	}
}

func (c Color) hsv() (h, s, v float64) {
	if c.kind == colorHSV {
		return c.h, c.s, c.v
	}
	return c.rgb.Hsv()
}

// Hex renders c as "#RRGGBBAA", or "" for none and auto.
func (c Color) Hex() string {
	var rgb colorful.Color
	switch c.kind {
	case colorRGB:
		rgb = c.rgb
	case colorHSV:
		rgb = colorful.Hsv(c.h, c.s, c.v)
	default:
		return ""
	}
	r, g, b := rgb.Clamped().RGB255()
	return fmt.Sprintf("#%02X%02X%02X%02X", r, g, b, c.a)
}

// String returns the textual form accepted by ParseColor.
func (c Color) String() string {
	switch c.kind {
	case colorNone:
		return "none"
	case colorAuto:
		return "auto"
	case colorHSV:
		return fmt.Sprintf("hsv:%g:%g:%g:%g", c.h, c.s*100, c.v*100, float64(c.a)/255*100)
	}
	return c.Hex()
}

// Equal reports whether c and o render identically.
func (c Color) Equal(o Color) bool {
	if c.kind != o.kind {
		return false
	}
	return c.Hex() == o.Hex()
}

// UnmarshalText lets TOML decode colors from strings.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
