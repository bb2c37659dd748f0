package formatting

import (
	"fmt"
	"math"
	"strings"
)

// Prefix is an SI order of magnitude. Prefixes are totally ordered by
// their power of 1000.
type Prefix int

const (
	PrefixNano Prefix = iota - 3
	PrefixMicro
	PrefixMilli
	PrefixOne
	PrefixKilo
	PrefixMega
	PrefixGiga
	PrefixTera
	PrefixPeta
)

// MinPrefix and MaxPrefix bound the range of supported prefixes.
const (
	MinPrefix = PrefixNano
	MaxPrefix = PrefixPeta
)

var prefixInfo = map[Prefix]struct {
	symbol string
	name   string
}{
	PrefixNano:  {"n", "nano"},
	PrefixMicro: {"u", "micro"},
	PrefixMilli: {"m", "milli"},
	PrefixOne:   {"", "one"},
	PrefixKilo:  {"K", "kilo"},
	PrefixMega:  {"M", "mega"},
	PrefixGiga:  {"G", "giga"},
	PrefixTera:  {"T", "tera"},
	PrefixPeta:  {"P", "peta"},
}

// String returns the symbol printed between a number and its unit.
func (p Prefix) String() string {
	return prefixInfo[p].symbol
}

// FromExpLevel returns the prefix for 1000^level, clamped to the supported range.
func FromExpLevel(level int) Prefix {
	return Prefix(level).Clamp(MinPrefix, MaxPrefix)
}

// ForValue selects the engineering bracket containing val. Zero, negative
// and NaN magnitudes have no logarithm and map to PrefixOne.
func ForValue(val float64) Prefix {
	if math.IsInf(val, 1) {
		return MaxPrefix
	}
	if !(val > 0) {
		return PrefixOne
	}
	level := int(math.Floor(math.Log10(val) / 3))
	// Log10 is inexact near powers of ten (Log10(1000) < 3).
	if val >= math.Pow(1000, float64(level+1)) {
		level++
	} else if val < math.Pow(1000, float64(level)) {
		level--
	}
	return FromExpLevel(level)
}

// Clamp bounds p to [lo, hi].
func (p Prefix) Clamp(lo, hi Prefix) Prefix {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}

// Apply scales val into this prefix.
func (p Prefix) Apply(val float64) float64 {
	if p < PrefixOne {
		return val * math.Pow(1000, float64(-p))
	}
	return val / math.Pow(1000, float64(p))
}

// ParsePrefix accepts a symbol ("K", "M", "m", "1" for no prefix) or a
// case-insensitive name ("Mega").
func ParsePrefix(s string) (Prefix, error) {
	if s == "1" {
		return PrefixOne, nil
	}
	if s == "µ" {
		return PrefixMicro, nil
	}
	for p, info := range prefixInfo {
		if info.symbol != "" && s == info.symbol {
			return p, nil
		}
	}
	if s == "k" {
		return PrefixKilo, nil
	}
	lower := strings.ToLower(s)
	for p, info := range prefixInfo {
		if lower == info.name {
			return p, nil
		}
	}
	return PrefixOne, fmt.Errorf("unknown prefix: '%s'", s)
}
