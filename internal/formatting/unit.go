package formatting

import (
	"fmt"
	"strings"
)

// Unit is the physical quantity carried by a numeric Value.
type Unit int

const (
	// UnitNone is a dimensionless number.
	UnitNone Unit = iota
	UnitBytes
	UnitBits
	UnitBytesPerSecond
	UnitBitsPerSecond
	UnitPercents
	UnitDegrees
	UnitSeconds
	UnitWatts
	UnitHertz
)

var unitSymbols = [...]string{
	UnitNone:           "",
	UnitBytes:          "B",
	UnitBits:           "b",
	UnitBytesPerSecond: "B/s",
	UnitBitsPerSecond:  "b/s",
	UnitPercents:       "%",
	UnitDegrees:        "°",
	UnitSeconds:        "s",
	UnitWatts:          "W",
	UnitHertz:          "Hz",
}

var unitNames = [...]string{
	UnitNone:           "none",
	UnitBytes:          "bytes",
	UnitBits:           "bits",
	UnitBytesPerSecond: "bytes per second",
	UnitBitsPerSecond:  "bits per second",
	UnitPercents:       "percents",
	UnitDegrees:        "degrees",
	UnitSeconds:        "seconds",
	UnitWatts:          "watts",
	UnitHertz:          "hertz",
}

// String returns the symbol appended after a rendered number.
func (u Unit) String() string {
	if u < 0 || int(u) >= len(unitSymbols) {
		return ""
	}
	return unitSymbols[u]
}

// Name returns a human readable name used in error messages.
func (u Unit) Name() string {
	if u < 0 || int(u) >= len(unitNames) {
		return fmt.Sprintf("unit(%d)", int(u))
	}
	return unitNames[u]
}

// ParseUnit parses a unit symbol ("B", "b/s", "%") or name ("bytes").
// Symbols are case-sensitive since "B" and "b" differ.
func ParseUnit(s string) (Unit, error) {
	for u, sym := range unitSymbols {
		if sym != "" && s == sym {
			return Unit(u), nil
		}
	}
	switch strings.ToLower(s) {
	case "none", "number":
		return UnitNone, nil
	case "bytes":
		return UnitBytes, nil
	case "bits":
		return UnitBits, nil
	case "bps", "bytes/s":
		return UnitBytesPerSecond, nil
	case "bits/s":
		return UnitBitsPerSecond, nil
	case "percents", "percent":
		return UnitPercents, nil
	case "degrees", "deg":
		return UnitDegrees, nil
	case "seconds", "sec":
		return UnitSeconds, nil
	case "watts":
		return UnitWatts, nil
	case "hertz", "hz":
		return UnitHertz, nil
	}
	return UnitNone, fmt.Errorf("unknown unit: '%s'", s)
}

// Convert converts val expressed in u into the target unit. Units that
// measure different quantities cannot be converted.
func (u Unit) Convert(val float64, to Unit) (float64, error) {
	if u == to {
		return val, nil
	}
	switch {
	case u == UnitBytes && to == UnitBits,
		u == UnitBytesPerSecond && to == UnitBitsPerSecond:
		return val * 8, nil
	case u == UnitBits && to == UnitBytes,
		u == UnitBitsPerSecond && to == UnitBytesPerSecond:
		return val / 8, nil
	}
	return 0, &ConversionError{From: u, To: to}
}

// ClampPrefix restricts p to the prefixes that make sense for the unit:
// data sizes have no sub-unit prefixes, percents and degrees are never
// scaled and durations are never scaled up.
func (u Unit) ClampPrefix(p Prefix) Prefix {
	switch u {
	case UnitBytes, UnitBits, UnitBytesPerSecond, UnitBitsPerSecond, UnitNone:
		if p < PrefixOne {
			return PrefixOne
		}
		return p
	case UnitPercents, UnitDegrees:
		return PrefixOne
	case UnitSeconds:
		if p > PrefixOne {
			return PrefixOne
		}
		return p
	default:
		return p
	}
}
