package formatting

import "strconv"

// Kind is the variant tag of a Value.
type Kind int

const (
	KindNumber Kind = iota
	KindText
	KindFlag
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindFlag:
		return "flag"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

func (k Kind) article() string {
	switch k {
	case KindNumber:
		return "A number"
	case KindText:
		return "Text"
	case KindFlag:
		return "A flag"
	default:
		return k.String()
	}
}

// Value is a typed datum supplied to a template at render time. Exactly
// one of the variants is meaningful, selected by Kind:
//
//   - KindNumber: Number scaled in Unit, with Icon printed before the numeral
//   - KindText: Text
//   - KindFlag: presence only; renders as the empty string
type Value struct {
	Kind   Kind
	Number float64
	Unit   Unit
	Icon   string
	Text   string
}

// Values maps placeholder names to values.
type Values map[string]Value

// Number returns a dimensionless numeric value.
func Number(v float64) Value {
	return Value{Kind: KindNumber, Number: v}
}

// Int returns a dimensionless numeric value from an integer.
func Int(v int64) Value {
	return Number(float64(v))
}

// Text returns a text value.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Flag returns a flag value.
func Flag() Value {
	return Value{Kind: KindFlag}
}

// WithUnit returns a copy of v carrying unit u.
func (v Value) WithUnit(u Unit) Value {
	v.Unit = u
	return v
}

// WithIcon returns a copy of v carrying icon.
func (v Value) WithIcon(icon string) Value {
	v.Icon = icon
	return v
}

func (v Value) Bytes() Value          { return v.WithUnit(UnitBytes) }
func (v Value) Bits() Value           { return v.WithUnit(UnitBits) }
func (v Value) BytesPerSecond() Value { return v.WithUnit(UnitBytesPerSecond) }
func (v Value) BitsPerSecond() Value  { return v.WithUnit(UnitBitsPerSecond) }
func (v Value) Percents() Value       { return v.WithUnit(UnitPercents) }
func (v Value) Degrees() Value        { return v.WithUnit(UnitDegrees) }
func (v Value) Seconds() Value        { return v.WithUnit(UnitSeconds) }
func (v Value) Watts() Value          { return v.WithUnit(UnitWatts) }
func (v Value) Hertz() Value          { return v.WithUnit(UnitHertz) }
