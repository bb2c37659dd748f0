// Package formatting implements the template language used by block
// "format" options.
//
// A template is plain text with embedded placeholders. A placeholder names
// a value supplied by the block and the formatter that turns it into text:
//
//	$name.formatter(arg1,arg2)
//
// Empty parentheses select the formatter defaults, and an empty formatter
// name ("$name.()") selects the default formatter for the value's kind.
//
// # Values
//
// Kind   | Default formatter
// -------|------------------
// Text   | str
// Number | eng(2)
// Flag   | flag
//
// # Formatters
//
//   - str(min_width=0, max_width=inf): pad or truncate text, counting runes.
//   - rot-str(width=15, interval=1.0): scroll text that is wider than width.
//   - bar(width=5, max_value=100): eighth-block horizontal bar.
//   - eng(width=3, unit=auto, prefix=auto): engineering notation. Prepend a
//     space to unit or prefix to separate it from the number, "_" to hide it,
//     and "!" to force the prefix instead of using it as a minimum.
//   - fix: reserved; always fails with a format error.
//   - flag: renders a flag as the empty string.
//
// # Alternatives and optional sections
//
// Alternatives are separated by '|' and tried left to right:
// "$percentage.eng(2)|N/A". A format error (wrong value kind, failed unit
// conversion) moves on to the next alternative; a placeholder missing from
// the values map is always an error.
//
// A section in braces is optional: "Vol: $volume.eng(2){ $muted.flag()muted}"
// renders "Vol: 40%" when the inner part cannot be rendered for any reason,
// including missing placeholders.
//
// A backslash escapes the next character anywhere in a template.
package formatting
