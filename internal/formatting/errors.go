package formatting

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed template or an invalid formatter
// configuration. It is returned at template-construction time.
type ParseError struct {
	// Reason describes the problem, e.g. "Missing '.'".
	Reason string
	// Pos is the rune offset in the template source where the problem was detected.
	Pos int
	// Err is the underlying cause, if any (e.g. a bad formatter argument).
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at position %d: %v", e.Reason, e.Pos, e.Err)
	}
	return fmt.Sprintf("%s at position %d", e.Reason, e.Pos)
}

// Unwrap returns the underlying cause for errors.Is/errors.As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid formatter name or argument. The parser
// wraps it into a ParseError carrying the template position.
type ConfigError struct {
	Formatter string
	Message   string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Formatter == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Formatter, e.Message)
}

// UnknownPlaceholderError is returned by Render when a placeholder has no
// value in the supplied map. It is never treated as a soft error by
// top-level alternatives.
type UnknownPlaceholderError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("placeholder with name '%s' not found", e.Name)
}

// IncompatibleFormatterError is returned when a formatter is applied to a
// value of a kind it cannot render.
type IncompatibleFormatterError struct {
	Formatter string
	Kind      Kind
}

// Error implements the error interface.
func (e *IncompatibleFormatterError) Error() string {
	return fmt.Sprintf("%s cannot be formatted with '%s' formatter", e.Kind.article(), e.Formatter)
}

// ConversionError is returned when a number cannot be converted between
// two units.
type ConversionError struct {
	From Unit
	To   Unit
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert from %s to %s", e.From.Name(), e.To.Name())
}

// FormatError is a generic render-time failure of a formatter.
type FormatError struct {
	Message string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return e.Message
}

// IsFormatError reports whether err belongs to the recoverable format class:
// an incompatible formatter, a unit conversion failure or a generic
// formatter failure. Such errors make a top-level alternative fall through
// to the next one.
func IsFormatError(err error) bool {
	var (
		inc  *IncompatibleFormatterError
		conv *ConversionError
		ferr *FormatError
	)
	return errors.As(err, &inc) || errors.As(err, &conv) || errors.As(err, &ferr)
}

// IsUnknownPlaceholder reports whether err is an UnknownPlaceholderError.
func IsUnknownPlaceholder(err error) bool {
	var up *UnknownPlaceholderError
	return errors.As(err, &up)
}
