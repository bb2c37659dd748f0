package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/signals"
)

// ValidationError represents a configuration validation error.
// It contains the field name and a description of the issue.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the results of a configuration validation.
type ValidationResult struct {
	// Errors contains all validation errors found.
	Errors []ValidationError
	// Warnings contains non-fatal issues.
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// Error returns a combined error message if there are errors, nil otherwise.
func (vr *ValidationResult) Error() error {
	if len(vr.Errors) == 0 {
		return nil
	}

	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, e.Error())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

// AddError adds a validation error.
func (vr *ValidationResult) AddError(field, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (vr *ValidationResult) AddWarning(field, message string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Message: message})
}

// Merge combines another ValidationResult into this one.
func (vr *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	vr.Errors = append(vr.Errors, other.Errors...)
	vr.Warnings = append(vr.Warnings, other.Warnings...)
}

// Validator checks a loaded Config.
type Validator struct {
	// known reports whether a block type is registered.
	known func(string) bool
}

// NewValidator creates a Validator that accepts the block types for which
// known returns true. A nil known accepts every type.
func NewValidator(known func(string) bool) *Validator {
	if known == nil {
		known = func(string) bool { return true }
	}
	return &Validator{known: known}
}

// Validate performs comprehensive validation of a Config.
func (v *Validator) Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	if cfg.ErrorInterval <= 0 {
		result.AddError("error_interval", fmt.Sprintf("must be positive, got %v", cfg.ErrorInterval))
	}
	if !strings.Contains(cfg.IconsFormat, "{icon}") {
		result.AddWarning("icons_format", "does not contain {icon}; icons will not be shown")
	}
	if len(cfg.Blocks) == 0 {
		result.AddWarning("block", "no blocks configured")
	}

	for _, b := range cfg.Blocks {
		v.validateBlock(cfg, b, result)
	}
	return result
}

// blockChecks are the block-specific keys Validate looks at.
type blockChecks struct {
	Interval    any     `toml:"interval"`
	Signal      *int    `toml:"signal"`
	Format      *string `toml:"format"`
	FormatAlt   *string `toml:"format_alt"`
	ShortFormat *string `toml:"short_format"`
}

func (v *Validator) validateBlock(cfg *Config, b *Block, result *ValidationResult) {
	field := func(key string) string {
		return fmt.Sprintf("block[%d].%s", b.Index, key)
	}

	switch {
	case b.Type == "":
		result.AddError(field("block"), "missing block type")
		return
	case !v.known(b.Type):
		result.AddError(field("block"), fmt.Sprintf("unknown block type '%s'", b.Type))
		return
	}

	if b.ErrorInterval <= 0 {
		result.AddError(field("error_interval"), fmt.Sprintf("must be positive, got %v", b.ErrorInterval))
	}
	if b.IfCommand != nil && strings.TrimSpace(*b.IfCommand) == "" {
		result.AddError(field("if_command"), "must not be empty")
	}
	if _, err := b.ResolveTheme(cfg.Theme); err != nil {
		result.AddError(field("theme_overrides"), err.Error())
	}
	for i, c := range b.Click {
		if protocol.MouseButton(c.Button) == protocol.ButtonUnknown {
			result.AddWarning(field(fmt.Sprintf("click[%d].button", i)), "unknown button, entry never matches")
		}
		if c.Cmd == "" && !c.Update {
			result.AddWarning(field(fmt.Sprintf("click[%d]", i)), "no cmd and update = false, entry swallows the click")
		}
	}

	var checks blockChecks
	if err := b.Decode(&checks); err != nil {
		result.AddError(field("block"), err.Error())
		return
	}
	v.validateInterval(field("interval"), checks.Interval, result)
	if checks.Signal != nil {
		if err := signals.Validate(*checks.Signal); err != nil {
			result.AddError(field("signal"), err.Error())
		}
	}
	formats := []struct {
		key string
		src *string
	}{
		{"format", checks.Format},
		{"format_alt", checks.FormatAlt},
		{"short_format", checks.ShortFormat},
	}
	for _, f := range formats {
		if f.src == nil {
			continue
		}
		if _, err := formatting.Parse(*f.src); err != nil {
			result.AddError(field(f.key), err.Error())
		}
	}
}

// validateInterval accepts a number of seconds or the string "once".
func (v *Validator) validateInterval(field string, interval any, result *ValidationResult) {
	var secs float64
	switch iv := interval.(type) {
	case nil:
		return
	case int64:
		secs = float64(iv)
	case float64:
		secs = iv
	case string:
		if iv != "once" {
			result.AddError(field, fmt.Sprintf("must be a number of seconds or \"once\", got %q", iv))
		}
		return
	default:
		result.AddError(field, fmt.Sprintf("must be a number of seconds, got %T", interval))
		return
	}

	d := seconds(secs)
	switch {
	case d <= 0:
		result.AddError(field, fmt.Sprintf("must be positive, got %v", d))
	case d < 100*time.Millisecond:
		result.AddWarning(field, fmt.Sprintf("very fast interval %v may cause high CPU usage", d))
	}
}
