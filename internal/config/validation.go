package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is matched by errors.Is when a required key is absent.
var ErrMissingField = errors.New("required field missing")

// FieldError describes one invalid configuration key.
type FieldError struct {
	Field   string
	Message string
	missing bool
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

func (e FieldError) Is(target error) bool {
	return e.missing && target == ErrMissingField
}

// Error collects every problem found in one configuration file.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):", len(e.Fields))
	for i, f := range e.Fields {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, f.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

type validator struct {
	errors []FieldError
}

func newValidator() *validator {
	return &validator{}
}

func (v *validator) add(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *validator) missing(field string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: ErrMissingField.Error(), missing: true})
}

func (v *validator) str(field string, value *string) string {
	if value == nil {
		v.missing(field)
		return ""
	}
	return *value
}

func (v *validator) nonEmpty(field string, value *string) string {
	s := v.str(field, value)
	if value != nil && strings.TrimSpace(s) == "" {
		v.add(field, "must not be empty")
	}
	return s
}

func (v *validator) port(field string, value *int, lowest int) uint16 {
	if value == nil {
		v.missing(field)
		return 0
	}
	if *value < lowest || *value > 65535 {
		v.add(field, fmt.Sprintf("port must be between %d and 65535", lowest))
		return 0
	}
	return uint16(*value)
}

func (v *validator) enum(field, value string, allowed ...string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.add(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed[1:], ", "), value))
}

func (v *validator) err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &Error{Fields: v.errors}
}
