// Package validate holds the field-level validation error shared by the
// HTTP APIs. Services build one while checking a payload; handlers map it
// to a 400 with per-field messages.
package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Error carries one message per offending field.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// New builds a single-field error.
func New(field, msg string) *Error {
	return &Error{Fields: map[string]string{field: msg}}
}
