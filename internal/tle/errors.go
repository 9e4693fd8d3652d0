package tle

import (
	"errors"
	"fmt"
)

// ErrMalformedElementSet is matched by every error the parser returns.
var ErrMalformedElementSet = errors.New("malformed element set")

// ParseError describes why a TLE record was rejected.
type ParseError struct {
	Line   int // 1 or 2 for the element lines, 0 when the record as a whole is at fault
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "malformed element set"
	if e.Line > 0 {
		msg += fmt.Sprintf(": line %d", e.Line)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": %s %q", e.Field, e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformedElementSet }
