package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTelemetry is returned for lines that are not telemetry records
	// (echoes, debug prints, empty reads). Callers skip such lines silently.
	ErrNotTelemetry = errors.New("not a telemetry line")
	// ErrMalformedNumber is returned when a numeric telemetry field cannot be parsed.
	ErrMalformedNumber = errors.New("malformed number")
	// ErrRange is wrapped by RangeError.
	ErrRange = errors.New("value out of range")
	// ErrParse is wrapped by ParseError.
	ErrParse = errors.New("not an integer")
)

// RangeError reports a setpoint outside the range accepted by the board.
type RangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d;%d]", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrRange }

// ParseError reports operator text that is not an integer.
type ParseError struct {
	Field string
	Text  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s must be an integer, got %q", e.Field, e.Text)
}

func (e *ParseError) Unwrap() error { return ErrParse }
