package sensor

import (
	"errors"
	"fmt"
)

// Code identifies a class of sensor failure. It is comparable and
// implements error, so errors.Is(err, sensor.PollTimeout) works on any
// error produced by this module.
type Code string

func (c Code) Error() string { return string(c) }

const (
	BusIO                Code = "bus_io"
	IdentityMismatch     Code = "identity_mismatch"
	PollTimeout          Code = "poll_timeout"
	SingularCalibration  Code = "singular_calibration"
	ConfigurationInvalid Code = "configuration_invalid"
)

// ErrDivideByZero is wrapped in a ConfigurationInvalid error whenever a
// derived quantity would divide by a zero voltage.
var ErrDivideByZero = errors.New("divide by zero")

// Error carries a Code together with the failing operation and an
// optional cause.
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Code)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// Of extracts the Code from an error chain. It returns the empty Code for
// nil and for errors that carry no code.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return ""
}

// BusError wraps a transport failure.
func BusError(op string, err error) error {
	return &Error{Code: BusIO, Op: op, Err: err}
}

// Mismatch reports an identity register holding an unexpected value.
func Mismatch(op string, got, want uint8) error {
	return &Error{Code: IdentityMismatch, Op: op, Msg: fmt.Sprintf("id 0x%02x, expected 0x%02x", got, want)}
}

// Invalid reports an out-of-range configuration parameter.
func Invalid(op, format string, args ...interface{}) error {
	return &Error{Code: ConfigurationInvalid, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// DivideByZero reports a derived quantity with a zero denominator.
func DivideByZero(op string) error {
	return &Error{Code: ConfigurationInvalid, Op: op, Err: ErrDivideByZero}
}

// Singular reports a calibration that cannot produce a value.
func Singular(op, format string, args ...interface{}) error {
	return &Error{Code: SingularCalibration, Op: op, Msg: fmt.Sprintf(format, args...)}
}
