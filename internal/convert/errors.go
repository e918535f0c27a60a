package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Concrete errors below match them with errors.Is.
var (
	ErrTypeMismatch            = errors.New("type mismatch")
	ErrInvalidValue            = errors.New("invalid value")
	ErrTransport               = errors.New("transport failure")
	ErrUnsupportedKey          = errors.New("unsupported key")
	ErrNotSettable             = errors.New("key is not settable")
	ErrMissingManufacturerCode = errors.New("manufacturer-specific write without manufacturer code")
)

// TypeMismatchError reports a value whose runtime shape does not match the
// type the converter declares.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %T (%v)", e.Key, e.Want, e.Got, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// InvalidValueError reports a value of the right type outside the accepted
// set or range.
type InvalidValueError struct {
	Key     string
	Value   any
	Allowed []string // enumerations
	Min     float64  // numeric ranges, when Allowed is empty
	Max     float64
	Step    float64
}

func (e *InvalidValueError) Error() string {
	if len(e.Allowed) > 0 {
		return fmt.Sprintf("%s: value '%v' is not allowed, expected one of: %s", e.Key, e.Value, strings.Join(e.Allowed, ", "))
	}
	if e.Step > 0 {
		return fmt.Sprintf("%s: value %v is not in [%g, %g] with step %g", e.Key, e.Value, e.Min, e.Max, e.Step)
	}
	return fmt.Sprintf("%s: value %v is out of range [%g, %g]", e.Key, e.Value, e.Min, e.Max)
}

func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }

// TransportError wraps the first failed cluster operation of a request. The
// transport's own error is preserved and reachable with errors.As/Unwrap.
type TransportError struct {
	Key       string
	Operation Operation
	Index     int // position of the failed operation in the sequence
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: operation %d (%s): %v", e.Key, e.Index+1, e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
