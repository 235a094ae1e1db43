package dht

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failed read attempt.
type ErrorKind int

const (
	// KindPinAccess means the GPIO line could not be driven or read.
	KindPinAccess ErrorKind = iota
	// KindTimeout means the sensor did not answer, or stopped mid-frame.
	KindTimeout
	// KindMalformed means pulses arrived with implausible levels or widths.
	KindMalformed
	// KindChecksum means the frame checksum did not match its data.
	KindChecksum
	// KindOutOfRange means the decoded value is physically implausible.
	KindOutOfRange
)

// Kinds lists every ErrorKind in declaration order.
var Kinds = []ErrorKind{KindPinAccess, KindTimeout, KindMalformed, KindChecksum, KindOutOfRange}

// Label returns the metric label value for the kind.
func (k ErrorKind) Label() string {
	switch k {
	case KindPinAccess:
		return "pin_access"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	case KindChecksum:
		return "checksum"
	case KindOutOfRange:
		return "out_of_range"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k ErrorKind) String() string {
	return k.Label()
}

// Error is a classified read failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dht %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("dht %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Errors not produced by this package count as
// KindPinAccess.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPinAccess
}
