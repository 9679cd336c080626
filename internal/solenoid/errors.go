package solenoid

import (
	"errors"
	"fmt"
)

// Code classifies the outcome of a driver operation.
type Code uint8

const (
	CodeOK Code = iota
	CodeNotInitialized
	CodeInvalidChannel
	CodeInvalidBoard
	CodeHardware
	CodeSafetyTimeout
	CodeSafetyCooldown
	CodeDutyCycleExceeded
	CodeBusy

	CodeUnknown Code = 255
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotInitialized:
		return "Not initialized"
	case CodeInvalidChannel:
		return "Invalid channel"
	case CodeInvalidBoard:
		return "Invalid board"
	case CodeHardware:
		return "I2C communication error"
	case CodeSafetyTimeout:
		return "Safety timeout"
	case CodeSafetyCooldown:
		return "Safety cooldown"
	case CodeDutyCycleExceeded:
		return "Duty cycle exceeded"
	case CodeBusy:
		return "Busy"
	default:
		return "Unknown error"
	}
}

// Name is the stable upper-case identifier used in event payloads.
func (c Code) Name() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotInitialized:
		return "NOT_INITIALIZED"
	case CodeInvalidChannel:
		return "INVALID_CHANNEL"
	case CodeInvalidBoard:
		return "INVALID_BOARD"
	case CodeHardware:
		return "HARDWARE_COMMUNICATION"
	case CodeSafetyTimeout:
		return "SAFETY_TIMEOUT"
	case CodeSafetyCooldown:
		return "SAFETY_COOLDOWN"
	case CodeDutyCycleExceeded:
		return "DUTY_CYCLE_EXCEEDED"
	case CodeBusy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// Safety reports whether c is a recoverable safety denial rather than a fault.
func (c Code) Safety() bool {
	return c == CodeSafetyTimeout || c == CodeSafetyCooldown || c == CodeDutyCycleExceeded
}

// Error is the failure variant of every driver operation. Channel is Global
// when the failure is not tied to one channel.
type Error struct {
	Code    Code
	Channel Channel
	Err     error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Channel != Global {
		msg = fmt.Sprintf("%s on channel %d", msg, e.Channel)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "solenoid: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same Code, so callers can test
// errors.Is(err, solenoid.ErrSafetyCooldown) regardless of channel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotInitialized    = &Error{Code: CodeNotInitialized, Channel: Global}
	ErrInvalidChannel    = &Error{Code: CodeInvalidChannel, Channel: Global}
	ErrInvalidBoard      = &Error{Code: CodeInvalidBoard, Channel: Global}
	ErrHardware          = &Error{Code: CodeHardware, Channel: Global}
	ErrSafetyTimeout     = &Error{Code: CodeSafetyTimeout, Channel: Global}
	ErrSafetyCooldown    = &Error{Code: CodeSafetyCooldown, Channel: Global}
	ErrDutyCycleExceeded = &Error{Code: CodeDutyCycleExceeded, Channel: Global}
	ErrBusy              = &Error{Code: CodeBusy, Channel: Global}
)

// CodeOf extracts the Code carried by err. nil maps to CodeOK and errors
// not produced by this package map to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func newError(code Code, ch Channel, cause error) *Error {
	return &Error{Code: code, Channel: ch, Err: cause}
}
