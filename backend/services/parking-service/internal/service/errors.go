package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPlate means recognition produced no usable plate text. The driver rescans.
	ErrInvalidPlate = errors.New("parking: license plate not recognized")
	// ErrSessionNotFound means there is no open session for the plate. Nothing is changed.
	ErrSessionNotFound = errors.New("parking: no open session for plate")
	// ErrStoreUnavailable wraps any failure of the record store.
	ErrStoreUnavailable = errors.New("parking: record store unavailable")
	// ErrPaymentNotImplemented is returned by the payment stub.
	ErrPaymentNotImplemented = errors.New("parking: payment processing not implemented")
)

// ClockSkewError rejects an exit stamped before the matching entry.
type ClockSkewError struct {
	Plate     string
	EntryTime time.Time
	ExitTime  time.Time
}

func (e *ClockSkewError) Error() string {
	return fmt.Sprintf("parking: exit time %s precedes entry time %s for plate %q",
		e.ExitTime.Format(time.RFC3339Nano), e.EntryTime.Format(time.RFC3339Nano), e.Plate)
}

// GateError carries the message shown to the driver alongside the cause.
type GateError struct {
	Plate   string
	Message string
	Err     error
}

func (e *GateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GateError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// UserMessage turns an operation error into the text displayed at the gate.
func UserMessage(err error, plate string) string {
	var skew *ClockSkewError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPlate):
		return "License plate not recognized. Please try again."
	case errors.Is(err, ErrSessionNotFound):
		return fmt.Sprintf("No entry found for license plate: %s", plate)
	case errors.As(err, &skew):
		return fmt.Sprintf("Exit time precedes entry time for license plate: %s. Please contact the attendant.", plate)
	case errors.Is(err, ErrPaymentNotImplemented):
		return "Payment processing is not implemented yet."
	case errors.Is(err, ErrStoreUnavailable):
		return "Parking records are unavailable. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}
