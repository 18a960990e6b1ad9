package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrDecode              = errors.New("protocol: decode error")
	ErrInvalidEnvelope     = errors.New("protocol: invalid envelope")
	ErrInvalidPayload      = errors.New("protocol: invalid payload")
	ErrPayloadKindMismatch = errors.New("protocol: payload kind mismatch")
	ErrUnsupportedKind     = errors.New("protocol: unsupported kind")
	ErrLineTooLarge        = errors.New("protocol: line too large")
)

// DecodeError reports why a wire line could not be turned into an Envelope.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "protocol: decode envelope"
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(field, reason string, err error) error {
	return &DecodeError{Field: field, Reason: reason, Err: err}
}
