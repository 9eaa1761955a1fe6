// Package fault defines the error taxonomy shared by every settlement component.
// Callers branch on kinds with errors.Is; the Code carries a stable reason for clients.
package fault

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrUnavailable         = errors.New("unavailable")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrGateway             = errors.New("gateway error")
	ErrNoAvailableEarnings = errors.New("no available earnings")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
)

// Error attaches a reason code and message to one of the taxonomy kinds.
type Error struct {
	Kind    error
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Kind)
}

// Description is the client-facing message.
func (e *Error) Description() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func Validation(code, message string) error {
	return &Error{Kind: ErrValidation, Code: code, Message: message}
}

func Unavailable(code, message string) error {
	return &Error{Kind: ErrUnavailable, Code: code, Message: message}
}

func NotFound(code, message string) error {
	return &Error{Kind: ErrNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) error {
	return &Error{Kind: ErrForbidden, Code: code, Message: message}
}

// Gateway marks err as a retryable remote failure.
func Gateway(op string, err error) error {
	return &Error{Kind: ErrGateway, Code: "gateway_" + op, Message: "payment gateway call failed", Cause: err}
}

// Wrap classifies an existing sentinel under kind, keeping it reachable via errors.Is.
func Wrap(kind error, code string, cause error) error {
	return &Error{Kind: kind, Code: code, Cause: cause}
}

// Code extracts the reason code, or "" when err carries none.
func Code(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

var kinds = []error{
	ErrValidation,
	ErrInvalidTransition,
	ErrUnavailable,
	ErrInvalidSignature,
	ErrGateway,
	ErrNoAvailableEarnings,
	ErrInsufficientFunds,
	ErrNotFound,
	ErrForbidden,
}

// KindOf returns the taxonomy kind err belongs to, or nil.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Restore rebuilds an error recorded earlier as kind name, code and message.
// Unknown kind names degrade to a plain error.
func Restore(kind, code, message string) error {
	for _, k := range kinds {
		if k.Error() == kind {
			return &Error{Kind: k, Code: code, Message: message}
		}
	}
	return errors.New(message)
}
