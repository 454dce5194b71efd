// Package errors supplies the core's typed error kinds. Every recovery
// decision in the agent reads a Kind off an error rather than matching
// strings, while still composing with the standard errors.Is/As chain.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind names one of the error kinds the core distinguishes.
type Kind string

const (
	AdapterUnavailable  Kind = "AdapterUnavailable"
	LLMReturnedInvalidSQL Kind = "LLMReturnedInvalidSQL"
	ValidationFailed    Kind = "ValidationFailed"
	ExecutionError      Kind = "ExecutionError"
	DangerousOperation  Kind = "DangerousOperation"
	QueryTimeout        Kind = "QueryTimeout"
	Exhausted           Kind = "Exhausted"
	ConfigInvalid       Kind = "ConfigInvalid"
)

// CoreError is the module's uniform error type: a service/operation label
// plus a typed Kind so callers can branch on recovery without string
// matching.
type CoreError struct {
	Service   string
	Operation string
	Kind      Kind
	Err       error
}

func (e *CoreError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("[%s.%s] %s: %v", e.Service, e.Operation, e.Kind, e.Err)
	}
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// Wrap creates a CoreError with no particular kind. If err is nil, Wrap
// returns nil.
func Wrap(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &CoreError{Service: service, Operation: operation, Err: err}
}

// WrapKind creates a CoreError carrying a specific recovery Kind.
func WrapKind(service, operation string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &CoreError{Service: service, Operation: operation, Kind: kind, Err: err}
}

// As reports the Kind of err if it is (or wraps) a *CoreError.
func As(err error) (Kind, bool) {
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
