package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeDefinition    = "DEFINITION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeContract      = "CONTRACT_VIOLATION"
	ErrCodeLoopExhausted = "LOOP_EXHAUSTED"
	ErrCodeStepFailed    = "STEP_FAILED"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeConflict      = "CONFLICT"
)

// Error is the structured error type for all loom operations.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Node    string         `json:"node,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.Node, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node name to the error.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WrapNode attaches a node name when err is a structured *Error without
// one; other errors pass through unchanged.
func WrapNode(err error, node string) error {
	if se, ok := err.(*Error); ok && se.Node == "" {
		return se.WithNode(node)
	}
	return err
}

// CodeOf returns the structured code of err, or ErrCodeExecution for
// errors that are not *Error.
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ErrCodeExecution
}
