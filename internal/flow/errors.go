package flow

import (
	"errors"
	"fmt"
)

// Error types for flow operations

// ErrorKind represents the category of error that occurred
type ErrorKind int

const (
	// ErrKindCreate indicates flow creation or continuation failed. Fatal
	// to the dialog: the caller closes it and surfaces the message.
	ErrKindCreate ErrorKind = iota
	// ErrKindSubmit indicates step submission failed. Recoverable: the
	// current step is retained so the user can correct input and resubmit.
	ErrKindSubmit
	// ErrKindDelete indicates flow deletion on close failed.
	ErrKindDelete
	// ErrKindValidation indicates client-side input validation blocked a
	// submit before it reached the server.
	ErrKindValidation
	// ErrKindProtocol indicates a malformed or unexpected server payload.
	ErrKindProtocol
	// ErrKindClosed indicates an operation on a closed dialog instance.
	ErrKindClosed
	// ErrKindBusy indicates a submit while a previous submit is in flight.
	ErrKindBusy
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindCreate:
		return "Flow Creation Error"
	case ErrKindSubmit:
		return "Step Submission Error"
	case ErrKindDelete:
		return "Flow Deletion Error"
	case ErrKindValidation:
		return "Validation Error"
	case ErrKindProtocol:
		return "Protocol Error"
	case ErrKindClosed:
		return "Dialog Closed"
	case ErrKindBusy:
		return "Operation In Progress"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error represents a failure of a flow operation. Failures are never
// retried automatically; each is terminal for the operation it came from
// and requires explicit user re-action.
type Error struct {
	Kind    ErrorKind // Category of error
	Message string    // Human-readable error message
	FlowID  string    // Flow identifier (for context, may be empty)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewCreateError wraps a flow creation/continuation failure
func NewCreateError(message string, err error) *Error {
	return &Error{Kind: ErrKindCreate, Message: message, Err: err}
}

// NewSubmitError wraps a step submission failure for a specific flow
func NewSubmitError(flowID string, message string, err error) *Error {
	return &Error{Kind: ErrKindSubmit, Message: message, FlowID: flowID, Err: err}
}

// NewDeleteError wraps a flow deletion failure
func NewDeleteError(flowID string, err error) *Error {
	return &Error{Kind: ErrKindDelete, Message: "failed to delete flow", FlowID: flowID, Err: err}
}

// NewValidationError creates a client-side validation error
func NewValidationError(message string) *Error {
	return &Error{Kind: ErrKindValidation, Message: message}
}

// NewProtocolError wraps an unexpected server payload
func NewProtocolError(message string, err error) *Error {
	return &Error{Kind: ErrKindProtocol, Message: message, Err: err}
}

// errClosed is returned for operations on a closed dialog instance
func errClosed() *Error {
	return &Error{Kind: ErrKindClosed, Message: "dialog is closed"}
}

// errBusy is returned when a submit overlaps a pending one
func errBusy() *Error {
	return &Error{Kind: ErrKindBusy, Message: "a step submission is already in flight"}
}

// IsCreateError checks if an error is a flow creation failure
func IsCreateError(err error) bool {
	return kindOf(err) == ErrKindCreate
}

// IsSubmitError checks if an error is a recoverable submission failure
func IsSubmitError(err error) bool {
	return kindOf(err) == ErrKindSubmit
}

// IsValidationError checks if an error is a client-side validation failure
func IsValidationError(err error) bool {
	return kindOf(err) == ErrKindValidation
}

// IsClosedError checks if an error reports a closed dialog
func IsClosedError(err error) bool {
	return kindOf(err) == ErrKindClosed
}

// IsBusyError checks if an error reports an overlapping submission
func IsBusyError(err error) bool {
	return kindOf(err) == ErrKindBusy
}

func kindOf(err error) ErrorKind {
	var flowErr *Error
	if errors.As(err, &flowErr) {
		return flowErr.Kind
	}
	return ErrorKind(-1)
}

// UserMessage returns the text to surface for an error: the flow error's
// message when there is one, the raw error string otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var flowErr *Error
	if errors.As(err, &flowErr) && flowErr.Message != "" {
		return flowErr.Message
	}
	return err.Error()
}
