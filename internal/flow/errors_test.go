package flow

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"create", NewCreateError("boom", nil), IsCreateError},
		{"submit", NewSubmitError("abc", "boom", nil), IsSubmitError},
		{"validation", NewValidationError("boom"), IsValidationError},
		{"closed", errClosed(), IsClosedError},
		{"busy", errBusy(), IsBusyError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate rejected %v", tt.err)
			}
			// Wrapped errors are still recognized.
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("predicate rejected wrapped %v", wrapped)
			}
		})
	}
}

func TestErrorPredicates_RejectOtherErrors(t *testing.T) {
	plain := errors.New("plain")
	if IsCreateError(plain) || IsSubmitError(plain) || IsValidationError(plain) {
		t.Error("plain error matched a flow error predicate")
	}
	if IsSubmitError(NewCreateError("x", nil)) {
		t.Error("create error matched submit predicate")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewSubmitError("abc", "submit failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q", got)
	}
	if got := UserMessage(NewValidationError("fill it in")); got != "fill it in" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("raw")); got != "raw" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestErrorString(t *testing.T) {
	err := NewSubmitError("abc", "submit failed", errors.New("io timeout"))
	want := "Step Submission Error: submit failed (caused by: io timeout)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewValidationError("missing host")
	if bare.Error() != "Validation Error: missing host" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
