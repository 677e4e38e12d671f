package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid input",
			},
			expected: "invalid input",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "checkout.create",
				Message: "invalid input",
			},
			expected: "checkout.create: invalid input",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EUNAVAILABLE,
				Op:      "store.reserve_event",
				Message: "Store unavailable",
				Err:     errors.New("database connection failed"),
			},
			expected: "store.reserve_event: Store unavailable: database connection failed",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &Error{
		Code:    EINTERNAL,
		Message: "wrapped",
		Err:     underlying,
	}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"domain error", &Error{Code: ENOTFOUND}, ENOTFOUND},
		{"wrapped domain error", fmt.Errorf("reserve: %w", ErrStoreUnavailable), EUNAVAILABLE},
		{"signature error", ErrSignatureInvalid, EUNAUTHORIZED},
		{"plain error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	const generic = "An internal error occurred. Please try again later."

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"invalid", &Error{Code: EINVALID, Message: "price_id is required"}, "price_id is required"},
		{"internal hides message", &Error{Code: EINTERNAL, Message: "pq: relation missing"}, generic},
		{"plain error hidden", errors.New("dial tcp 10.0.0.1:5432"), generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	if got := ErrorOp(&Error{Code: EINVALID, Op: "checkout.create"}); got != "checkout.create" {
		t.Errorf("ErrorOp() = %q, want %q", got, "checkout.create")
	}
	if got := ErrorOp(errors.New("plain")); got != "" {
		t.Errorf("ErrorOp() = %q, want empty", got)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(EINVALID, "checkout.validate", "amount must be non-negative: %d", -100)

	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatal("Errorf should return *Error")
	}
	if domainErr.Code != EINVALID {
		t.Errorf("Code = %q, want %q", domainErr.Code, EINVALID)
	}
	if domainErr.Op != "checkout.validate" {
		t.Errorf("Op = %q, want %q", domainErr.Op, "checkout.validate")
	}
	if domainErr.Message != "amount must be non-negative: -100" {
		t.Errorf("Message = %q", domainErr.Message)
	}
}

func TestWrapError(t *testing.T) {
	t.Run("wraps underlying", func(t *testing.T) {
		underlying := errors.New("connection reset")
		err := WrapError(underlying, EUNAVAILABLE, "store.insert_transaction", "Store unavailable")

		if !errors.Is(err, underlying) {
			t.Error("errors.Is should find underlying error")
		}
		if !IsCode(err, EUNAVAILABLE) {
			t.Errorf("IsCode(EUNAVAILABLE) = false, code %q", ErrorCode(err))
		}
	})

	t.Run("nil stays nil", func(t *testing.T) {
		if err := WrapError(nil, EINTERNAL, "op", "msg"); err != nil {
			t.Errorf("WrapError(nil) = %v, want nil", err)
		}
	})
}

func TestInternal(t *testing.T) {
	underlying := errors.New("disk full")
	err := Internal(underlying, "store.commit", "failed to commit")

	if !IsCode(err, EINTERNAL) {
		t.Errorf("code = %q, want %q", ErrorCode(err), EINTERNAL)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

func TestMalformedEventError(t *testing.T) {
	err := error(&MalformedEventError{EventType: "checkout.session.completed", Field: "amount_total", Detail: "required"})

	if got, want := err.Error(), "malformed checkout.session.completed event: amount_total: required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrMalformedEvent) {
		t.Error("errors.Is(err, ErrMalformedEvent) = false")
	}
	if !IsCode(err, EINVALID) {
		t.Errorf("code = %q, want %q", ErrorCode(err), EINVALID)
	}

	noField := &MalformedEventError{EventType: "unknown", Detail: "payload is not a JSON event"}
	if got, want := noField.Error(), "malformed unknown event: payload is not a JSON event"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestReconciliationError(t *testing.T) {
	err := fmt.Errorf("apply: %w", &ReconciliationError{Stage: StageSubscription, Err: ErrSubscriptionNotFound})

	var recErr *ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatal("errors.As should find *ReconciliationError")
	}
	if recErr.Stage != StageSubscription {
		t.Errorf("Stage = %q, want %q", recErr.Stage, StageSubscription)
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Error("errors.Is should find ErrSubscriptionNotFound")
	}
	if !IsCode(err, EUNAVAILABLE) {
		t.Errorf("code = %q, want %q", ErrorCode(err), EUNAVAILABLE)
	}
}
