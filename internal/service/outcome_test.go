package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/quill/internal/domain"
)

func TestReportError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   domain.OutcomeKind
		wantReason string
		wantMsg    string
	}{
		{"missing signature", domain.ErrSignatureMissing, domain.OutcomeRejected, ReasonSignatureMissing, "missing signature"},
		{"invalid signature", fmt.Errorf("%w: no match", domain.ErrSignatureInvalid), domain.OutcomeRejected, ReasonSignatureInvalid, "invalid signature"},
		{"expired signature", domain.ErrSignatureExpired, domain.OutcomeRejected, ReasonSignatureExpired, "signature timestamp outside tolerance"},
		{
			"malformed with field",
			&domain.MalformedEventError{EventType: "checkout.session.completed", Field: "amount_total", Detail: "required"},
			domain.OutcomeRejected, ReasonMalformedEvent, "malformed event: field amount_total",
		},
		{"malformed without field", domain.ErrMalformedEvent, domain.OutcomeRejected, ReasonMalformedEvent, "malformed event"},
		{
			"subscription not found inside reconciliation",
			&domain.ReconciliationError{Stage: domain.StageSubscription, Err: domain.ErrSubscriptionNotFound},
			domain.OutcomeRetryRequested, ReasonSubscriptionNotFound, "subscription not yet known",
		},
		{
			"subscription owned by another subscriber",
			&domain.ReconciliationError{Stage: domain.StageSubscription, Err: domain.WrapError(domain.ErrSubscriptionConflict, domain.ECONFLICT, "UpsertSubscription", "conflict")},
			domain.OutcomeRejected, ReasonSubscriptionConflict, "subscription belongs to another subscriber",
		},
		{
			"provider has no such subscription",
			fmt.Errorf("%w: resource_missing", domain.ErrProviderSubscriptionMissing),
			domain.OutcomeRejected, ReasonSubscriptionMissing, "payment provider has no such subscription",
		},
		{
			"store timeout inside reconciliation",
			&domain.ReconciliationError{Stage: domain.StageTransaction, Err: fmt.Errorf("insert: %w", domain.ErrStoreUnavailable)},
			domain.OutcomeRetryRequested, ReasonStoreUnavailable, "store unavailable during transaction",
		},
		{
			"reconciliation failure",
			&domain.ReconciliationError{Stage: domain.StageCommission, Err: errors.New("constraint")},
			domain.OutcomeRetryRequested, ReasonReconciliationFailed, "reconciliation failed at commission",
		},
		{"provider unavailable", fmt.Errorf("%w: 502", domain.ErrProviderUnavailable), domain.OutcomeRetryRequested, ReasonProviderUnavailable, "payment provider unavailable"},
		{"store unavailable", domain.ErrStoreUnavailable, domain.OutcomeRetryRequested, ReasonStoreUnavailable, "store unavailable"},
		{"anything else", errors.New("boom"), domain.OutcomeRetryRequested, ReasonInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReportError(tt.err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestOutcomeConstructors(t *testing.T) {
	assert.True(t, Applied().Acknowledged())
	assert.True(t, DuplicateIgnored().Acknowledged())

	ignored := IgnoredOutcome("unhandled event type invoice.paid")
	assert.Equal(t, domain.OutcomeApplied, ignored.Kind)
	assert.Equal(t, ReasonIgnored, ignored.Reason)

	assert.False(t, ReportError(domain.ErrSignatureInvalid).Acknowledged())
}

func TestReservation_String(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "already_processed", AlreadyProcessed.String())
	assert.Equal(t, "unknown", Reservation(0).String())
}
