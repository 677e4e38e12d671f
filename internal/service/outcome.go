package service

import (
	"errors"
	"fmt"

	"github.com/dukerupert/quill/internal/domain"
)

// Outcome reasons. Stable, machine-readable, and free of record identifiers.
const (
	ReasonIgnored              = "Ignored"
	ReasonSignatureMissing     = "SignatureMissing"
	ReasonSignatureInvalid     = "SignatureInvalid"
	ReasonSignatureExpired     = "SignatureExpired"
	ReasonMalformedEvent       = "MalformedEvent"
	ReasonSubscriptionNotFound = "SubscriptionNotFound"
	ReasonSubscriptionConflict = "SubscriptionConflict"
	ReasonSubscriptionMissing  = "ProviderSubscriptionMissing"
	ReasonReconciliationFailed = "ReconciliationFailed"
	ReasonStoreUnavailable     = "StoreUnavailable"
	ReasonProviderUnavailable  = "ProviderUnavailable"
	ReasonInternal             = "InternalError"
)

// Applied reports a delivery whose effects are now committed.
func Applied() domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeApplied}
}

// IgnoredOutcome acknowledges a verified event the system does not act on.
func IgnoredOutcome(reason string) domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeApplied, Reason: ReasonIgnored, Message: reason}
}

// DuplicateIgnored reports a delivery of an already-processed event.
func DuplicateIgnored() domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeDuplicateIgnored}
}

// ReportError maps a pipeline failure to an outcome. Authentication, shape
// and other permanent failures are rejected; everything else asks the
// provider to redeliver.
func ReportError(err error) domain.Outcome {
	switch {
	case errors.Is(err, domain.ErrSignatureMissing):
		return rejected(ReasonSignatureMissing, "missing signature")
	case errors.Is(err, domain.ErrSignatureInvalid):
		return rejected(ReasonSignatureInvalid, "invalid signature")
	case errors.Is(err, domain.ErrSignatureExpired):
		return rejected(ReasonSignatureExpired, "signature timestamp outside tolerance")
	}

	var malformed *domain.MalformedEventError
	if errors.As(err, &malformed) {
		msg := "malformed event"
		if malformed.Field != "" {
			msg = "malformed event: field " + malformed.Field
		}
		return rejected(ReasonMalformedEvent, msg)
	}
	if errors.Is(err, domain.ErrMalformedEvent) {
		return rejected(ReasonMalformedEvent, "malformed event")
	}

	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return retry(ReasonSubscriptionNotFound, "subscription not yet known")
	}
	if errors.Is(err, domain.ErrSubscriptionConflict) {
		return rejected(ReasonSubscriptionConflict, "subscription belongs to another subscriber")
	}
	if errors.Is(err, domain.ErrProviderSubscriptionMissing) {
		return rejected(ReasonSubscriptionMissing, "payment provider has no such subscription")
	}

	var recErr *domain.ReconciliationError
	if errors.As(err, &recErr) {
		if domain.IsCode(recErr.Err, domain.EUNAVAILABLE) {
			return retry(ReasonStoreUnavailable, fmt.Sprintf("store unavailable during %s", recErr.Stage))
		}
		return retry(ReasonReconciliationFailed, fmt.Sprintf("reconciliation failed at %s", recErr.Stage))
	}

	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		return retry(ReasonProviderUnavailable, "payment provider unavailable")
	case domain.IsCode(err, domain.EUNAVAILABLE):
		return retry(ReasonStoreUnavailable, "store unavailable")
	default:
		return retry(ReasonInternal, "internal error")
	}
}

func rejected(reason, message string) domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeRejected, Reason: reason, Message: message}
}

func retry(reason, message string) domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeRetryRequested, Reason: reason, Message: message}
}
