package domain

import "fmt"

// Authentication errors. Never retried.
var (
	ErrSignatureMissing = Errorf(EUNAUTHORIZED, "", "Signature header missing")
	ErrSignatureInvalid = Errorf(EUNAUTHORIZED, "", "Signature does not match payload")
	ErrSignatureExpired = Errorf(EUNAUTHORIZED, "", "Signature timestamp outside tolerance")
)

// Event and store errors.
var (
	ErrMalformedEvent = Errorf(EINVALID, "", "Malformed event")

	// ErrSubscriptionNotFound is transient: the originating checkout is
	// expected to arrive in a separate delivery.
	ErrSubscriptionNotFound = Errorf(EUNAVAILABLE, "", "Subscription not found")

	ErrEmployeeNotFound = Errorf(ENOTFOUND, "", "Employee not found")

	// Permanent: redelivery cannot succeed until an operator intervenes.
	ErrSubscriptionConflict        = Errorf(ECONFLICT, "", "Provider subscription belongs to another subscriber")
	ErrProviderSubscriptionMissing = Errorf(ENOTFOUND, "", "Provider has no such subscription")

	ErrProviderUnavailable = Errorf(EUNAVAILABLE, "", "Payment provider unavailable")
	ErrStoreUnavailable    = Errorf(EUNAVAILABLE, "", "Store unavailable")

	ErrRecordNotFound = Errorf(ENOTFOUND, "", "Record not found")
)

// MalformedEventError describes which field of a recognized event was
// missing or of the wrong shape.
type MalformedEventError struct {
	EventType string
	Field     string
	Detail    string
}

func (e *MalformedEventError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s event: %s", e.EventType, e.Detail)
	}
	return fmt.Sprintf("malformed %s event: %s: %s", e.EventType, e.Field, e.Detail)
}

// Unwrap lets errors.Is(err, ErrMalformedEvent) match.
func (e *MalformedEventError) Unwrap() error {
	return ErrMalformedEvent
}

// ReconcileStage names the step of a unit of work that failed.
type ReconcileStage string

const (
	StageGuard        ReconcileStage = "guard"
	StageTransaction  ReconcileStage = "transaction"
	StageSubscription ReconcileStage = "subscription"
	StageCommission   ReconcileStage = "commission"
	StageCommit       ReconcileStage = "commit"
)

// ReconciliationError reports a failed unit of work. Nothing it touched was committed.
type ReconciliationError struct {
	Stage ReconcileStage
	Err   error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed at %s: %v", e.Stage, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
