package domain

// OutcomeKind is the result of processing one delivery, as seen by the web boundary.
type OutcomeKind string

const (
	OutcomeApplied          OutcomeKind = "applied"
	OutcomeDuplicateIgnored OutcomeKind = "duplicate_ignored"
	// OutcomeRejected is not retryable: the delivery is unauthenticated or malformed.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeRetryRequested asks the processor to redeliver with backoff.
	OutcomeRetryRequested OutcomeKind = "retry_requested"
)

// Outcome is the sole contract between ingestion and the web boundary.
// Reason and Message never carry internal record identifiers.
type Outcome struct {
	Kind OutcomeKind
	// Reason is a stable machine-readable cause, e.g. "SignatureInvalid".
	Reason string
	// Message is a human-readable cause suitable for the response body.
	Message string
}

// Acknowledged reports whether the delivery should be answered with success.
func (o Outcome) Acknowledged() bool {
	return o.Kind == OutcomeApplied || o.Kind == OutcomeDuplicateIgnored
}
