package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/quill/internal/billing"
	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/events"
	"github.com/dukerupert/quill/internal/telemetry"
)

// SignatureVerifier authenticates a raw webhook body.
type SignatureVerifier interface {
	Verify(payload []byte, header string) ([]byte, error)
}

// EventNormalizer maps a verified body onto a normalized event.
type EventNormalizer interface {
	Normalize(payload []byte) (domain.NormalizedEvent, error)
}

// SubscriptionFetcher reads the provider's current view of a subscription.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*billing.SubscriptionSnapshot, error)
}

// IngestService processes one webhook delivery end to end.
type IngestService interface {
	// Process verifies, normalizes and applies a delivery exactly once and
	// reports the outcome. It never panics on hostile input.
	Process(ctx context.Context, body []byte, signatureHeader string) domain.Outcome
}

// IngestConfig holds the collaborators of the ingestion pipeline.
type IngestConfig struct {
	Verifier   SignatureVerifier
	Normalizer EventNormalizer
	Store      domain.Store
	Reconciler *Reconciler
	Guard      *Guard

	// Subscriptions is optional. Without it, subscription checkouts are
	// recorded as active with no period end.
	Subscriptions SubscriptionFetcher
	// Publisher is optional. Defaults to events.Nop.
	Publisher events.Publisher
	// Metrics is optional.
	Metrics *telemetry.PaymentMetrics
	Logger  *slog.Logger
}

type ingestService struct {
	verifier      SignatureVerifier
	normalizer    EventNormalizer
	store         domain.Store
	reconciler    *Reconciler
	guard         *Guard
	subscriptions SubscriptionFetcher
	publisher     events.Publisher
	metrics       *telemetry.PaymentMetrics
	logger        *slog.Logger
}

// NewIngestService creates the ingestion pipeline.
func NewIngestService(cfg IngestConfig) (IngestService, error) {
	if cfg.Verifier == nil || cfg.Normalizer == nil || cfg.Store == nil {
		return nil, errors.New("ingest: verifier, normalizer and store are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reconciler := cfg.Reconciler
	if reconciler == nil {
		reconciler = NewReconciler(nil, logger)
	}
	guard := cfg.Guard
	if guard == nil {
		guard = NewGuard()
	}
	var publisher events.Publisher = events.Nop{}
	if cfg.Publisher != nil {
		publisher = cfg.Publisher
	}

	return &ingestService{
		verifier:      cfg.Verifier,
		normalizer:    cfg.Normalizer,
		store:         cfg.Store,
		reconciler:    reconciler,
		guard:         guard,
		subscriptions: cfg.Subscriptions,
		publisher:     publisher,
		metrics:       cfg.Metrics,
		logger:        logger,
	}, nil
}

// Process handles one delivery.
//
// Flow:
//  1. Verify the signature (before any parsing)
//  2. Normalize into a closed event variant; Ignored stops here
//  3. Append the audit record
//  4. Skip events that already have a committed outcome
//  5. Fetch the provider subscription for subscription checkouts
//  6. In one unit of work: reserve the event id, apply effects, record outcome
//  7. After commit, publish notifications (best effort)
func (s *ingestService) Process(ctx context.Context, body []byte, signatureHeader string) domain.Outcome {
	started := time.Now()

	outcome, eventType := s.process(ctx, body, signatureHeader)

	s.metrics.ObserveOutcome(string(outcome.Kind), outcome.Reason, started)
	s.logger.Info("webhook processed",
		"event_type", eventType,
		"outcome", outcome.Kind,
		"reason", outcome.Reason,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return outcome
}

func (s *ingestService) process(ctx context.Context, body []byte, header string) (domain.Outcome, string) {
	// Step 1: Signature
	payload, err := s.verifier.Verify(body, header)
	if err != nil {
		s.logger.Warn("webhook signature rejected",
			"error", err,
			"header", billing.HeaderSummary(header),
			"body_bytes", len(body),
		)
		return ReportError(err), ""
	}

	// Step 2: Normalize
	ev, err := s.normalizer.Normalize(payload)
	if err != nil {
		attrs := []any{"error", err}
		var malformed *domain.MalformedEventError
		if errors.As(err, &malformed) {
			attrs = append(attrs, "event_type", malformed.EventType, "field", malformed.Field)
		}
		s.logger.Warn("malformed webhook event", attrs...)
		return ReportError(err), ""
	}
	if s.metrics != nil {
		s.metrics.WebhookReceived.WithLabelValues(ev.ProviderType).Inc()
	}

	logger := s.logger.With("event_id", ev.ID, "event_type", ev.ProviderType)

	if ignored, ok := ev.Payload.(domain.Ignored); ok {
		logger.Info("webhook event ignored", "reason", ignored.Reason)
		return IgnoredOutcome(ignored.Reason), ev.ProviderType
	}

	// Step 3: Audit
	if audit, ok := ev.AuditRecord(); ok {
		if err := s.store.RecordPaymentEvent(ctx, audit); err != nil {
			return s.retry(ctx, logger, ev, err), ev.ProviderType
		}
	}

	// Step 4: Already processed
	processed, err := s.store.EventProcessed(ctx, ev.ID)
	if err != nil {
		return s.retry(ctx, logger, ev, err), ev.ProviderType
	}
	if processed {
		logger.Info("duplicate webhook event ignored")
		return DuplicateIgnored(), ev.ProviderType
	}

	// Step 5: Provider subscription
	var snapshot *billing.SubscriptionSnapshot
	if checkout, ok := ev.Payload.(domain.CheckoutCompleted); ok {
		snapshot, err = s.fetchSubscription(ctx, checkout)
		if err != nil {
			return s.retry(ctx, logger, ev, err), ev.ProviderType
		}
	}

	// Step 6: Unit of work
	var (
		duplicate bool
		effects   Effects
	)
	err = s.store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		reservation, err := s.guard.Begin(ctx, uow, ev.ID)
		if err != nil {
			return &domain.ReconciliationError{Stage: domain.StageGuard, Err: err}
		}
		if reservation == AlreadyProcessed {
			duplicate = true
			return nil
		}

		switch p := ev.Payload.(type) {
		case domain.CheckoutCompleted:
			effects, err = s.reconciler.ApplyCheckout(ctx, uow, ev.ID, ev.OccurredAt, p, snapshot)
		case domain.SubscriptionStatusChanged:
			effects, err = s.reconciler.ApplyStatusChange(ctx, uow, ev.OccurredAt, p)
		default:
			err = fmt.Errorf("unexpected payload %T", p)
		}
		if err != nil {
			return err
		}

		if err := s.guard.Complete(ctx, uow, ev.ID, effects.Outcome); err != nil {
			return &domain.ReconciliationError{Stage: domain.StageGuard, Err: err}
		}
		return nil
	})
	if err != nil {
		var recErr *domain.ReconciliationError
		if !errors.As(err, &recErr) {
			err = &domain.ReconciliationError{Stage: domain.StageCommit, Err: err}
		}
		return s.retry(ctx, logger, ev, err), ev.ProviderType
	}

	if duplicate {
		logger.Info("duplicate webhook event ignored")
		return DuplicateIgnored(), ev.ProviderType
	}

	// Step 7: Notify
	logger.Info("webhook event applied", "processed_outcome", effects.Outcome)
	s.record(effects)
	s.publish(ctx, logger, ev, effects)

	return Applied(), ev.ProviderType
}

func (s *ingestService) fetchSubscription(ctx context.Context, checkout domain.CheckoutCompleted) (*billing.SubscriptionSnapshot, error) {
	if s.subscriptions == nil || !checkout.Recurring() || checkout.SubscriptionRef == "" {
		return nil, nil
	}

	started := time.Now()
	snapshot, err := s.subscriptions.GetSubscription(ctx, checkout.SubscriptionRef)
	s.metrics.ObserveStripeCall("get_subscription", started)
	if errors.Is(err, billing.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderSubscriptionMissing, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return snapshot, nil
}

// retry logs a failure past verification, reports it to Sentry and maps it
// to an outcome. Permanent failures map to a rejection.
func (s *ingestService) retry(ctx context.Context, logger *slog.Logger, ev domain.NormalizedEvent, err error) domain.Outcome {
	outcome := ReportError(err)

	attrs := []any{"error", err, "reason", outcome.Reason}
	var recErr *domain.ReconciliationError
	if errors.As(err, &recErr) {
		attrs = append(attrs, "stage", recErr.Stage)
	}

	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		// Expected when a status change overtakes its checkout.
		logger.Warn("subscription not found, requesting redelivery", attrs...)
		return outcome
	}

	logger.Error("webhook processing failed", attrs...)
	telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
		"event_id":   ev.ID,
		"event_type": ev.ProviderType,
		"reason":     outcome.Reason,
	})
	return outcome
}

func (s *ingestService) record(effects Effects) {
	if s.metrics == nil {
		return
	}
	if effects.Transaction != nil {
		s.metrics.TransactionsCreated.WithLabelValues(string(effects.Transaction.Kind)).Inc()
	}
	if effects.Commission != nil {
		s.metrics.CommissionAccrued.WithLabelValues(effects.Commission.Currency).Add(float64(effects.Commission.CommissionMinor))
	}
}

func (s *ingestService) publish(ctx context.Context, logger *slog.Logger, ev domain.NormalizedEvent, effects Effects) {
	var messages []events.Message
	add := func(subject string, payload any) {
		messages = append(messages, events.Message{Subject: subject, Payload: payload})
	}

	if tx := effects.Transaction; tx != nil {
		add(events.SubjectCheckoutCompleted, events.CheckoutCompleted{
			EventID:      ev.ID,
			SubscriberID: tx.SubscriberID,
			SessionID:    tx.ProviderSessionID,
			AmountMinor:  tx.AmountMinor,
			Currency:     tx.Currency,
			Kind:         string(tx.Kind),
			OccurredAt:   ev.OccurredAt,
		})
	}
	if sub := effects.Subscription; sub != nil {
		add(events.SubjectSubscriptionChanged, events.SubscriptionChanged{
			EventID:                ev.ID,
			SubscriberID:           sub.SubscriberID,
			ProviderSubscriptionID: sub.ProviderSubscriptionID,
			Status:                 string(sub.Status),
			CurrentPeriodEnd:       sub.CurrentPeriodEnd,
			OccurredAt:             ev.OccurredAt,
		})
	}
	if update := effects.StatusUpdate; update != nil {
		add(events.SubjectSubscriptionChanged, events.SubscriptionChanged{
			EventID:                ev.ID,
			ProviderSubscriptionID: update.ProviderSubscriptionID,
			Status:                 string(update.Status),
			CurrentPeriodEnd:       update.CurrentPeriodEnd,
			OccurredAt:             update.OccurredAt,
		})
	}
	if entry := effects.Commission; entry != nil {
		add(events.SubjectCommissionAccrued, events.CommissionAccrued{
			EventID:         ev.ID,
			EmployeeID:      entry.EmployeeID,
			SubscriberID:    entry.SubscriberID,
			CommissionMinor: entry.CommissionMinor,
			Currency:        entry.Currency,
		})
	}

	for _, m := range messages {
		if err := s.publisher.Publish(ctx, m.Subject, m.Payload); err != nil {
			logger.Warn("failed to publish event", "subject", m.Subject, "error", err)
		}
	}
}
