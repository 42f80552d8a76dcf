package biz

import (
	"context"
	"net/http"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// EventOutcome records how an inbound callback was processed.
type EventOutcome string

const (
	OutcomeAccepted  EventOutcome = "accepted"
	OutcomeDuplicate EventOutcome = "duplicate"
	OutcomeRejected  EventOutcome = "rejected"
	OutcomeError     EventOutcome = "error"
)

// WebhookEvent is the durable record of one inbound provider callback.
// The (ProviderCode, ProviderEventID) pair is unique; a second delivery
// of the same event short-circuits before it can touch a transaction.
type WebhookEvent struct {
	ID              string
	ProviderCode    string
	ProviderEventID string
	Payload         []byte
	ReceivedAt      time.Time
	Outcome         EventOutcome
	TransactionID   string
}

// WebhookEventRepo persists the callback log.
type WebhookEventRepo interface {
	// InsertIfAbsent records the event unless its (provider, event id)
	// pair already exists, reporting whether the row was inserted.
	InsertIfAbsent(ctx context.Context, ev *WebhookEvent) (bool, error)
	Update(ctx context.Context, ev *WebhookEvent) error
}

// IngestResult classifies one webhook delivery.
type IngestResult string

const (
	IngestAccepted  IngestResult = "accepted"
	IngestDuplicate IngestResult = "duplicate"
	IngestRejected  IngestResult = "rejected"
	// IngestUnauthorized means the signature failed; the only outcome
	// that answers with a non-200 status.
	IngestUnauthorized IngestResult = "unauthorized"
)

// WebhookUsecase authenticates provider callbacks, deduplicates them,
// and maps them onto transaction state transitions.
type WebhookUsecase struct {
	providers *ProviderRegistry
	events    WebhookEventRepo
	repo      TransactionRepo
	sessions  SessionRepo
	retry     *RetryScheduler
	notifier  Notifier
	tm        TxManager
	log       *log.Helper
}

func NewWebhookUsecase(
	providers *ProviderRegistry,
	events WebhookEventRepo,
	repo TransactionRepo,
	sessions SessionRepo,
	retry *RetryScheduler,
	notifier Notifier,
	tm TxManager,
	logger log.Logger,
) *WebhookUsecase {
	return &WebhookUsecase{
		providers: providers,
		events:    events,
		repo:      repo,
		sessions:  sessions,
		retry:     retry,
		notifier:  notifier,
		tm:        tm,
		log:       log.NewHelper(logger),
	}
}

// outcomeEvents maps provider-neutral callback outcomes onto state
// machine events. This mapping lives here, not in the adapters.
var outcomeEvents = map[Outcome]Event{
	OutcomeSuccess: EventSucceed,
	OutcomeFailure: EventFail,
	OutcomePending: EventProcess,
	OutcomeRefund:  EventRefund,
}

// Ingest processes one raw provider callback. The event record and the
// state transition commit in a single persistence transaction, so the
// two can never disagree after a crash. Side effects (notifications,
// retry scheduling) run only after that commit.
func (uc *WebhookUsecase) Ingest(ctx context.Context, providerCode string, payload []byte, headers http.Header) (IngestResult, error) {
	adapter, err := uc.providers.Get(providerCode)
	if err != nil {
		uc.log.Warnf("webhook for unknown provider %s", providerCode)
		return IngestRejected, nil
	}

	// Signature first; an unauthenticated payload is never parsed.
	if !adapter.VerifySignature(payload, headers) {
		uc.log.Warnf("webhook signature verification failed for provider %s", providerCode)
		return IngestUnauthorized, errors.SignatureInvalid(providerCode)
	}

	cb, err := adapter.ParseCallback(payload, headers)
	if err != nil {
		uc.log.Warnf("webhook parse failed for provider %s: %v", providerCode, err)
		return IngestRejected, nil
	}

	result := IngestRejected
	var committed *Transaction

	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		ev := &WebhookEvent{
			ID:              uuid.NewString(),
			ProviderCode:    providerCode,
			ProviderEventID: cb.ProviderEventID,
			Payload:         payload,
			ReceivedAt:      time.Now().UTC(),
			Outcome:         OutcomeAccepted,
		}

		inserted, err := uc.events.InsertIfAbsent(ctx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			// A replayed delivery is a success for the provider and a
			// no-op for us.
			result = IngestDuplicate
			return nil
		}

		tx, err := uc.locate(ctx, providerCode, cb)
		if err != nil {
			return err
		}
		if tx == nil {
			uc.log.Warnf("webhook %s/%s references no known transaction", providerCode, cb.ProviderEventID)
			ev.Outcome = OutcomeRejected
			return uc.events.Update(ctx, ev)
		}
		ev.TransactionID = tx.ID

		event, ok := outcomeEvents[cb.Outcome]
		if !ok {
			ev.Outcome = OutcomeError
			return uc.events.Update(ctx, ev)
		}

		prev := tx.Status
		var applyErr error
		if event == EventRefund {
			amount := cb.Amount
			if amount.IsZero() {
				// Providers that omit an amount refund the full collection.
				amount = tx.NetAmount
			}
			applyErr = tx.ApplyRefund(amount)
		} else {
			applyErr = tx.Apply(event)
		}
		if applyErr != nil {
			// Out-of-order, stale, or over-refunding callback. Logged and
			// dropped; the provider still gets a 200 so it stops retrying.
			uc.log.Warnf("webhook %s/%s rejected: %v", providerCode, cb.ProviderEventID, applyErr)
			ev.Outcome = OutcomeRejected
			return uc.events.Update(ctx, ev)
		}
		if cb.ProviderTxID != "" {
			tx.ProviderTxID = cb.ProviderTxID
		}
		if tx.Status == StatusFailed {
			tx.FailureReason = ReasonProviderRejected
		}
		if tx.Status == StatusRefunded {
			if tx.Metadata == nil {
				tx.Metadata = make(map[string]string, 1)
			}
			tx.Metadata["refunded_at"] = ev.ReceivedAt.Format(time.RFC3339)
		}

		if err := uc.repo.UpdateGuarded(ctx, tx, prev); err != nil {
			if errors.IsStaleTransaction(err) {
				// Lost a race against a concurrent transition; discard
				// this callback's action rather than retrying blindly.
				uc.log.Warnf("webhook %s/%s lost status race on transaction %s", providerCode, cb.ProviderEventID, tx.ID)
				ev.Outcome = OutcomeRejected
				return uc.events.Update(ctx, ev)
			}
			return err
		}

		if err := uc.events.Update(ctx, ev); err != nil {
			return err
		}
		result = IngestAccepted
		committed = tx
		return nil
	})
	if err != nil {
		return IngestRejected, err
	}

	if result == IngestAccepted && committed != nil {
		uc.sideEffects(ctx, committed)
	}
	return result, nil
}

// locate finds the transaction a callback refers to, by provider
// transaction id first, then by the reference embedded at session
// creation.
func (uc *WebhookUsecase) locate(ctx context.Context, providerCode string, cb *CallbackEvent) (*Transaction, error) {
	if cb.ProviderTxID != "" {
		tx, err := uc.repo.GetByProviderTxID(ctx, providerCode, cb.ProviderTxID)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			return tx, nil
		}
	}
	if cb.Reference != "" {
		return uc.repo.Get(ctx, cb.Reference)
	}
	return nil, nil
}

// sideEffects runs post-commit dispatch. Failures here are logged, never
// propagated: the state change is already durable and a crash between
// commit and dispatch costs a notification, not a state change.
func (uc *WebhookUsecase) sideEffects(ctx context.Context, tx *Transaction) {
	switch tx.Status {
	case StatusProcessing:
		uc.markSession(ctx, tx.ID, SessionRedirected)
	case StatusSucceeded:
		uc.markSession(ctx, tx.ID, SessionCompleted)
		uc.notifier.Notify(ctx, NewNotificationEvent(NotifyPaymentSucceeded, tx, ""))
		if err := uc.retry.HandleSuccess(ctx, tx); err != nil {
			uc.log.Errorf("failed to complete retry schedule for transaction %s: %v", tx.ID, err)
		}
	case StatusFailed:
		uc.markSession(ctx, tx.ID, SessionExpired)
		scheduled, err := uc.retry.HandleFailure(ctx, tx)
		if err != nil {
			uc.log.Errorf("failed to schedule retry for transaction %s: %v", tx.ID, err)
		}
		if !scheduled {
			uc.notifier.Notify(ctx, NewNotificationEvent(NotifyPaymentFailed, tx, tx.FailureReason))
		}
	case StatusRefunded:
		uc.notifier.Notify(ctx, NewNotificationEvent(NotifyPaymentRefunded, tx, ""))
	}
}

// markSession updates the active session for a transaction, if any.
func (uc *WebhookUsecase) markSession(ctx context.Context, transactionID string, status SessionStatus) {
	session, err := uc.sessions.GetActiveByTransaction(ctx, transactionID)
	if err != nil || session == nil {
		return
	}
	if err := uc.sessions.UpdateStatus(ctx, session.ID, status); err != nil {
		uc.log.Warnf("failed to mark session %s %s: %v", session.ID, status, err)
	}
}
