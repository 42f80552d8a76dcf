package biz

import (
	"context"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/shopspring/decimal"
)

// TxType classifies what a transaction moves money for.
type TxType string

const (
	TxTypePayment  TxType = "payment"
	TxTypeRefund   TxType = "refund"
	TxTypeTransfer TxType = "transfer"
	TxTypePayout   TxType = "payout"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Event names a state-machine input, normalized from provider callbacks
// or internal actions.
type Event string

const (
	// EventProcess the customer was redirected / the provider accepted the charge
	EventProcess Event = "process"
	// EventSucceed the provider confirmed collection
	EventSucceed Event = "succeed"
	// EventFail the provider reported failure or the session creation failed
	EventFail Event = "fail"
	// EventRefund a confirmed refund of a succeeded transaction
	EventRefund Event = "refund"
	// EventRetry an explicit retry reopens a failed transaction with a new session
	EventRetry Event = "retry"
)

// Failure reasons recorded on the transaction.
const (
	ReasonProviderUnreachable = "provider_unreachable"
	ReasonProviderRejected    = "provider_rejected"
	ReasonRetriesExhausted    = "retries_exhausted"
)

// Transaction is the authoritative record of one payment, refund,
// transfer, or payout attempt.
type Transaction struct {
	ID             string
	MerchantID     string
	OrganizationID string
	CustomerID     string
	ProductID      string
	SubscriptionID string
	// ParentID links a one-off retry transaction to the failed original.
	ParentID       string
	Type           TxType
	Status         Status
	GrossAmount    decimal.Decimal
	FeeAmount      decimal.Decimal
	NetAmount      decimal.Decimal
	Currency       string
	ProviderCode   string
	PaymentMethod  string
	IdempotencyKey string
	Metadata       map[string]string
	ProviderTxID   string
	FeeRuleName    string
	FailureReason  string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// transitions is the fixed table of legal (from, event) -> to pairs.
// Anything not listed is an invalid transition. failed -> pending exists
// only for the explicit retry event; stale callbacks can never reopen a
// terminal transaction.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventProcess: StatusProcessing,
		EventSucceed: StatusSucceeded,
		EventFail:    StatusFailed,
	},
	StatusProcessing: {
		EventSucceed: StatusSucceeded,
		EventFail:    StatusFailed,
	},
	StatusSucceeded: {
		EventRefund: StatusRefunded,
	},
	StatusFailed: {
		EventRetry: StatusPending,
	},
}

// IsTerminal reports whether the status admits no further provider-driven
// transitions. failed is terminal for callbacks; only an explicit retry
// reopens it.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusRefunded
}

// NextStatus resolves the transition table without mutating anything.
func NextStatus(from Status, event Event) (Status, error) {
	if evs, ok := transitions[from]; ok {
		if to, ok := evs[event]; ok {
			return to, nil
		}
	}
	return "", errors.InvalidTransition("illegal transition: %s on %s", event, from)
}

// Apply validates event against the transition table and advances the
// transaction's status in place. It is the single place state changes
// are decided; callers persist the result under the status guard.
func (t *Transaction) Apply(event Event) error {
	to, err := NextStatus(t.Status, event)
	if err != nil {
		return err
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyRefund is Apply for the refund event with the amount invariant:
// a refund may never exceed the original net amount.
func (t *Transaction) ApplyRefund(amount decimal.Decimal) error {
	if amount.GreaterThan(t.NetAmount) {
		return errors.RefundExceedsNet("refund %s exceeds net %s on transaction %s",
			amount.String(), t.NetAmount.String(), t.ID)
	}
	if amount.IsNegative() {
		return errors.Validation("refund amount must not be negative")
	}
	return t.Apply(EventRefund)
}

// CheckAmounts verifies the money invariants: fee >= 0 and
// net = gross - fee, exactly.
func (t *Transaction) CheckAmounts() error {
	if t.FeeAmount.IsNegative() {
		return errors.Validation("fee amount must not be negative")
	}
	if !t.GrossAmount.Sub(t.FeeAmount).Equal(t.NetAmount) {
		return errors.Validation("net amount must equal gross minus fee")
	}
	return nil
}

// SessionStatus is the lifecycle state of a checkout session.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionRedirected SessionStatus = "redirected"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
)

// CheckoutSession is one provider-side attempt to collect a transaction.
type CheckoutSession struct {
	ID            string
	TransactionID string
	ProviderCode  string
	SessionToken  string
	RedirectURL   string
	ExpiresAt     time.Time
	Status        SessionStatus
	CreatedAt     time.Time
}

// Active reports whether the session can still complete.
func (s *CheckoutSession) Active(now time.Time) bool {
	switch s.Status {
	case SessionCompleted, SessionExpired:
		return false
	}
	return s.ExpiresAt.After(now)
}

// TransactionRepo persists transactions.
type TransactionRepo interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	GetByIdempotencyKey(ctx context.Context, merchantID, key string) (*Transaction, error)
	GetByProviderTxID(ctx context.Context, providerCode, providerTxID string) (*Transaction, error)
	// UpdateGuarded persists tx only if the stored row still has status
	// expected; losing the race returns a StaleTransaction error and no
	// rows change. This is the single-row state-machine lock.
	UpdateGuarded(ctx context.Context, tx *Transaction, expected Status) error
}

// SessionRepo persists checkout sessions.
type SessionRepo interface {
	Create(ctx context.Context, s *CheckoutSession) error
	GetActiveByTransaction(ctx context.Context, transactionID string) (*CheckoutSession, error)
	UpdateStatus(ctx context.Context, id string, status SessionStatus) error
	// ExpireStale marks every created/redirected session past its expiry
	// as expired, returning how many rows changed.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// CustomerRepo is the narrow slice of the customer store this core needs.
type CustomerRepo interface {
	Exists(ctx context.Context, customerID string) (bool, error)
}

// TxManager runs fn inside one persistence transaction.
type TxManager interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}
