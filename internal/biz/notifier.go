package biz

import (
	"context"
	"time"
)

// Notification kinds dispatched after durable state changes.
const (
	NotifyPaymentSucceeded = "payment.succeeded"
	NotifyPaymentFailed    = "payment.failed"
	NotifyPaymentRefunded  = "payment.refunded"
	NotifyRetryExhausted   = "retry.exhausted"
)

// NotificationEvent is the templated message handed to the external
// notification collaborator.
type NotificationEvent struct {
	Kind           string            `json:"kind"`
	TransactionID  string            `json:"transaction_id"`
	MerchantID     string            `json:"merchant_id"`
	OrganizationID string            `json:"organization_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	Provider       string            `json:"provider"`
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// Notifier dispatches notification events asynchronously. Implementations
// must never block the caller on downstream delivery; a failed dispatch
// is logged and retried by the transport, not by the caller.
type Notifier interface {
	Notify(ctx context.Context, event *NotificationEvent)
}

// NewNotificationEvent builds the standard event envelope for tx.
func NewNotificationEvent(kind string, tx *Transaction, reason string) *NotificationEvent {
	return &NotificationEvent{
		Kind:           kind,
		TransactionID:  tx.ID,
		MerchantID:     tx.MerchantID,
		OrganizationID: tx.OrganizationID,
		CustomerID:     tx.CustomerID,
		Amount:         tx.GrossAmount.String(),
		Currency:       tx.Currency,
		Provider:       tx.ProviderCode,
		Reason:         reason,
		Metadata:       tx.Metadata,
		OccurredAt:     time.Now().UTC(),
	}
}
