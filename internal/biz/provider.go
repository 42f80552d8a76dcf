package biz

import (
	"context"
	"net/http"

	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/shopspring/decimal"
)

// Outcome is the provider-neutral result carried by a parsed callback.
// Mapping an outcome onto a transaction status belongs to the webhook
// gateway, never to an adapter.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePending Outcome = "pending"
	OutcomeRefund  Outcome = "refund"
)

// ReturnURLs are where the provider sends the customer after checkout.
type ReturnURLs struct {
	Success string
	Cancel  string
}

// CheckoutResult is a provider session handle plus the redirect target.
type CheckoutResult struct {
	SessionToken string
	RedirectURL  string
}

// CallbackEvent is a normalized provider callback.
type CallbackEvent struct {
	// ProviderEventID deduplicates deliveries of the same event.
	ProviderEventID string
	// ProviderTxID is the provider-assigned transaction identifier.
	ProviderTxID string
	// Reference is the transaction id we embedded at session creation,
	// echoed back by the provider. Either this or ProviderTxID locates
	// the transaction.
	Reference string
	Outcome   Outcome
	// Amount is the money the event concerns, when the provider reports
	// one. Zero means unspecified; refund events without an amount are
	// treated as refunding the full collection.
	Amount decimal.Decimal
}

// ProviderAdapter normalizes one external payment rail. Implementations
// must not decide transaction status; they only translate wire shapes.
type ProviderAdapter interface {
	// Code is the provider code this adapter serves, e.g. "wave".
	Code() string
	// CreateCheckout opens a provider checkout session for tx.
	CreateCheckout(ctx context.Context, tx *Transaction, urls ReturnURLs) (*CheckoutResult, error)
	// VerifySignature authenticates a raw callback. It must be checked
	// before any parsing of the payload.
	VerifySignature(payload []byte, headers http.Header) bool
	// ParseCallback extracts the normalized event from a verified payload.
	ParseCallback(payload []byte, headers http.Header) (*CallbackEvent, error)
}

// ProviderRegistry resolves adapters by provider code. New rails are
// added by registering an adapter; the orchestrator never branches on
// provider codes itself.
type ProviderRegistry struct {
	adapters map[string]ProviderAdapter
}

func NewProviderRegistry(adapters []ProviderAdapter) *ProviderRegistry {
	m := make(map[string]ProviderAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Code()] = a
	}
	return &ProviderRegistry{adapters: m}
}

// Get returns the adapter for code or a ProviderUnknown error.
func (r *ProviderRegistry) Get(code string) (ProviderAdapter, error) {
	if a, ok := r.adapters[code]; ok {
		return a, nil
	}
	return nil, errors.ProviderUnknown(code)
}

// Codes lists the registered provider codes.
func (r *ProviderRegistry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	return codes
}
