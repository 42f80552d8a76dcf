package biz

import (
	"context"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitiateParams is the input to one checkout initiation.
type InitiateParams struct {
	MerchantID     string
	OrganizationID string
	CustomerID     string
	ProductID      string
	SubscriptionID string
	ParentID       string
	Amount         decimal.Decimal
	Currency       string
	Provider       string
	PaymentMethod  string
	IdempotencyKey string
	Metadata       map[string]string
}

// InitiateResult is what the caller needs to send the customer to pay.
type InitiateResult struct {
	TransactionID string
	RedirectURL   string
}

// CheckoutUsecase turns a collect-money request into a pending
// transaction plus a provider checkout session.
type CheckoutUsecase struct {
	repo      TransactionRepo
	sessions  SessionRepo
	customers CustomerRepo
	fees      *FeeUsecase
	providers *ProviderRegistry
	retry     *RetryScheduler
	notifier  Notifier
	checkout  *conf.Checkout
	log       *log.Helper
}

func NewCheckoutUsecase(
	repo TransactionRepo,
	sessions SessionRepo,
	customers CustomerRepo,
	fees *FeeUsecase,
	providers *ProviderRegistry,
	retry *RetryScheduler,
	notifier Notifier,
	c *conf.Bootstrap,
	logger log.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		repo:      repo,
		sessions:  sessions,
		customers: customers,
		fees:      fees,
		providers: providers,
		retry:     retry,
		notifier:  notifier,
		checkout:  c.Checkout,
		log:       log.NewHelper(logger),
	}
}

func (p *InitiateParams) validate() error {
	if p.MerchantID == "" || p.OrganizationID == "" {
		return errors.Validation("merchant and organization identifiers are required")
	}
	if p.CustomerID == "" {
		return errors.Validation("customer identifier is required")
	}
	if !p.Amount.IsPositive() {
		return errors.Validation("amount must be positive")
	}
	if p.Currency == "" {
		return errors.Validation("currency is required")
	}
	if p.Provider == "" || p.PaymentMethod == "" {
		return errors.Validation("provider and payment method are required")
	}
	if p.IdempotencyKey == "" {
		return errors.Validation("idempotency key is required")
	}
	return nil
}

// Initiate creates a pending transaction and a provider checkout session,
// returning the redirect target. Repeating the call with the same
// idempotency key returns the existing transaction and creates nothing.
func (uc *CheckoutUsecase) Initiate(ctx context.Context, p *InitiateParams) (*InitiateResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	adapter, err := uc.providers.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	// 1. Idempotent replay: same key, same transaction, no second session.
	if existing, err := uc.repo.GetByIdempotencyKey(ctx, p.MerchantID, p.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return uc.replay(ctx, existing)
	}

	// 2. Resolve the customer.
	ok, err := uc.customers.Exists(ctx, p.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.CustomerNotFound(p.CustomerID)
	}

	// 3. Compute the fee; the result is copied onto the transaction so
	// later rule changes never alter history.
	fee, err := uc.fees.ComputeFee(ctx, p.Amount, TxTypePayment, p.Provider, p.PaymentMethod, p.Currency)
	if err != nil {
		return nil, err
	}

	// 4. Persist the pending transaction.
	now := time.Now().UTC()
	tx := &Transaction{
		ID:             uuid.NewString(),
		MerchantID:     p.MerchantID,
		OrganizationID: p.OrganizationID,
		CustomerID:     p.CustomerID,
		ProductID:      p.ProductID,
		SubscriptionID: p.SubscriptionID,
		ParentID:       p.ParentID,
		Type:           TxTypePayment,
		Status:         StatusPending,
		GrossAmount:    p.Amount,
		FeeAmount:      fee.FeeAmount,
		NetAmount:      fee.NetAmount,
		Currency:       p.Currency,
		ProviderCode:   p.Provider,
		PaymentMethod:  p.PaymentMethod,
		IdempotencyKey: p.IdempotencyKey,
		Metadata:       p.Metadata,
		FeeRuleName:    fee.RuleName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.CheckAmounts(); err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, tx); err != nil {
		// A concurrent Initiate with the same key may have won the unique
		// constraint race; replay its transaction instead of failing.
		if existing, lookupErr := uc.repo.GetByIdempotencyKey(ctx, p.MerchantID, p.IdempotencyKey); lookupErr == nil && existing != nil {
			uc.log.Infof("initiate lost idempotency race, replaying transaction %s", existing.ID)
			return uc.replay(ctx, existing)
		}
		return nil, err
	}

	// 5. Open the provider session under a short timeout. The caller is
	// never left hanging on a slow provider.
	callCtx, cancel := context.WithTimeout(ctx, uc.checkout.ProviderTimeoutDuration())
	defer cancel()
	result, err := adapter.CreateCheckout(callCtx, tx, ReturnURLs{
		Success: uc.checkout.ReturnUrl,
		Cancel:  uc.checkout.CancelUrl,
	})
	if err != nil {
		uc.log.Errorf("provider %s session creation failed for transaction %s: %v", p.Provider, tx.ID, err)
		// Never leave the transaction silently pending with no session.
		prev := tx.Status
		if applyErr := tx.Apply(EventFail); applyErr == nil {
			tx.FailureReason = ReasonProviderUnreachable
			if updErr := uc.repo.UpdateGuarded(ctx, tx, prev); updErr != nil {
				uc.log.Errorf("failed to mark transaction %s failed: %v", tx.ID, updErr)
			} else {
				uc.dispatchFailure(ctx, tx)
			}
		}
		return nil, errors.ProviderUnreachable("provider %s unreachable: %v", p.Provider, err)
	}

	// 6. Persist the session and hand back the redirect.
	session := &CheckoutSession{
		ID:            uuid.NewString(),
		TransactionID: tx.ID,
		ProviderCode:  p.Provider,
		SessionToken:  result.SessionToken,
		RedirectURL:   result.RedirectURL,
		ExpiresAt:     now.Add(uc.checkout.SessionTtlDuration()),
		Status:        SessionCreated,
		CreatedAt:     now,
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	uc.log.Infof("initiated transaction %s via %s: gross=%s fee=%s net=%s %s",
		tx.ID, p.Provider, tx.GrossAmount, tx.FeeAmount, tx.NetAmount, tx.Currency)
	return &InitiateResult{TransactionID: tx.ID, RedirectURL: result.RedirectURL}, nil
}

// dispatchFailure runs the side effects a transaction owes on entering
// failed: it schedules a retry when the policy allows one, and emits the
// terminal failure notification when it does not. Failures arriving via
// provider callbacks take the same path through the webhook gateway.
func (uc *CheckoutUsecase) dispatchFailure(ctx context.Context, tx *Transaction) {
	scheduled, err := uc.retry.HandleFailure(ctx, tx)
	if err != nil {
		uc.log.Errorf("failed to schedule retry for transaction %s: %v", tx.ID, err)
	}
	if !scheduled {
		uc.notifier.Notify(ctx, NewNotificationEvent(NotifyPaymentFailed, tx, tx.FailureReason))
	}
}

// replay answers an Initiate that matched an existing idempotency key.
func (uc *CheckoutUsecase) replay(ctx context.Context, tx *Transaction) (*InitiateResult, error) {
	res := &InitiateResult{TransactionID: tx.ID}
	session, err := uc.sessions.GetActiveByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		res.RedirectURL = session.RedirectURL
	}
	return res, nil
}

// GetTransaction fetches one transaction by its external identifier.
func (uc *CheckoutUsecase) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	tx, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.TransactionNotFound(id)
	}
	return tx, nil
}
