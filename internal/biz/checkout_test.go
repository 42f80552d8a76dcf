package biz

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	uc        *CheckoutUsecase
	repo      *fakeTransactionRepo
	sessions  *fakeSessionRepo
	schedules *fakeRetryScheduleRepo
	notifier  *fakeNotifier
	adapter   *fakeAdapter
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	repo := newFakeTransactionRepo()
	sessions := newFakeSessionRepo()
	schedules := newFakeRetryScheduleRepo()
	notifier := &fakeNotifier{}
	adapter := &fakeAdapter{code: "wave"}
	bc := &conf.Bootstrap{
		Checkout: &conf.Checkout{
			ReturnUrl:       "https://merchant.example.com/return",
			CancelUrl:       "https://merchant.example.com/cancel",
			ProviderTimeout: "200ms",
			SessionTtl:      "30m",
		},
	}
	uc := NewCheckoutUsecase(
		repo,
		sessions,
		newFakeCustomerRepo("cust-1"),
		newFeeUsecase(xofCardRule()),
		NewProviderRegistry([]ProviderAdapter{adapter}),
		NewRetryScheduler(schedules, repo, notifier, logger),
		notifier,
		bc,
		logger,
	)
	return &checkoutFixture{
		uc:        uc,
		repo:      repo,
		sessions:  sessions,
		schedules: schedules,
		notifier:  notifier,
		adapter:   adapter,
	}
}

func validParams() *InitiateParams {
	return &InitiateParams{
		MerchantID:     "mer-1",
		OrganizationID: "org-1",
		CustomerID:     "cust-1",
		Amount:         decimal.NewFromInt(10000),
		Currency:       "XOF",
		Provider:       "wave",
		PaymentMethod:  "mobile_money",
		IdempotencyKey: "idem-1",
	}
}

func TestInitiate_CreatesTransactionAndSession(t *testing.T) {
	f := newCheckoutFixture(t)

	res, err := f.uc.Initiate(context.Background(), validParams())

	require.NoError(t, err)
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, "https://pay.example.com/"+res.TransactionID, res.RedirectURL)

	tx, err := f.repo.Get(context.Background(), res.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, TxTypePayment, tx.Type)
	assert.True(t, tx.GrossAmount.Equal(decimal.NewFromInt(10000)))
	assert.True(t, tx.FeeAmount.Equal(decimal.NewFromInt(250)))
	assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(9750)))
	assert.Equal(t, "wave_momo_xof", tx.FeeRuleName)

	sessions := f.sessions.byTransaction(tx.ID)
	require.Len(t, sessions, 1)
	assert.Equal(t, SessionCreated, sessions[0].Status)
	assert.Equal(t, "wave", sessions[0].ProviderCode)
	assert.True(t, sessions[0].ExpiresAt.After(time.Now()))
}

func TestInitiate_IdempotentReplay(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	first, err := f.uc.Initiate(ctx, validParams())
	require.NoError(t, err)

	second, err := f.uc.Initiate(ctx, validParams())
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.RedirectURL, second.RedirectURL)
	assert.Equal(t, 1, f.repo.count(), "replay must not create a second transaction")
	assert.Equal(t, 1, f.sessions.count(), "replay must not create a second session")
	assert.Equal(t, 1, f.adapter.checkoutSeen, "replay must not call the provider again")
}

func TestInitiate_LostCreateRaceReplaysWinner(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	// A rival Initiate inserts the same key between the pre-check and the
	// insert; the unique constraint fires and the loser replays the winner.
	rival := &Transaction{
		ID:             "tx-rival",
		MerchantID:     "mer-1",
		OrganizationID: "org-1",
		Status:         StatusPending,
		IdempotencyKey: "idem-1",
	}
	f.repo.beforeCreate = func(tx *Transaction) error {
		f.repo.beforeCreate = nil
		f.repo.txs[rival.ID] = rival
		return nil
	}

	res, err := f.uc.Initiate(ctx, validParams())

	require.NoError(t, err)
	assert.Equal(t, "tx-rival", res.TransactionID)
	assert.Equal(t, 1, f.repo.count())
}

func TestInitiate_ProviderUnreachableFailsTransaction(t *testing.T) {
	f := newCheckoutFixture(t)
	f.adapter.checkoutFn = func(ctx context.Context, tx *Transaction, urls ReturnURLs) (*CheckoutResult, error) {
		// Simulate a provider that never answers within the timeout.
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.uc.Initiate(context.Background(), validParams())

	require.Error(t, err)
	assert.True(t, errors.IsReason(err, errors.ReasonProviderUnreachable))

	tx, lookupErr := f.repo.GetByIdempotencyKey(context.Background(), "mer-1", "idem-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, tx)
	assert.Equal(t, StatusFailed, tx.Status)
	assert.Equal(t, ReasonProviderUnreachable, tx.FailureReason)
	assert.Equal(t, 0, f.sessions.count(), "no session may exist for a failed initiation")

	// No retry policy on a one-off payment: the failure is final and the
	// merchant hears about it.
	schedule, _ := f.schedules.GetByTransaction(context.Background(), tx.ID)
	assert.Nil(t, schedule)
	assert.Equal(t, []string{NotifyPaymentFailed}, f.notifier.kinds())
}

func TestInitiate_ProviderFailureSchedulesRetry(t *testing.T) {
	f := newCheckoutFixture(t)
	f.adapter.checkoutFn = func(ctx context.Context, tx *Transaction, urls ReturnURLs) (*CheckoutResult, error) {
		return nil, errors.ProviderUnreachable("connection refused")
	}
	p := validParams()
	p.SubscriptionID = "sub-1"
	p.Metadata = map[string]string{
		"retry_interval_days": "0",
		"retry_max_attempts":  "3",
	}

	_, err := f.uc.Initiate(context.Background(), p)
	require.Error(t, err)

	tx, lookupErr := f.repo.GetByIdempotencyKey(context.Background(), "mer-1", "idem-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, tx)
	assert.Equal(t, StatusFailed, tx.Status)

	// A retryable failure at session creation must not be silently final:
	// the sweep has to find it the same way it finds callback failures.
	schedule, _ := f.schedules.GetByTransaction(context.Background(), tx.ID)
	require.NotNil(t, schedule)
	assert.Equal(t, ScheduleActive, schedule.Status)
	assert.Equal(t, 3, schedule.MaxAttempts)
	assert.Equal(t, 0, schedule.Attempts)
	assert.Empty(t, f.notifier.kinds(), "a scheduled retry is not a terminal failure")
}

func TestInitiate_CustomerNotFound(t *testing.T) {
	f := newCheckoutFixture(t)
	p := validParams()
	p.CustomerID = "cust-missing"

	_, err := f.uc.Initiate(context.Background(), p)

	require.Error(t, err)
	assert.True(t, errors.IsReason(err, errors.ReasonCustomerNotFound))
	assert.Equal(t, 0, f.repo.count())
}

func TestInitiate_UnknownProvider(t *testing.T) {
	f := newCheckoutFixture(t)
	p := validParams()
	p.Provider = "mtn"

	_, err := f.uc.Initiate(context.Background(), p)

	require.Error(t, err)
	assert.True(t, errors.IsReason(err, errors.ReasonProviderUnknown))
}

func TestInitiate_Validation(t *testing.T) {
	f := newCheckoutFixture(t)

	tests := []struct {
		name   string
		mutate func(*InitiateParams)
	}{
		{"missing merchant", func(p *InitiateParams) { p.MerchantID = "" }},
		{"missing customer", func(p *InitiateParams) { p.CustomerID = "" }},
		{"zero amount", func(p *InitiateParams) { p.Amount = decimal.Zero }},
		{"negative amount", func(p *InitiateParams) { p.Amount = decimal.NewFromInt(-1) }},
		{"missing currency", func(p *InitiateParams) { p.Currency = "" }},
		{"missing payment method", func(p *InitiateParams) { p.PaymentMethod = "" }},
		{"missing idempotency key", func(p *InitiateParams) { p.IdempotencyKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(p)
			_, err := f.uc.Initiate(context.Background(), p)
			require.Error(t, err)
			assert.True(t, errors.IsReason(err, errors.ReasonValidation))
		})
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.uc.GetTransaction(context.Background(), "tx-missing")

	require.Error(t, err)
	assert.True(t, errors.IsReason(err, errors.ReasonTransactionNotFound))
}
