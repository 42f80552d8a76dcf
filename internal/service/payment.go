package service

import (
	"io"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/constants"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/shopspring/decimal"
)

// PaymentService is the HTTP surface of the orchestration core.
type PaymentService struct {
	checkout *biz.CheckoutUsecase
	webhook  *biz.WebhookUsecase
	log      *log.Helper
}

func NewPaymentService(checkout *biz.CheckoutUsecase, webhook *biz.WebhookUsecase, logger log.Logger) *PaymentService {
	return &PaymentService{
		checkout: checkout,
		webhook:  webhook,
		log:      log.NewHelper(logger),
	}
}

// CheckoutRequest is the POST /v1/checkout body. Amount is a string so
// no floating point ever touches money on the wire.
type CheckoutRequest struct {
	CustomerID     string            `json:"customer_id"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	Provider       string            `json:"provider"`
	PaymentMethod  string            `json:"payment_method"`
	ProductID      string            `json:"product_id,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CheckoutReply is the POST /v1/checkout response.
type CheckoutReply struct {
	TransactionID string `json:"transactionId"`
	RedirectURL   string `json:"redirectUrl"`
}

// HandleCheckout serves POST /v1/checkout. Merchant identity and the
// environment flag arrive pre-resolved in headers set by the upstream
// authentication gateway.
func (s *PaymentService) HandleCheckout(ctx khttp.Context) error {
	var req CheckoutRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Validation("invalid request body: %v", err)
	}

	header := ctx.Header()
	merchantID := header.Get(constants.HeaderMerchantID)
	organizationID := header.Get(constants.HeaderOrganizationID)
	if merchantID == "" || organizationID == "" {
		return errors.Validation("missing merchant identity headers")
	}

	idempotencyKey := req.IdempotencyKey
	if key := header.Get(constants.HeaderIdempotencyKey); key != "" {
		idempotencyKey = key
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return errors.Validation("invalid amount %q", req.Amount)
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	env := header.Get(constants.HeaderEnvironment)
	switch env {
	case "":
		env = constants.EnvTest
	case constants.EnvTest, constants.EnvLive:
	default:
		return errors.Validation("unknown environment %q", env)
	}
	metadata["environment"] = env

	result, err := s.checkout.Initiate(ctx, &biz.InitiateParams{
		MerchantID:     merchantID,
		OrganizationID: organizationID,
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		SubscriptionID: req.SubscriptionID,
		Amount:         amount,
		Currency:       req.Currency,
		Provider:       req.Provider,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: idempotencyKey,
		Metadata:       metadata,
	})
	if err != nil {
		recordCheckout("error")
		return err
	}

	recordCheckout("ok")
	return ctx.Result(200, &CheckoutReply{
		TransactionID: result.TransactionID,
		RedirectURL:   result.RedirectURL,
	})
}

// WebhookReply acknowledges a provider callback.
type WebhookReply struct {
	Status string `json:"status"`
}

// HandleWebhook serves POST /v1/webhooks/{provider}. Everything except a
// bad signature answers 200 so providers do not retry-storm on outcomes
// we have already durably classified.
func (s *PaymentService) HandleWebhook(ctx khttp.Context) error {
	providerCode := ctx.Vars().Get("provider")

	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Validation("unreadable payload: %v", err)
	}

	result, err := s.webhook.Ingest(ctx, providerCode, payload, ctx.Header())
	recordWebhook(providerCode, string(result))
	if result == biz.IngestUnauthorized {
		return err
	}
	if err != nil {
		// The event could not be durably recorded; let the provider retry.
		return err
	}
	return ctx.Result(200, &WebhookReply{Status: string(result)})
}

// TransactionReply is the GET /v1/transactions/{id} response.
type TransactionReply struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	GrossAmount    string            `json:"grossAmount"`
	FeeAmount      string            `json:"feeAmount"`
	NetAmount      string            `json:"netAmount"`
	Currency       string            `json:"currency"`
	Provider       string            `json:"provider"`
	PaymentMethod  string            `json:"paymentMethod"`
	CustomerID     string            `json:"customerId,omitempty"`
	SubscriptionID string            `json:"subscriptionId,omitempty"`
	ProviderTxID   string            `json:"providerTransactionId,omitempty"`
	FailureReason  string            `json:"failureReason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"createdAt"`
	UpdatedAt      string            `json:"updatedAt"`
}

// HandleGetTransaction serves GET /v1/transactions/{id}.
func (s *PaymentService) HandleGetTransaction(ctx khttp.Context) error {
	id := ctx.Vars().Get("id")
	if id == "" {
		return errors.Validation("transaction id is required")
	}

	tx, err := s.checkout.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	return ctx.Result(200, &TransactionReply{
		ID:             tx.ID,
		Type:           string(tx.Type),
		Status:         string(tx.Status),
		GrossAmount:    tx.GrossAmount.String(),
		FeeAmount:      tx.FeeAmount.String(),
		NetAmount:      tx.NetAmount.String(),
		Currency:       tx.Currency,
		Provider:       tx.ProviderCode,
		PaymentMethod:  tx.PaymentMethod,
		CustomerID:     tx.CustomerID,
		SubscriptionID: tx.SubscriptionID,
		ProviderTxID:   tx.ProviderTxID,
		FailureReason:  tx.FailureReason,
		Metadata:       tx.Metadata,
		CreatedAt:      tx.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      tx.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}
