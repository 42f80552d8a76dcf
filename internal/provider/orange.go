package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// orangeMoneyAdapter speaks the Orange Money web payment API.
type orangeMoneyAdapter struct {
	cfg *conf.Provider
	hc  *http.Client
	log *log.Helper
}

// NewOrangeMoneyAdapter creates the Orange Money adapter.
func NewOrangeMoneyAdapter(cfg *conf.Provider, hc *http.Client, logger log.Logger) biz.ProviderAdapter {
	return &orangeMoneyAdapter{
		cfg: cfg,
		hc:  hc,
		log: log.NewHelper(logger),
	}
}

func (a *orangeMoneyAdapter) Code() string { return CodeOrangeMoney }

type orangePaymentRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	OrderID   string `json:"order_id"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type orangePaymentResponse struct {
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
}

func (a *orangeMoneyAdapter) CreateCheckout(ctx context.Context, tx *biz.Transaction, urls biz.ReturnURLs) (*biz.CheckoutResult, error) {
	body, err := json.Marshal(orangePaymentRequest{
		Amount:    tx.GrossAmount.String(),
		Currency:  tx.Currency,
		OrderID:   tx.ID,
		ReturnURL: urls.Success,
		CancelURL: urls.Cancel,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.ApiUrl+"/v1/webpayment", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.log.Warnf("orange money webpayment returned %d: %s", resp.StatusCode, raw)
		return nil, errors.ProviderRejected("orange money webpayment returned status %d", resp.StatusCode)
	}

	var out orangePaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid orange money response: %w", err)
	}
	if out.PayToken == "" || out.PaymentURL == "" {
		return nil, errors.ProviderRejected("orange money response missing payment fields")
	}
	return &biz.CheckoutResult{
		SessionToken: out.PayToken,
		RedirectURL:  out.PaymentURL,
	}, nil
}

// VerifySignature checks X-Orange-Signature: hex HMAC-SHA256 of the raw
// payload with the webhook secret.
func (a *orangeMoneyAdapter) VerifySignature(payload []byte, headers http.Header) bool {
	sig := headers.Get("X-Orange-Signature")
	if sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(a.cfg.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

type orangeCallback struct {
	NotifID string `json:"notif_id"`
	Status  string `json:"status"`
	TxnID   string `json:"txnid"`
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
}

func (a *orangeMoneyAdapter) ParseCallback(payload []byte, headers http.Header) (*biz.CallbackEvent, error) {
	var cb orangeCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, errors.InvalidCallback("invalid orange money callback payload: %v", err)
	}
	if cb.NotifID == "" {
		return nil, errors.InvalidCallback("orange money callback missing notif_id")
	}

	var outcome biz.Outcome
	switch cb.Status {
	case "SUCCESS":
		outcome = biz.OutcomeSuccess
	case "INITIATED", "PENDING":
		outcome = biz.OutcomePending
	case "FAILED", "EXPIRED":
		outcome = biz.OutcomeFailure
	case "REFUNDED":
		outcome = biz.OutcomeRefund
	default:
		return nil, errors.InvalidCallback("unsupported orange money status %s", cb.Status)
	}

	ev := &biz.CallbackEvent{
		ProviderEventID: cb.NotifID,
		ProviderTxID:    cb.TxnID,
		Reference:       cb.OrderID,
		Outcome:         outcome,
	}
	if cb.Amount != "" {
		amount, err := decimal.NewFromString(cb.Amount)
		if err != nil {
			return nil, errors.InvalidCallback("invalid orange money callback amount %q", cb.Amount)
		}
		ev.Amount = amount
	}
	return ev, nil
}
