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
	"strings"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// waveAdapter speaks the Wave mobile-money checkout API.
type waveAdapter struct {
	cfg *conf.Provider
	hc  *http.Client
	log *log.Helper
}

// NewWaveAdapter creates the Wave adapter.
func NewWaveAdapter(cfg *conf.Provider, hc *http.Client, logger log.Logger) biz.ProviderAdapter {
	return &waveAdapter{
		cfg: cfg,
		hc:  hc,
		log: log.NewHelper(logger),
	}
}

func (a *waveAdapter) Code() string { return CodeWave }

type waveCheckoutRequest struct {
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	SuccessURL      string `json:"success_url"`
	ErrorURL        string `json:"error_url"`
	ClientReference string `json:"client_reference"`
}

type waveCheckoutResponse struct {
	ID            string `json:"id"`
	WaveLaunchURL string `json:"wave_launch_url"`
}

func (a *waveAdapter) CreateCheckout(ctx context.Context, tx *biz.Transaction, urls biz.ReturnURLs) (*biz.CheckoutResult, error) {
	body, err := json.Marshal(waveCheckoutRequest{
		Amount:     tx.GrossAmount.String(),
		Currency:   tx.Currency,
		SuccessURL: urls.Success,
		ErrorURL:   urls.Cancel,
		// The transaction id rides along so callbacks can be matched even
		// before Wave assigns its own transaction id.
		ClientReference: tx.ID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.ApiUrl+"/v1/checkout/sessions", bytes.NewReader(body))
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
		a.log.Warnf("wave checkout returned %d: %s", resp.StatusCode, raw)
		return nil, errors.ProviderRejected("wave checkout returned status %d", resp.StatusCode)
	}

	var out waveCheckoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid wave checkout response: %w", err)
	}
	if out.ID == "" || out.WaveLaunchURL == "" {
		return nil, errors.ProviderRejected("wave checkout response missing session fields")
	}
	return &biz.CheckoutResult{
		SessionToken: out.ID,
		RedirectURL:  out.WaveLaunchURL,
	}, nil
}

// VerifySignature checks the Wave-Signature header, formatted as
// "t=<unix>,v1=<hex>" where v1 = HMAC-SHA256(secret, t + payload).
func (a *waveAdapter) VerifySignature(payload []byte, headers http.Header) bool {
	header := headers.Get("Wave-Signature")
	if header == "" {
		return false
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.cfg.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

type waveCallback struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID              string `json:"id"`
		TransactionID   string `json:"transaction_id"`
		ClientReference string `json:"client_reference"`
		PaymentStatus   string `json:"payment_status"`
		Amount          string `json:"amount"`
	} `json:"data"`
}

func (a *waveAdapter) ParseCallback(payload []byte, headers http.Header) (*biz.CallbackEvent, error) {
	var cb waveCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, errors.InvalidCallback("invalid wave callback payload: %v", err)
	}
	if cb.ID == "" {
		return nil, errors.InvalidCallback("wave callback missing event id")
	}

	var outcome biz.Outcome
	switch cb.Type {
	case "checkout.session.completed":
		switch cb.Data.PaymentStatus {
		case "succeeded":
			outcome = biz.OutcomeSuccess
		case "processing":
			outcome = biz.OutcomePending
		default:
			outcome = biz.OutcomeFailure
		}
	case "checkout.session.payment_failed":
		outcome = biz.OutcomeFailure
	case "refund.succeeded":
		outcome = biz.OutcomeRefund
	default:
		return nil, errors.InvalidCallback("unsupported wave event type %s", cb.Type)
	}

	ev := &biz.CallbackEvent{
		ProviderEventID: cb.ID,
		ProviderTxID:    cb.Data.TransactionID,
		Reference:       cb.Data.ClientReference,
		Outcome:         outcome,
	}
	if cb.Data.Amount != "" {
		amount, err := decimal.NewFromString(cb.Data.Amount)
		if err != nil {
			return nil, errors.InvalidCallback("invalid wave callback amount %q", cb.Data.Amount)
		}
		ev.Amount = amount
	}
	return ev, nil
}
