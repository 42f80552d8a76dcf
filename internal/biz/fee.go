package biz

import (
	"context"

	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// FeeRule is read-only pricing reference data keyed by
// (transaction type, provider, payment method, currency).
type FeeRule struct {
	ID            string
	TxType        TxType
	ProviderCode  string
	PaymentMethod string
	Currency      string
	Percentage    decimal.Decimal
	FixedAmount   decimal.Decimal
	Name          string
}

// FeeRuleRepo looks up fee rules. Rules are configuration data; they are
// never written through this interface.
type FeeRuleRepo interface {
	Find(ctx context.Context, txType TxType, provider, method, currency string) (*FeeRule, error)
}

// FeeResult is the outcome of one fee computation. The values are copied
// onto the transaction at creation time so later rule changes never
// retroactively alter history.
type FeeResult struct {
	FeeAmount decimal.Decimal
	NetAmount decimal.Decimal
	RuleName  string
}

// FeeUsecase computes fees. Pure given the rule table; safe to call
// concurrently.
type FeeUsecase struct {
	rules FeeRuleRepo
	log   *log.Helper
}

func NewFeeUsecase(rules FeeRuleRepo, logger log.Logger) *FeeUsecase {
	return &FeeUsecase{
		rules: rules,
		log:   log.NewHelper(logger),
	}
}

// minorUnits maps currency codes to decimal places of their minor unit.
// Unlisted currencies default to 2.
var minorUnits = map[string]int32{
	"XOF": 0,
	"XAF": 0,
	"JPY": 0,
	"KRW": 0,
	"GNF": 0,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"NGN": 2,
	"GHS": 2,
	"KES": 2,
	"BHD": 3,
	"KWD": 3,
	"TND": 3,
}

// MinorUnit returns the number of decimal places for a currency.
func MinorUnit(currency string) int32 {
	if places, ok := minorUnits[currency]; ok {
		return places
	}
	return 2
}

// ComputeFee looks up exactly one matching rule and computes
// fee = bankRound(amount * percentage / 100) + fixed, net = amount - fee.
// A missing rule is a merchant-configuration error; there is no zero-fee
// fallback.
func (uc *FeeUsecase) ComputeFee(ctx context.Context, amount decimal.Decimal, txType TxType, provider, method, currency string) (*FeeResult, error) {
	if !amount.IsPositive() {
		return nil, errors.Validation("amount must be positive, got %s", amount.String())
	}

	rule, err := uc.rules.Find(ctx, txType, provider, method, currency)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		uc.log.Warnf("no fee rule for type=%s provider=%s method=%s currency=%s", txType, provider, method, currency)
		return nil, errors.NoFeeConfiguration("no fee rule configured for %s/%s/%s/%s", txType, provider, method, currency)
	}

	// Banker's rounding on the currency's minor unit keeps repeated
	// computations drift-free.
	pct := amount.Mul(rule.Percentage).Div(decimal.NewFromInt(100)).RoundBank(MinorUnit(currency))
	fee := pct.Add(rule.FixedAmount)
	if fee.IsNegative() {
		return nil, errors.Validation("fee rule %s produces a negative fee", rule.Name)
	}

	return &FeeResult{
		FeeAmount: fee,
		NetAmount: amount.Sub(fee),
		RuleName:  rule.Name,
	}, nil
}
