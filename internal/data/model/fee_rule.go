package model

import "github.com/shopspring/decimal"

// FeeRule row. Reference data, read-only to this service.
type FeeRule struct {
	ID            string          `gorm:"primaryKey;column:id;type:uuid"`
	TxType        string          `gorm:"column:tx_type;uniqueIndex:uq_fee_rule_key"`
	ProviderCode  string          `gorm:"column:provider_code;uniqueIndex:uq_fee_rule_key"`
	PaymentMethod string          `gorm:"column:payment_method;uniqueIndex:uq_fee_rule_key"`
	Currency      string          `gorm:"column:currency;type:varchar(3);uniqueIndex:uq_fee_rule_key"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:decimal(8,4)"`
	FixedAmount   decimal.Decimal `gorm:"column:fixed_amount;type:decimal(20,4)"`
	Name          string          `gorm:"column:name"`
}

func (FeeRule) TableName() string { return "fee_rules" }
