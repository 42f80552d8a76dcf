package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Transaction row. The (merchant_id, idempotency_key) pair is unique:
// the constraint is what makes concurrent Initiate calls with the same
// key collapse onto one row.
type Transaction struct {
	ID             string            `gorm:"primaryKey;column:id;type:uuid"`
	MerchantID     string            `gorm:"column:merchant_id;index;uniqueIndex:uq_tx_merchant_idem"`
	OrganizationID string            `gorm:"column:organization_id;index"`
	CustomerID     string            `gorm:"column:customer_id;index"`
	ProductID      string            `gorm:"column:product_id"`
	SubscriptionID string            `gorm:"column:subscription_id;index"`
	ParentID       string            `gorm:"column:parent_id;index"`
	TxType         string            `gorm:"column:tx_type"`
	Status         string            `gorm:"column:status;index"`
	GrossAmount    decimal.Decimal   `gorm:"column:gross_amount;type:decimal(20,4)"`
	FeeAmount      decimal.Decimal   `gorm:"column:fee_amount;type:decimal(20,4)"`
	NetAmount      decimal.Decimal   `gorm:"column:net_amount;type:decimal(20,4)"`
	Currency       string            `gorm:"column:currency;type:varchar(3)"`
	ProviderCode   string            `gorm:"column:provider_code;index"`
	PaymentMethod  string            `gorm:"column:payment_method"`
	IdempotencyKey string            `gorm:"column:idempotency_key;uniqueIndex:uq_tx_merchant_idem"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata"`
	ProviderTxID   string            `gorm:"column:provider_tx_id;index:idx_tx_provider_ref"`
	FeeRuleName    string            `gorm:"column:fee_rule_name"`
	FailureReason  string            `gorm:"column:failure_reason"`
	Version        int64             `gorm:"column:version"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at"`
}

func (Transaction) TableName() string { return "transactions" }
