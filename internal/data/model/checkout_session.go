package model

import "time"

// CheckoutSession row.
type CheckoutSession struct {
	ID            string    `gorm:"primaryKey;column:id;type:uuid"`
	TransactionID string    `gorm:"column:transaction_id;index"`
	ProviderCode  string    `gorm:"column:provider_code"`
	SessionToken  string    `gorm:"column:session_token"`
	RedirectURL   string    `gorm:"column:redirect_url"`
	ExpiresAt     time.Time `gorm:"column:expires_at;index"`
	Status        string    `gorm:"column:status;index"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (CheckoutSession) TableName() string { return "checkout_sessions" }
