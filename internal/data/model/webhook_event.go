package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent row. The unique (provider_code, provider_event_id) index
// is the deduplication boundary for replayed deliveries.
type WebhookEvent struct {
	ID              string         `gorm:"primaryKey;column:id;type:uuid"`
	ProviderCode    string         `gorm:"column:provider_code;uniqueIndex:uq_webhook_provider_event"`
	ProviderEventID string         `gorm:"column:provider_event_id;uniqueIndex:uq_webhook_provider_event"`
	Payload         datatypes.JSON `gorm:"column:payload"`
	ReceivedAt      time.Time      `gorm:"column:received_at"`
	Outcome         string         `gorm:"column:outcome"`
	TransactionID   string         `gorm:"column:transaction_id;index"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
