package model

import "time"

// RetrySchedule row.
type RetrySchedule struct {
	ID             string    `gorm:"primaryKey;column:id;type:uuid"`
	TransactionID  string    `gorm:"column:transaction_id;uniqueIndex"`
	SubscriptionID string    `gorm:"column:subscription_id;index"`
	IntervalDays   int       `gorm:"column:interval_days"`
	MaxAttempts    int       `gorm:"column:max_attempts"`
	Attempts       int       `gorm:"column:attempts"`
	NextAttemptAt  time.Time `gorm:"column:next_attempt_at;index"`
	Status         string    `gorm:"column:status;index"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (RetrySchedule) TableName() string { return "retry_schedules" }
