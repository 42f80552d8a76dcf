package model

import "time"

// Customer row. Owned by the account-management system; this service
// only reads it to validate checkout requests.
type Customer struct {
	ID             string    `gorm:"primaryKey;column:id;type:uuid"`
	OrganizationID string    `gorm:"column:organization_id;index"`
	Email          string    `gorm:"column:email"`
	Phone          string    `gorm:"column:phone"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (Customer) TableName() string { return "customers" }
