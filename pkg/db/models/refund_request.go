package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// RefundRequest is a customer's petition to reverse a paid order. At most
// one open request may exist per order; Amount snapshots the order total
// at request time.
type RefundRequest struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null;index"`
	Reason     string                    `gorm:"column:reason;type:text;not null"`
	Amount     decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Status     enums.RefundRequestStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	DecidedBy  *uuid.UUID                `gorm:"column:decided_by;type:uuid"`
	DecidedAt  *time.Time                `gorm:"column:decided_at"`
	Note       *string                   `gorm:"column:note;type:text"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
