package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformRevenue records the marketplace's cut of a paid order. The unique
// index on OrderID is what makes payment reconciliation idempotent: a
// duplicate webhook loses the insert race and changes nothing.
type PlatformRevenue struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	VendorID         uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	PaymentReference string          `gorm:"column:payment_reference;not null"`
	OrderTotal       decimal.Decimal `gorm:"column:order_total;type:numeric(12,2);not null"`
	PlatformFee      decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	VendorAmount     decimal.Decimal `gorm:"column:vendor_amount;type:numeric(12,2);not null"`
	CommissionRate   decimal.Decimal `gorm:"column:commission_rate;type:numeric(6,4);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
