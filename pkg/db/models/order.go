package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/types"
)

// Order is a single vendor's slice of a checkout. One checkout mints one
// payment reference and creates one Order per vendor represented in the
// cart, so sibling orders share payment_reference. TotalAmount covers this
// vendor's items only and is fixed at creation; only Status, the tracking
// fields and the lifecycle timestamps move afterwards.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorID           uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null;index"`
	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	TotalAmount        decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           enums.Currency    `gorm:"column:currency;type:text;not null;default:'NGN'"`
	PaymentReference   string            `gorm:"column:payment_reference;type:text;not null;index"`
	GatewayPaymentID   *string           `gorm:"column:gateway_payment_id;type:text"`
	FailureReason      *string           `gorm:"column:failure_reason;type:text"`
	CancellationReason *string           `gorm:"column:cancellation_reason;type:text"`
	TrackingNumber     *string           `gorm:"column:tracking_number;type:text"`
	ShippingAddress    *types.Address    `gorm:"column:shipping_address;type:jsonb"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt             *time.Time        `gorm:"column:paid_at"`
	CancelledAt        *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt         *time.Time        `gorm:"column:refunded_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
