package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// OrderCreatedEvent signals that checkout committed a new vendor order.
// A multi-vendor cart produces one event per sibling order.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	VendorID         uuid.UUID       `json:"vendor_id"`
	PaymentReference string          `json:"payment_reference"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         enums.Currency  `json:"currency"`
}

// OrderPaidEvent is emitted once per order when reconciliation confirms payment.
type OrderPaidEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	PaymentReference string          `json:"payment_reference"`
	VendorID         uuid.UUID       `json:"vendor_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	VendorAmount     decimal.Decimal `json:"vendor_amount"`
	PaidAt           time.Time       `json:"paid_at"`
}

// OrderStatusChangedEvent tracks each lifecycle move after payment.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	ActorID    uuid.UUID         `json:"actor_id"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted when a customer voids a pre-shipment order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	Restocked   bool              `json:"restocked"`
	CancelledAt time.Time         `json:"cancelled_at"`
}

// OrderRefundedEvent is emitted when an admin approves a refund request.
type OrderRefundedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	RefundRequestID uuid.UUID       `json:"refund_request_id"`
	Amount          decimal.Decimal `json:"amount"`
	RefundedAt      time.Time       `json:"refunded_at"`
}

// PaymentFailedEvent records a failed charge against a pending order.
type PaymentFailedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	CustomerID       uuid.UUID `json:"customer_id"`
	PaymentReference string    `json:"payment_reference"`
	Reason           string    `json:"reason,omitempty"`
	FailedAt         time.Time `json:"failed_at"`
}

// RefundRequestedEvent tells admins a refund needs review.
type RefundRequestedEvent struct {
	RefundRequestID uuid.UUID `json:"refund_request_id"`
	OrderID         uuid.UUID `json:"order_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	Reason          string    `json:"reason"`
}

// RefundDecidedEvent reports the admin decision on a refund request.
type RefundDecidedEvent struct {
	RefundRequestID uuid.UUID                 `json:"refund_request_id"`
	OrderID         uuid.UUID                 `json:"order_id"`
	CustomerID      uuid.UUID                 `json:"customer_id"`
	Status          enums.RefundRequestStatus `json:"status"`
	DecidedBy       uuid.UUID                 `json:"decided_by"`
}

// NotificationRequestedEvent tells the notification worker to alert a user.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID              `json:"user_id"`
	OrderID uuid.UUID              `json:"order_id"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Link    string                 `json:"link,omitempty"`
}
