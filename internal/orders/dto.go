package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/types"
)

// Actor is the authenticated principal performing an order operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// CancelInput carries a customer's cancellation request.
type CancelInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AdvanceInput carries a vendor's forward status move. TrackingNumber is
// only meaningful when the move lands on SHIPPED.
type AdvanceInput struct {
	TrackingNumber *string `json:"trackingNumber,omitempty" validate:"omitempty,min=3,max=64"`
}

// RefundRequestInput carries a customer's refund petition.
type RefundRequestInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// RefundDecisionInput carries an admin's verdict on a pending request.
type RefundDecisionInput struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ItemView is the API shape of one order line.
type ItemView struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uuid.UUID       `json:"listingId"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderView is the API shape of an order.
type OrderView struct {
	ID               uuid.UUID         `json:"id"`
	CustomerID       uuid.UUID         `json:"customerId"`
	VendorID         uuid.UUID         `json:"vendorId"`
	Status           enums.OrderStatus `json:"status"`
	TotalAmount      decimal.Decimal   `json:"totalAmount"`
	Currency         enums.Currency    `json:"currency"`
	PaymentReference string            `json:"paymentReference"`
	TrackingNumber   *string           `json:"trackingNumber,omitempty"`
	ShippingAddress  *types.Address    `json:"shippingAddress,omitempty"`
	Items            []ItemView        `json:"items"`
	PaidAt           *time.Time        `json:"paidAt,omitempty"`
	CancelledAt      *time.Time        `json:"cancelledAt,omitempty"`
	RefundedAt       *time.Time        `json:"refundedAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// OrderPage is a cursor page of orders.
type OrderPage struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// RefundView is the API shape of a refund request.
type RefundView struct {
	ID        uuid.UUID                 `json:"id"`
	OrderID   uuid.UUID                 `json:"orderId"`
	Reason    string                    `json:"reason"`
	Amount    decimal.Decimal           `json:"amount"`
	Status    enums.RefundRequestStatus `json:"status"`
	DecidedAt *time.Time                `json:"decidedAt,omitempty"`
	Note      *string                   `json:"note,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
}

// ToOrderView maps a persisted order to its API shape.
func ToOrderView(order *models.Order) OrderView {
	items := make([]ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemView{
			ID:        item.ID,
			ListingID: item.ListingID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	return OrderView{
		ID:               order.ID,
		CustomerID:       order.CustomerID,
		VendorID:         order.VendorID,
		Status:           order.Status,
		TotalAmount:      order.TotalAmount,
		Currency:         order.Currency,
		PaymentReference: order.PaymentReference,
		TrackingNumber:   order.TrackingNumber,
		ShippingAddress:  order.ShippingAddress,
		Items:            items,
		PaidAt:           order.PaidAt,
		CancelledAt:      order.CancelledAt,
		RefundedAt:       order.RefundedAt,
		CreatedAt:        order.CreatedAt,
	}
}

// ToRefundView maps a persisted refund request to its API shape.
func ToRefundView(req *models.RefundRequest) RefundView {
	return RefundView{
		ID:        req.ID,
		OrderID:   req.OrderID,
		Reason:    req.Reason,
		Amount:    req.Amount,
		Status:    req.Status,
		DecidedAt: req.DecidedAt,
		Note:      req.Note,
		CreatedAt: req.CreatedAt,
	}
}
