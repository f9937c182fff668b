package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/types"
)

// ItemInput is one cart line submitted at checkout.
type ItemInput struct {
	ListingID uuid.UUID `json:"listingId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=1000"`
}

// Input is the full checkout payload. PaymentSourceID is the gateway's
// tokenized payment method; when absent the orders wait as PENDING for the
// customer to complete payment against the returned reference.
type Input struct {
	Items           []ItemInput   `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress types.Address `json:"shippingAddress" validate:"required"`
	PaymentSourceID *string       `json:"paymentSourceId,omitempty"`
}

// Result is what checkout hands back: one order per vendor in the cart,
// all sharing the payment reference.
type Result struct {
	PaymentReference string             `json:"paymentReference"`
	TotalAmount      decimal.Decimal    `json:"totalAmount"`
	Currency         enums.Currency     `json:"currency"`
	GatewayPaymentID *string            `json:"gatewayPaymentId,omitempty"`
	Orders           []orders.OrderView `json:"orders"`
}
