package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/api/responses"
	"github.com/marketsideco/marketside-backend/api/validators"
	checkoutsvc "github.com/marketsideco/marketside-backend/internal/checkout"
	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/logger"
)

// Checkout submits the buyer's cart and splits it into per-vendor orders.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.UserRoleCustomer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer account required for checkout"))
			return
		}

		var payload checkoutsvc.Input
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), actor.ID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutResponse struct {
	PaymentReference string             `json:"paymentReference"`
	OrderIDs         []uuid.UUID        `json:"orderIds"`
	TotalAmount      string             `json:"totalAmount"`
	Currency         string             `json:"currency"`
	GatewayPaymentID *string            `json:"gatewayPaymentId,omitempty"`
	Orders           []orders.OrderView `json:"orders"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	ids := make([]uuid.UUID, 0, len(result.Orders))
	for _, order := range result.Orders {
		ids = append(ids, order.ID)
	}
	return checkoutResponse{
		PaymentReference: result.PaymentReference,
		OrderIDs:         ids,
		TotalAmount:      result.TotalAmount.StringFixed(2),
		Currency:         string(result.Currency),
		GatewayPaymentID: result.GatewayPaymentID,
		Orders:           result.Orders,
	}
}
