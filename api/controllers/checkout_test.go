package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/api/middleware"
	checkoutsvc "github.com/marketsideco/marketside-backend/internal/checkout"
	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/pkg/enums"
)

type fakeCheckoutService struct {
	lastCustomer uuid.UUID
	lastInput    checkoutsvc.Input
	result       *checkoutsvc.Result
	err          error
}

func (f *fakeCheckoutService) Execute(_ context.Context, customerID uuid.UUID, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	f.lastCustomer = customerID
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func authedRequest(method, target, body string, userID uuid.UUID, role enums.UserRole) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestCheckoutCreatesOrders(t *testing.T) {
	customerID := uuid.New()
	orderID := uuid.New()
	svc := &fakeCheckoutService{
		result: &checkoutsvc.Result{
			PaymentReference: "MKS-0011223344556677",
			TotalAmount:      decimal.RequireFromString("149.90"),
			Currency:         enums.CurrencyNGN,
			Orders: []orders.OrderView{
				{ID: orderID, CustomerID: customerID},
			},
		},
	}
	handler := Checkout(svc, nil)

	body := `{
		"items": [{"listingId":"` + uuid.NewString() + `","quantity":2}],
		"shippingAddress": {"line1":"1 Main St","city":"Lagos","state":"LA","postal_code":"100001","country":"NG"}
	}`
	req := authedRequest(http.MethodPost, "/api/v1/checkout", body, customerID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastCustomer != customerID {
		t.Fatalf("expected customer %s, got %s", customerID, svc.lastCustomer)
	}
	if len(svc.lastInput.Items) != 1 || svc.lastInput.Items[0].Quantity != 2 {
		t.Fatalf("unexpected decoded input %+v", svc.lastInput)
	}

	var envelope struct {
		Data struct {
			PaymentReference string      `json:"paymentReference"`
			OrderIDs         []uuid.UUID `json:"orderIds"`
			TotalAmount      string      `json:"totalAmount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PaymentReference != "MKS-0011223344556677" {
		t.Fatalf("unexpected reference %s", envelope.Data.PaymentReference)
	}
	if len(envelope.Data.OrderIDs) != 1 || envelope.Data.OrderIDs[0] != orderID {
		t.Fatalf("unexpected order ids %v", envelope.Data.OrderIDs)
	}
	if envelope.Data.TotalAmount != "149.90" {
		t.Fatalf("unexpected total %s", envelope.Data.TotalAmount)
	}
}

func TestCheckoutRejectsNonCustomer(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := Checkout(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/checkout", `{}`, uuid.New(), enums.UserRoleVendor)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := Checkout(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/checkout", `{"items":`, uuid.New(), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutRequiresUserContext(t *testing.T) {
	handler := Checkout(&fakeCheckoutService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
