package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/internal/payments"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
)

type fakePaymentsService struct {
	lastActor     orders.Actor
	lastReference string
	views         []orders.OrderView
	err           error
}

func (f *fakePaymentsService) HandleGatewayEvent(context.Context, payments.GatewayEvent) error {
	return nil
}

func (f *fakePaymentsService) VerifyPayment(_ context.Context, actor orders.Actor, reference string) ([]orders.OrderView, error) {
	f.lastActor = actor
	f.lastReference = reference
	if f.err != nil {
		return nil, f.err
	}
	return f.views, nil
}

func verifyRouter(svc payments.Service) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/payments/verify/{reference}", VerifyPayment(svc, nil))
	return r
}

func TestVerifyPaymentForwardsCaller(t *testing.T) {
	customerID := uuid.New()
	svc := &fakePaymentsService{views: []orders.OrderView{{ID: uuid.New(), CustomerID: customerID}}}
	router := verifyRouter(svc)

	req := authedRequest(http.MethodGet, "/payments/verify/MKS-0011223344556677", "", customerID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastActor.ID != customerID || svc.lastActor.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected actor %+v", svc.lastActor)
	}
	if svc.lastReference != "MKS-0011223344556677" {
		t.Fatalf("unexpected reference %s", svc.lastReference)
	}
}

func TestVerifyPaymentSurfacesForbidden(t *testing.T) {
	svc := &fakePaymentsService{err: pkgerrors.New(pkgerrors.CodeForbidden, "payment reference belongs to another account")}
	router := verifyRouter(svc)

	req := authedRequest(http.MethodGet, "/payments/verify/MKS-0011223344556677", "", uuid.New(), enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestVerifyPaymentRequiresUserContext(t *testing.T) {
	router := verifyRouter(&fakePaymentsService{})

	req := httptest.NewRequest(http.MethodGet, "/payments/verify/MKS-0011223344556677", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
