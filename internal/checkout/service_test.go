package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/internal/listings"
	ordersvc "github.com/marketsideco/marketside-backend/internal/orders"
	dbpkg "github.com/marketsideco/marketside-backend/pkg/db"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/metrics"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
	"github.com/marketsideco/marketside-backend/pkg/types"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  quantity INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  payment_reference TEXT NOT NULL,
  gateway_payment_id TEXT,
  failure_reason TEXT,
  cancellation_reason TEXT,
  tracking_number TEXT,
  shipping_address TEXT,
  paid_at DATETIME,
  cancelled_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  title TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type capturingPublisher struct {
	events []outbox.DomainEvent
}

func (c *capturingPublisher) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type fakeGateway struct {
	params  []gateway.PaymentCreateParams
	payment *gateway.Payment
	err     error
}

func (f *fakeGateway) CreatePayment(_ context.Context, params gateway.PaymentCreateParams) (*gateway.Payment, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

func (f *fakeGateway) LocationID() string { return "LOC-TEST" }

func newCheckoutService(t *testing.T, conn *gorm.DB, payments paymentCreator) (Service, *capturingPublisher) {
	t.Helper()

	publisher := &capturingPublisher{}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		dbpkg.NewFromGorm(conn),
		listings.NewRepository(conn),
		ordersvc.NewRepository(conn),
		publisher,
		payments,
		enums.CurrencyNGN,
		nil,
		logg,
	)
	require.NoError(t, err)
	return svc, publisher
}

func seedListing(t *testing.T, conn *gorm.DB, vendorID uuid.UUID, price int64, qty int) *models.Listing {
	t.Helper()

	listing := &models.Listing{
		ID:       uuid.New(),
		VendorID: vendorID,
		Title:    "Listing " + uuid.NewString()[:8],
		Price:    decimal.NewFromInt(price),
		Currency: enums.CurrencyNGN,
		Quantity: qty,
		Active:   true,
	}
	require.NoError(t, conn.Create(listing).Error)
	return listing
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "12 Market Road",
		City:       "Lagos",
		State:      "Lagos",
		PostalCode: "100001",
		Country:    "NG",
	}
}

func TestExecuteSplitsCartPerVendor(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, publisher := newCheckoutService(t, conn, nil)
	ctx := context.Background()

	vendorA := uuid.New()
	vendorB := uuid.New()
	listingA1 := seedListing(t, conn, vendorA, 2500, 10)
	listingA2 := seedListing(t, conn, vendorA, 1000, 5)
	listingB := seedListing(t, conn, vendorB, 4000, 2)

	customer := uuid.New()
	result, err := svc.Execute(ctx, customer, Input{
		Items: []ItemInput{
			{ListingID: listingA1.ID, Quantity: 2},
			{ListingID: listingA2.ID, Quantity: 1},
			// Duplicate lines collapse into one.
			{ListingID: listingB.ID, Quantity: 1},
			{ListingID: listingB.ID, Quantity: 1},
		},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)

	require.Len(t, result.Orders, 2)
	assert.NotEmpty(t, result.PaymentReference)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(2*2500+1000+2*4000)))

	totals := map[uuid.UUID]decimal.Decimal{}
	for _, view := range result.Orders {
		assert.Equal(t, result.PaymentReference, view.PaymentReference)
		assert.Equal(t, enums.OrderStatusPending, view.Status)
		assert.Equal(t, customer, view.CustomerID)
		totals[view.VendorID] = view.TotalAmount

		// Each order total equals the sum of its line subtotals.
		sum := decimal.Zero
		for _, item := range view.Items {
			sum = sum.Add(item.Subtotal)
		}
		assert.True(t, view.TotalAmount.Equal(sum))
	}
	assert.True(t, totals[vendorA].Equal(decimal.NewFromInt(6000)))
	assert.True(t, totals[vendorB].Equal(decimal.NewFromInt(8000)))

	// A fresh struct per reload: reusing one would carry the previous
	// primary key into the next query's conditions.
	var reloadedA models.Listing
	require.NoError(t, conn.First(&reloadedA, "id = ?", listingA1.ID).Error)
	assert.Equal(t, 8, reloadedA.Quantity)
	var reloadedB models.Listing
	require.NoError(t, conn.First(&reloadedB, "id = ?", listingB.ID).Error)
	assert.Equal(t, 0, reloadedB.Quantity)

	require.Len(t, publisher.events, 2)
	for _, event := range publisher.events {
		assert.Equal(t, enums.EventOrderCreated, event.EventType)
	}
}

func TestExecuteInsufficientInventoryRollsBack(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, publisher := newCheckoutService(t, conn, nil)
	ctx := context.Background()

	vendor := uuid.New()
	plentiful := seedListing(t, conn, vendor, 1000, 10)
	scarce := seedListing(t, conn, vendor, 1000, 1)

	_, err := svc.Execute(ctx, uuid.New(), Input{
		Items: []ItemInput{
			{ListingID: plentiful.ID, Quantity: 3},
			{ListingID: scarce.ID, Quantity: 2},
		},
		ShippingAddress: testAddress(),
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	// All or nothing: the plentiful listing's decrement rolled back too.
	var reloadedPlentiful models.Listing
	require.NoError(t, conn.First(&reloadedPlentiful, "id = ?", plentiful.ID).Error)
	assert.Equal(t, 10, reloadedPlentiful.Quantity)
	var reloadedScarce models.Listing
	require.NoError(t, conn.First(&reloadedScarce, "id = ?", scarce.ID).Error)
	assert.Equal(t, 1, reloadedScarce.Quantity)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, publisher.events)
}

func TestExecuteRejectsEmptyCart(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutService(t, conn, nil)

	_, err := svc.Execute(context.Background(), uuid.New(), Input{ShippingAddress: testAddress()})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestExecuteNamesUnavailableListings(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	svc, _ := newCheckoutService(t, conn, nil)
	ctx := context.Background()

	inactive := seedListing(t, conn, uuid.New(), 1000, 5)
	require.NoError(t, conn.Model(&models.Listing{}).Where("id = ?", inactive.ID).Update("active", false).Error)
	ghost := uuid.New()

	_, err := svc.Execute(ctx, uuid.New(), Input{
		Items: []ItemInput{
			{ListingID: inactive.ID, Quantity: 1},
			{ListingID: ghost, Quantity: 1},
		},
		ShippingAddress: testAddress(),
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Len(t, details["missing"], 1)
	assert.Len(t, details["inactive"], 1)
}

func TestExecuteChargesGateway(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	fake := &fakeGateway{payment: &gateway.Payment{ID: "pay_123", Status: "COMPLETED"}}
	svc, _ := newCheckoutService(t, conn, fake)
	ctx := context.Background()

	listing := seedListing(t, conn, uuid.New(), 2500, 4)
	source := "cnon:card-token"
	result, err := svc.Execute(ctx, uuid.New(), Input{
		Items:           []ItemInput{{ListingID: listing.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentSourceID: &source,
	})
	require.NoError(t, err)

	require.NotNil(t, result.GatewayPaymentID)
	assert.Equal(t, "pay_123", *result.GatewayPaymentID)

	require.Len(t, fake.params, 1)
	assert.Equal(t, int64(500000), fake.params[0].AmountCents)
	assert.Equal(t, result.PaymentReference, fake.params[0].ReferenceID)
	assert.Equal(t, result.PaymentReference, fake.params[0].IdempotencyKey)
	assert.Equal(t, "LOC-TEST", fake.params[0].LocationID)

	var order models.Order
	require.NoError(t, conn.First(&order, "payment_reference = ?", result.PaymentReference).Error)
	require.NotNil(t, order.GatewayPaymentID)
	assert.Equal(t, "pay_123", *order.GatewayPaymentID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
}

func TestExecuteGatewayFailureKeepsOrdersPending(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	fake := &fakeGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "card declined")}
	svc, _ := newCheckoutService(t, conn, fake)
	ctx := context.Background()

	listing := seedListing(t, conn, uuid.New(), 1000, 4)
	source := "cnon:card-token"
	result, err := svc.Execute(ctx, uuid.New(), Input{
		Items:           []ItemInput{{ListingID: listing.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentSourceID: &source,
	})
	require.NoError(t, err)
	assert.Nil(t, result.GatewayPaymentID)

	var order models.Order
	require.NoError(t, conn.First(&order, "payment_reference = ?", result.PaymentReference).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.NotNil(t, order.FailureReason)
	assert.Contains(t, *order.FailureReason, "card declined")
}

func TestExecuteRecordsCheckoutMetrics(t *testing.T) {
	conn := setupCheckoutTestDB(t)
	reg := prometheus.NewRegistry()
	commerceMetrics := metrics.NewCommerceMetrics(reg)

	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		dbpkg.NewFromGorm(conn),
		listings.NewRepository(conn),
		ordersvc.NewRepository(conn),
		&capturingPublisher{},
		nil,
		enums.CurrencyNGN,
		commerceMetrics,
		logg,
	)
	require.NoError(t, err)
	ctx := context.Background()

	listingA := seedListing(t, conn, uuid.New(), 2500, 10)
	listingB := seedListing(t, conn, uuid.New(), 1000, 5)

	_, err = svc.Execute(ctx, uuid.New(), Input{
		Items: []ItemInput{
			{ListingID: listingA.ID, Quantity: 1},
			{ListingID: listingB.ID, Quantity: 1},
		},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)

	// The empty-cart rejection lands in the failure counter.
	_, err = svc.Execute(ctx, uuid.New(), Input{ShippingAddress: testAddress()})
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, float64(2), counterValue(t, mfs, "orders_created_total", "", ""))
	assert.Equal(t, float64(1), counterValue(t, mfs, "checkout_failures_total", "reason", "validation_error"))
	assert.Equal(t, uint64(1), histogramCount(t, mfs, "checkout_duration_seconds", "outcome", "success"))
	assert.Equal(t, uint64(1), histogramCount(t, mfs, "checkout_duration_seconds", "outcome", "failure"))
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label == "" || hasLabel(metric.GetLabel(), label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("counter %s{%s=%s} not found", name, label, value)
	return 0
}

func histogramCount(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) uint64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabel(metric.GetLabel(), label, value) {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	t.Fatalf("histogram %s{%s=%s} not found", name, label, value)
	return 0
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
