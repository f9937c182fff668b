package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	ordersvc "github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/internal/revenue"
	dbpkg "github.com/marketsideco/marketside-backend/pkg/db"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
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
		`CREATE TABLE platform_revenues (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  payment_reference TEXT NOT NULL,
  order_total NUMERIC NOT NULL,
  platform_fee NUMERIC NOT NULL,
  vendor_amount NUMERIC NOT NULL,
  commission_rate NUMERIC NOT NULL,
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

func (c *capturingPublisher) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func (c *capturingPublisher) countByType(eventType enums.OutboxEventType) int {
	n := 0
	for _, e := range c.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeFetcher struct {
	payment *gateway.Payment
	err     error
}

func (f *fakeFetcher) GetPayment(_ context.Context, _ string) (*gateway.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

func newPaymentsService(t *testing.T, conn *gorm.DB, fetcher paymentFetcher) (Service, *capturingPublisher) {
	t.Helper()

	publisher := &capturingPublisher{}
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	svc, err := NewService(
		dbpkg.NewFromGorm(conn),
		ordersvc.NewRepository(conn),
		revenue.NewRepository(conn),
		publisher,
		fetcher,
		"0.05",
		nil,
		logg,
	)
	require.NoError(t, err)
	return svc, publisher
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, reference string, total int64) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               uuid.New(),
		CustomerID:       uuid.New(),
		VendorID:         uuid.New(),
		Status:           status,
		TotalAmount:      decimal.NewFromInt(total),
		Currency:         enums.CurrencyNGN,
		PaymentReference: reference,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func TestHandleGatewayEventSuccessReconcilesSiblings(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc, publisher := newPaymentsService(t, conn, nil)
	ctx := context.Background()

	first := seedOrder(t, conn, enums.OrderStatusPending, "MKS-multi", 10000)
	second := seedOrder(t, conn, enums.OrderStatusPending, "MKS-multi", 6000)

	err := svc.HandleGatewayEvent(ctx, GatewayEvent{
		Reference:        "MKS-multi",
		GatewayPaymentID: "pay_abc",
		Status:           enums.PaymentEventStatusSuccess,
		Source:           "webhook",
	})
	require.NoError(t, err)

	repo := ordersvc.NewRepository(conn)
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		order, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.OrderStatusPaid, order.Status)
		require.NotNil(t, order.PaidAt)
		require.NotNil(t, order.GatewayPaymentID)
		assert.Equal(t, "pay_abc", *order.GatewayPaymentID)
	}

	revRepo := revenue.NewRepository(conn)
	rev, err := revRepo.GetByOrderID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, rev.PlatformFee.Equal(decimal.NewFromInt(500)))
	assert.True(t, rev.VendorAmount.Equal(decimal.NewFromInt(9500)))
	assert.Equal(t, first.VendorID, rev.VendorID)
	assert.Equal(t, "MKS-multi", rev.PaymentReference)

	rev, err = revRepo.GetByOrderID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, rev.PlatformFee.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, 2, publisher.countByType(enums.EventOrderPaid))
	// One buyer and one vendor notification per order.
	assert.Equal(t, 4, publisher.countByType(enums.EventNotificationRequested))
}

func TestHandleGatewayEventReplayIsNoOp(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc, publisher := newPaymentsService(t, conn, nil)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.OrderStatusPending, "MKS-replay", 10000)

	event := GatewayEvent{
		Reference: "MKS-replay",
		Status:    enums.PaymentEventStatusSuccess,
		Source:    "webhook",
	}
	require.NoError(t, svc.HandleGatewayEvent(ctx, event))
	emittedOnce := len(publisher.events)

	// Second and third deliveries of the same webhook.
	require.NoError(t, svc.HandleGatewayEvent(ctx, event))
	require.NoError(t, svc.HandleGatewayEvent(ctx, event))

	assert.Equal(t, emittedOnce, len(publisher.events))

	var revenueRows int64
	require.NoError(t, conn.Model(&models.PlatformRevenue{}).Where("order_id = ?", order.ID).Count(&revenueRows).Error)
	assert.Equal(t, int64(1), revenueRows)

	reloaded, err := ordersvc.NewRepository(conn).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestHandleGatewayEventSkipsNonPendingSiblings(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc, publisher := newPaymentsService(t, conn, nil)
	ctx := context.Background()

	pending := seedOrder(t, conn, enums.OrderStatusPending, "MKS-mixed", 5000)
	cancelled := seedOrder(t, conn, enums.OrderStatusCancelled, "MKS-mixed", 3000)

	err := svc.HandleGatewayEvent(ctx, GatewayEvent{
		Reference: "MKS-mixed",
		Status:    enums.PaymentEventStatusSuccess,
		Source:    "webhook",
	})
	require.NoError(t, err)

	repo := ordersvc.NewRepository(conn)
	reloaded, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)

	reloaded, err = repo.FindByID(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)

	assert.Equal(t, 1, publisher.countByType(enums.EventOrderPaid))

	_, err = revenue.NewRepository(conn).GetByOrderID(ctx, cancelled.ID)
	require.Error(t, err)
}

func TestHandleGatewayEventFailureKeepsPending(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc, publisher := newPaymentsService(t, conn, nil)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.OrderStatusPending, "MKS-fail", 5000)

	err := svc.HandleGatewayEvent(ctx, GatewayEvent{
		Reference:     "MKS-fail",
		Status:        enums.PaymentEventStatusFailed,
		FailureReason: "insufficient funds",
		Source:        "webhook",
	})
	require.NoError(t, err)

	reloaded, err := ordersvc.NewRepository(conn).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, reloaded.Status)
	require.NotNil(t, reloaded.FailureReason)
	assert.Equal(t, "insufficient funds", *reloaded.FailureReason)

	assert.Equal(t, 1, publisher.countByType(enums.EventPaymentFailed))
	assert.Equal(t, 0, publisher.countByType(enums.EventOrderPaid))
}

func TestVerifyPaymentPollsGateway(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	fetcher := &fakeFetcher{payment: &gateway.Payment{ID: "pay_verify", Status: "COMPLETED"}}
	svc, _ := newPaymentsService(t, conn, fetcher)
	ctx := context.Background()

	order := seedOrder(t, conn, enums.OrderStatusPending, "MKS-verify", 4000)
	gatewayID := "pay_verify"
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("gateway_payment_id", gatewayID).Error)

	owner := ordersvc.Actor{ID: order.CustomerID, Role: enums.UserRoleCustomer}
	views, err := svc.VerifyPayment(ctx, owner, "MKS-verify")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, enums.OrderStatusPaid, views[0].Status)
}

func TestVerifyPaymentWithoutChargeLeavesPending(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc, _ := newPaymentsService(t, conn, &fakeFetcher{})
	ctx := context.Background()

	order := seedOrder(t, conn, enums.OrderStatusPending, "MKS-nocharge", 4000)

	owner := ordersvc.Actor{ID: order.CustomerID, Role: enums.UserRoleCustomer}
	views, err := svc.VerifyPayment(ctx, owner, "MKS-nocharge")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, enums.OrderStatusPending, views[0].Status)
}

func TestVerifyPaymentHidesOtherCustomersOrders(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	svc, _ := newPaymentsService(t, conn, &fakeFetcher{})
	ctx := context.Background()

	order := seedOrder(t, conn, enums.OrderStatusPending, "MKS-private", 4000)

	// Another authenticated customer knows the reference but not the orders.
	stranger := ordersvc.Actor{ID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err := svc.VerifyPayment(ctx, stranger, "MKS-private")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	// The sibling's vendor does not see the buyer's view either.
	vendor := ordersvc.Actor{ID: order.VendorID, Role: enums.UserRoleVendor}
	_, err = svc.VerifyPayment(ctx, vendor, "MKS-private")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	// Admins reconcile on behalf of support tickets.
	admin := ordersvc.Actor{ID: uuid.New(), Role: enums.UserRoleAdmin}
	views, err := svc.VerifyPayment(ctx, admin, "MKS-private")
	require.NoError(t, err)
	require.Len(t, views, 1)

	_, err = svc.VerifyPayment(ctx, admin, "MKS-unknown")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestNewServiceRejectsBadRate(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})

	_, err := NewService(
		dbpkg.NewFromGorm(conn),
		ordersvc.NewRepository(conn),
		revenue.NewRepository(conn),
		&capturingPublisher{},
		nil,
		"1.5",
		nil,
		logg,
	)
	require.Error(t, err)
}
