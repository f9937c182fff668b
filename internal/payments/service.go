package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/internal/revenue"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/metrics"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
	"github.com/marketsideco/marketside-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// GatewayEvent is a normalized payment outcome, whether it arrived by
// webhook or by an explicit verification poll.
type GatewayEvent struct {
	Reference        string
	GatewayPaymentID string
	Status           enums.PaymentEventStatus
	FailureReason    string
	Source           string
}

// Service reconciles gateway payment outcomes into order state.
type Service interface {
	HandleGatewayEvent(ctx context.Context, event GatewayEvent) error
	VerifyPayment(ctx context.Context, actor orders.Actor, reference string) ([]orders.OrderView, error)
}

type service struct {
	tx             txRunner
	ordersRepo     *orders.Repository
	revenueRepo    *revenue.Repository
	outbox         outboxPublisher
	gateway        paymentFetcher
	commissionRate decimal.Decimal
	metrics        *metrics.CommerceMetrics
	logg           *logger.Logger
}

// NewService builds the reconciliation service. The gateway fetcher may be
// nil when verification polling is disabled; webhook handling still works.
func NewService(
	tx txRunner,
	ordersRepo *orders.Repository,
	revenueRepo *revenue.Repository,
	publisher outboxPublisher,
	fetcher paymentFetcher,
	commissionRate string,
	commerceMetrics *metrics.CommerceMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if revenueRepo == nil {
		return nil, fmt.Errorf("revenue repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	rate, err := decimal.NewFromString(commissionRate)
	if err != nil {
		return nil, fmt.Errorf("parse commission rate %q: %w", commissionRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s out of range", rate)
	}
	return &service{
		tx:             tx,
		ordersRepo:     ordersRepo,
		revenueRepo:    revenueRepo,
		outbox:         publisher,
		gateway:        fetcher,
		commissionRate: rate,
		metrics:        commerceMetrics,
		logg:           logg,
	}, nil
}

// HandleGatewayEvent applies one payment outcome to every sibling order
// behind the reference. Replays are harmless: the status guard on the
// transition and the unique fee-split row make the second delivery a no-op.
func (s *service) HandleGatewayEvent(ctx context.Context, event GatewayEvent) error {
	if event.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if !event.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status")
	}

	logCtx := s.logg.WithReference(ctx, event.Reference)
	s.metrics.IncPaymentEvent(event.Status.String(), event.Source)

	siblings, err := s.ordersRepo.FindByPaymentReference(ctx, event.Reference)
	if err != nil {
		return err
	}

	if event.Status == enums.PaymentEventStatusFailed {
		return s.handleFailure(logCtx, siblings, event)
	}
	return s.handleSuccess(logCtx, siblings, event)
}

func (s *service) handleSuccess(ctx context.Context, siblings []models.Order, event GatewayEvent) error {
	paidAt := time.Now().UTC()
	transitioned := 0

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersTx := s.ordersRepo.WithTx(tx)
		revenueTx := s.revenueRepo.WithTx(tx)

		for i := range siblings {
			order := &siblings[i]
			if order.Status != enums.OrderStatusPending {
				// Already reconciled or cancelled before payment landed.
				continue
			}

			updates := map[string]any{"paid_at": paidAt, "failure_reason": nil}
			if event.GatewayPaymentID != "" {
				updates["gateway_payment_id"] = event.GatewayPaymentID
			}
			moved, err := ordersTx.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPaid, updates)
			if err != nil {
				return err
			}
			if !moved {
				continue
			}
			transitioned++

			fee, vendorAmount := revenue.Split(order.TotalAmount, s.commissionRate)
			if _, err := revenueTx.Create(ctx, &models.PlatformRevenue{
				ID:               uuid.New(),
				OrderID:          order.ID,
				VendorID:         order.VendorID,
				PaymentReference: order.PaymentReference,
				OrderTotal:       order.TotalAmount,
				PlatformFee:      fee,
				VendorAmount:     vendorAmount,
				CommissionRate:   s.commissionRate,
			}); err != nil {
				return err
			}

			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderPaidEvent{
					OrderID:          order.ID,
					CustomerID:       order.CustomerID,
					PaymentReference: order.PaymentReference,
					VendorID:         order.VendorID,
					TotalAmount:      order.TotalAmount,
					PlatformFee:      fee,
					VendorAmount:     vendorAmount,
					PaidAt:           paidAt,
				},
			}); err != nil {
				return err
			}

			if err := s.emitPaidNotifications(ctx, tx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if transitioned > 0 {
		s.logg.Info(s.logg.WithField(ctx, "orders_paid", transitioned), "payment reconciled")
		for i := 0; i < transitioned; i++ {
			s.metrics.IncStatusChange(enums.OrderStatusPaid.String())
		}
	} else {
		s.logg.Info(ctx, "payment event replay ignored")
	}
	return nil
}

func (s *service) handleFailure(ctx context.Context, siblings []models.Order, event GatewayEvent) error {
	reason := event.FailureReason
	if reason == "" {
		reason = "payment failed"
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersTx := s.ordersRepo.WithTx(tx)
		if err := ordersTx.RecordPaymentFailure(ctx, event.Reference, reason); err != nil {
			return err
		}
		for i := range siblings {
			order := &siblings[i]
			if order.Status != enums.OrderStatusPending {
				continue
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregatePayment,
				AggregateID:   order.ID,
				Data: payloads.PaymentFailedEvent{
					OrderID:          order.ID,
					CustomerID:       order.CustomerID,
					PaymentReference: order.PaymentReference,
					Reason:           reason,
					FailedAt:         time.Now().UTC(),
				},
			}); err != nil {
				return err
			}
		}
		s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "payment failed, orders stay pending")
		return nil
	})
}

// emitPaidNotifications queues the buyer and vendor alerts for one paid
// order. They ride the same transaction as the status flip but delivery is
// asynchronous, so a notification problem can never undo the payment.
func (s *service) emitPaidNotifications(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	notifications := []payloads.NotificationRequestedEvent{
		{
			UserID:  order.CustomerID,
			OrderID: order.ID,
			Type:    enums.NotificationTypeOrderConfirmation,
			Title:   "Payment confirmed",
			Message: fmt.Sprintf("Your payment for order %s was received.", order.PaymentReference),
			Link:    fmt.Sprintf("/orders/%s", order.ID),
		},
		{
			UserID:  order.VendorID,
			OrderID: order.ID,
			Type:    enums.NotificationTypeVendorNewOrder,
			Title:   "New paid order",
			Message: fmt.Sprintf("Order %s is paid and ready to fulfil.", order.PaymentReference),
			Link:    fmt.Sprintf("/vendor/orders/%s", order.ID),
		},
	}
	for _, n := range notifications {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   n.OrderID,
			Data:          n,
		}); err != nil {
			return err
		}
	}
	return nil
}

// VerifyPayment polls the gateway for the charge behind a reference and
// feeds the outcome through the same reconciliation path the webhook uses.
// Sibling orders carry the shipping address, so only the customer who
// checked out, or an admin, may look a reference up.
func (s *service) VerifyPayment(ctx context.Context, actor orders.Actor, reference string) ([]orders.OrderView, error) {
	siblings, err := s.ordersRepo.FindByPaymentReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if len(siblings) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment reference")
	}
	if actor.Role != enums.UserRoleAdmin && siblings[0].CustomerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment reference belongs to another account")
	}

	pending := false
	var gatewayPaymentID string
	for i := range siblings {
		if siblings[i].Status == enums.OrderStatusPending {
			pending = true
		}
		if siblings[i].GatewayPaymentID != nil {
			gatewayPaymentID = *siblings[i].GatewayPaymentID
		}
	}

	if pending && gatewayPaymentID != "" && s.gateway != nil {
		payment, err := s.gateway.GetPayment(ctx, gatewayPaymentID)
		if err != nil {
			return nil, err
		}
		if status, terminal := gateway.EventStatus(payment.Status); terminal {
			event := GatewayEvent{
				Reference:        reference,
				GatewayPaymentID: payment.ID,
				Status:           status,
				Source:           "verify",
			}
			if status == enums.PaymentEventStatusFailed {
				event.FailureReason = fmt.Sprintf("gateway reported %s", payment.Status)
			}
			if err := s.HandleGatewayEvent(ctx, event); err != nil {
				return nil, err
			}
			siblings, err = s.ordersRepo.FindByPaymentReference(ctx, reference)
			if err != nil {
				return nil, err
			}
		}
	}

	views := make([]orders.OrderView, 0, len(siblings))
	for i := range siblings {
		views = append(views, orders.ToOrderView(&siblings[i]))
	}
	return views, nil
}
