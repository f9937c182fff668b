package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/internal/listings"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
	"github.com/marketsideco/marketside-backend/pkg/outbox/payloads"
	"github.com/marketsideco/marketside-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service governs order reads and every post-payment lifecycle move.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderPage, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*OrderPage, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, input CancelInput) (*OrderView, error)
	AdvanceStatus(ctx context.Context, actor Actor, orderID uuid.UUID, input AdvanceInput) (*OrderView, error)
	RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID, input RefundRequestInput) (*RefundView, error)
	DecideRefund(ctx context.Context, actor Actor, requestID uuid.UUID, input RefundDecisionInput) (*RefundView, error)
	ListPendingRefunds(ctx context.Context, actor Actor, limit int) ([]RefundView, error)
}

type service struct {
	tx           txRunner
	repo         *Repository
	refunds      *RefundRepository
	listingsRepo *listings.Repository
	outbox       outboxPublisher
	logg         *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(
	tx txRunner,
	repo *Repository,
	refunds *RefundRepository,
	listingsRepo *listings.Repository,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if refunds == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if listingsRepo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		repo:         repo,
		refunds:      refunds,
		listingsRepo: listingsRepo,
		outbox:       publisher,
		logg:         logg,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanActorView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
	}
	view := ToOrderView(order)
	return &view, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	rows, next, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, err
	}
	return toPage(rows, next), nil
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	rows, next, err := s.repo.ListByVendor(ctx, vendorID, params)
	if err != nil {
		return nil, err
	}
	return toPage(rows, next), nil
}

// Cancel voids a pre-shipment order and returns each item's quantity to its
// listing, the exact inverse of the decrement checkout applied. Restock and
// the status flip commit together or not at all.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, input CancelInput) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != actor.ID || actor.Role != enums.UserRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
	}
	if !CanActorCancel(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be cancelled", order.Status)).
			WithDetails(map[string]any{"status": order.Status})
	}

	from := order.Status
	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, enums.OrderStatusCancelled, map[string]any{
			"cancellation_reason": input.Reason,
			"cancelled_at":        now,
		})
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, retry")
		}

		listingsTx := s.listingsRepo.WithTx(tx)
		for _, item := range order.Items {
			if err := listingsTx.IncrementQuantity(ctx, item.ListingID, item.Quantity); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				FromStatus:  from,
				Restocked:   true,
				CancelledAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     from.String(),
	}), "order cancelled")

	return s.reload(ctx, order.ID)
}

// AdvanceStatus applies the vendor's single legal forward move. A tracking
// number is stored only when the move lands on SHIPPED.
func (s *service) AdvanceStatus(ctx context.Context, actor Actor, orderID uuid.UUID, input AdvanceInput) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != actor.ID || actor.Role != enums.UserRoleVendor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")
	}
	next, ok := NextVendorStatus(order.Status)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s has no forward move", order.Status)).
			WithDetails(map[string]any{"status": order.Status})
	}

	from := order.Status
	updates := map[string]any{}
	if next == enums.OrderStatusShipped && input.TrackingNumber != nil {
		updates["tracking_number"] = *input.TrackingNumber
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, next, updates)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, retry")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				From:       from,
				To:         next,
				ActorID:    actor.ID,
				ChangedAt:  time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, order.ID)
}

// RequestRefund opens a PENDING refund request for the full order amount.
// An order carries at most one open request at a time.
func (s *service) RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID, input RefundRequestInput) (*RefundView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
	}
	if !CanActorRequestRefund(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s is not refundable", order.Status)).
			WithDetails(map[string]any{"status": order.Status})
	}

	request := &models.RefundRequest{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     input.Reason,
		Amount:     order.TotalAmount,
		Status:     enums.RefundRequestStatusPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		refundsTx := s.refunds.WithTx(tx)
		open, err := refundsTx.HasOpenForOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeConflict, "a refund request is already open for this order")
		}
		if err := refundsTx.Create(ctx, request); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
			Data: payloads.RefundRequestedEvent{
				RefundRequestID: request.ID,
				OrderID:         order.ID,
				CustomerID:      order.CustomerID,
				Reason:          input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	view := ToRefundView(request)
	return &view, nil
}

// DecideRefund records the admin verdict. Approval also moves the order to
// REFUNDED; the order_refunded emission is deduplicated so a retried
// decision never produces a second event.
func (s *service) DecideRefund(ctx context.Context, actor Actor, requestID uuid.UUID, input RefundDecisionInput) (*RefundView, error) {
	if !CanActorDecideRefund(actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund decisions require admin role")
	}
	request, err := s.refunds.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.RefundRequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund request already decided")
	}
	order, err := s.repo.FindByID(ctx, request.OrderID)
	if err != nil {
		return nil, err
	}

	status := enums.RefundRequestStatusRejected
	if input.Approve {
		status = enums.RefundRequestStatusApproved
		if !CanTransition(order.Status, enums.OrderStatusRefunded) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s cannot be refunded", order.Status))
		}
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		decided, err := s.refunds.WithTx(tx).Decide(ctx, request.ID, status, actor.ID, input.Note)
		if err != nil {
			return err
		}
		if !decided {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund request already decided")
		}

		if input.Approve {
			moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusRefunded, map[string]any{
				"refunded_at": now,
			})
			if err != nil {
				return err
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, retry")
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderRefunded,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
				Data: payloads.OrderRefundedEvent{
					OrderID:         order.ID,
					CustomerID:      order.CustomerID,
					RefundRequestID: request.ID,
					Amount:          request.Amount,
					RefundedAt:      now,
				},
			}); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundDecided,
			AggregateType: enums.AggregateRefund,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()},
			Data: payloads.RefundDecidedEvent{
				RefundRequestID: request.ID,
				OrderID:         order.ID,
				CustomerID:      order.CustomerID,
				Status:          status,
				DecidedBy:       actor.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	decided, err := s.refunds.FindByID(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	view := ToRefundView(decided)
	return &view, nil
}

func (s *service) ListPendingRefunds(ctx context.Context, actor Actor, limit int) ([]RefundView, error) {
	if !CanActorDecideRefund(actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund review requires admin role")
	}
	rows, err := s.refunds.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]RefundView, 0, len(rows))
	for i := range rows {
		views = append(views, ToRefundView(&rows[i]))
	}
	return views, nil
}

func (s *service) reload(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	view := ToOrderView(order)
	return &view, nil
}

func toPage(rows []models.Order, next string) *OrderPage {
	views := make([]OrderView, 0, len(rows))
	for i := range rows {
		views = append(views, ToOrderView(&rows[i]))
	}
	return &OrderPage{Orders: views, NextCursor: next}
}
