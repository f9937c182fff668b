package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/internal/listings"
	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/metrics"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
	"github.com/marketsideco/marketside-backend/pkg/outbox/payloads"
	"github.com/marketsideco/marketside-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentCreator interface {
	CreatePayment(ctx context.Context, params gateway.PaymentCreateParams) (*gateway.Payment, error)
	LocationID() string
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	tx              txRunner
	listingsRepo    *listings.Repository
	ordersRepo      *orders.Repository
	outbox          outboxPublisher
	payments        paymentCreator
	defaultCurrency enums.Currency
	metrics         *metrics.CommerceMetrics
	logg            *logger.Logger
}

// NewService builds the checkout service. The payment creator may be nil;
// checkout then only mints the reference and the customer pays later.
func NewService(
	tx txRunner,
	listingsRepo *listings.Repository,
	ordersRepo *orders.Repository,
	publisher outboxPublisher,
	payments paymentCreator,
	defaultCurrency enums.Currency,
	commerceMetrics *metrics.CommerceMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if listingsRepo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !defaultCurrency.IsValid() {
		defaultCurrency = enums.CurrencyNGN
	}
	return &service{
		tx:              tx,
		listingsRepo:    listingsRepo,
		ordersRepo:      ordersRepo,
		outbox:          publisher,
		payments:        payments,
		defaultCurrency: defaultCurrency,
		metrics:         commerceMetrics,
		logg:            logg,
	}, nil
}

type cartLine struct {
	listing  models.Listing
	quantity int
}

// Execute splits the cart into one PENDING order per vendor, decrements
// inventory atomically with order creation, and mints the shared payment
// reference. Everything commits together: one unavailable item aborts the
// whole checkout with the offending listing named.
func (s *service) Execute(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error) {
	start := time.Now()
	result, err := s.execute(ctx, customerID, input)
	if err != nil {
		s.metrics.ObserveCheckout("failure", time.Since(start))
		s.metrics.IncCheckoutFailure(failureReason(err))
		return nil, err
	}
	s.metrics.ObserveCheckout("success", time.Since(start))
	for range result.Orders {
		s.metrics.IncOrderCreated()
	}
	return result, nil
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "internal"
}

func (s *service) execute(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	// Duplicate listing lines collapse into one with summed quantity.
	quantities := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"listingId": item.ListingID})
		}
		if _, seen := quantities[item.ListingID]; !seen {
			ids = append(ids, item.ListingID)
		}
		quantities[item.ListingID] += item.Quantity
	}

	rows, err := s.listingsRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Listing, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	var missing, inactive []uuid.UUID
	for _, id := range ids {
		listing, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case !listing.Active:
			inactive = append(inactive, id)
		}
	}
	if len(missing) > 0 || len(inactive) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart references unavailable listings").
			WithDetails(map[string]any{"missing": missing, "inactive": inactive})
	}

	currency := s.defaultCurrency
	for _, id := range ids {
		if byID[id].Currency != byID[ids[0]].Currency {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart mixes listing currencies")
		}
	}
	if byID[ids[0]].Currency.IsValid() {
		currency = byID[ids[0]].Currency
	}

	// Group lines per vendor, in a stable order.
	groups := map[uuid.UUID][]cartLine{}
	vendorIDs := make([]uuid.UUID, 0)
	for _, id := range ids {
		listing := byID[id]
		if _, seen := groups[listing.VendorID]; !seen {
			vendorIDs = append(vendorIDs, listing.VendorID)
		}
		groups[listing.VendorID] = append(groups[listing.VendorID], cartLine{listing: listing, quantity: quantities[id]})
	}
	sort.Slice(vendorIDs, func(i, j int) bool {
		return vendorIDs[i].String() < vendorIDs[j].String()
	})

	reference := NewPaymentReference()
	address := input.ShippingAddress
	created := make([]*models.Order, 0, len(vendorIDs))

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		listingsTx := s.listingsRepo.WithTx(tx)
		ordersTx := s.ordersRepo.WithTx(tx)

		var insufficient []uuid.UUID
		for _, id := range ids {
			ok, err := listingsTx.DecrementQuantity(ctx, id, quantities[id])
			if err != nil {
				return err
			}
			if !ok {
				insufficient = append(insufficient, id)
			}
		}
		if len(insufficient) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient inventory").
				WithDetails(map[string]any{"listingIds": insufficient})
		}

		for _, vendorID := range vendorIDs {
			order, err := buildOrder(customerID, vendorID, currency, reference, &address, groups[vendorID])
			if err != nil {
				return err
			}
			if err := ordersTx.Create(ctx, order); err != nil {
				return err
			}
			created = append(created, order)

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: customerID, Role: enums.UserRoleCustomer.String()},
				Data: payloads.OrderCreatedEvent{
					OrderID:          order.ID,
					CustomerID:       customerID,
					VendorID:         vendorID,
					PaymentReference: reference,
					TotalAmount:      order.TotalAmount,
					Currency:         currency,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	views := make([]orders.OrderView, 0, len(created))
	for _, order := range created {
		total = total.Add(order.TotalAmount)
		views = append(views, orders.ToOrderView(order))
	}

	result := &Result{
		PaymentReference: reference,
		TotalAmount:      total,
		Currency:         currency,
		Orders:           views,
	}

	logCtx := s.logg.WithReference(ctx, reference)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"orders": len(created),
		"total":  total.String(),
	}), "checkout committed")

	// The charge rides outside the transaction. A gateway failure leaves
	// the orders PENDING with the reason stamped; the customer retries
	// payment against the same reference.
	if s.payments != nil && input.PaymentSourceID != nil {
		payment, err := s.payments.CreatePayment(ctx, gateway.PaymentCreateParams{
			AmountCents:    total.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
			Currency:       currency.String(),
			LocationID:     s.payments.LocationID(),
			SourceID:       *input.PaymentSourceID,
			IdempotencyKey: reference,
			ReferenceID:    reference,
			Note:           fmt.Sprintf("marketside checkout %s", reference),
		})
		if err != nil {
			s.logg.Error(logCtx, "gateway charge failed after checkout", err)
			if recErr := s.ordersRepo.RecordPaymentFailure(ctx, reference, err.Error()); recErr != nil {
				s.logg.Error(logCtx, "recording payment failure", recErr)
			}
			return result, nil
		}
		if err := s.ordersRepo.SetGatewayPaymentID(ctx, reference, payment.ID); err != nil {
			s.logg.Error(logCtx, "storing gateway payment id", err)
		}
		result.GatewayPaymentID = &payment.ID
	}

	return result, nil
}

func buildOrder(customerID, vendorID uuid.UUID, currency enums.Currency, reference string, address *types.Address, lines []cartLine) (*models.Order, error) {
	orderID := uuid.New()
	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		subtotal := line.listing.Price.Mul(decimal.NewFromInt(int64(line.quantity)))
		total = total.Add(subtotal)
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ListingID: line.listing.ID,
			Title:     line.listing.Title,
			UnitPrice: line.listing.Price,
			Quantity:  line.quantity,
			Subtotal:  subtotal,
		})
	}
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	return &models.Order{
		ID:               orderID,
		CustomerID:       customerID,
		VendorID:         vendorID,
		Status:           enums.OrderStatusPending,
		TotalAmount:      total,
		Currency:         currency,
		PaymentReference: reference,
		ShippingAddress:  address,
		Items:            items,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// NewPaymentReference mints the reference shared by every sibling order of
// one checkout.
func NewPaymentReference() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "MKS-" + suffix[:16]
}
