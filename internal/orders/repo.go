package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/pagination"
)

// Repository exposes order persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an orders repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create persists an order together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads an order and its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByPaymentReference loads every sibling order minted by one checkout.
func (r *Repository) FindByPaymentReference(ctx context.Context, reference string) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_reference = ?", reference).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment reference")
	}
	return rows, nil
}

// TransitionStatus moves an order from one status to another with a guarded
// update. The WHERE clause on the current status makes replays and racing
// writers lose cleanly: zero rows affected means the order already left the
// expected status. Extra columns (paid_at, cancellation_reason, tracking
// fields) ride along in updates.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetGatewayPaymentID stamps the gateway's payment id on every sibling
// order once the charge has been created.
func (r *Repository) SetGatewayPaymentID(ctx context.Context, reference, gatewayPaymentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_reference = ?", reference).
		Update("gateway_payment_id", gatewayPaymentID).Error
}

// RecordPaymentFailure stamps the gateway's failure reason on every still
// pending sibling order without leaving PENDING. The customer can retry.
func (r *Repository) RecordPaymentFailure(ctx context.Context, reference, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_reference = ? AND status = ?", reference, enums.OrderStatusPending).
		Update("failure_reason", reason).Error
}

// ListByCustomer returns a cursor page of the customer's orders, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.listBy(ctx, "customer_id = ?", customerID, params)
}

// ListByVendor returns a cursor page of the vendor's orders, newest first.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.listBy(ctx, "vendor_id = ?", vendorID, params)
}

func (r *Repository) listBy(ctx context.Context, cond string, arg any, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).
		Preload("Items").
		Where(cond, arg).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}
