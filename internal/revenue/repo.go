package revenue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/marketsideco/marketside-backend/pkg/db"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
)

// Repository persists the platform's per-order fee split.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a revenue repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the fee split for an order. The unique index on order_id
// absorbs duplicate reconciliation attempts: the second insert reports
// created=false and the stored row stays untouched.
func (r *Repository) Create(ctx context.Context, row *models.PlatformRevenue) (bool, error) {
	err := r.db.WithContext(ctx).Create(row).Error
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetByOrderID loads the fee split recorded for an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PlatformRevenue, error) {
	var row models.PlatformRevenue
	err := r.db.WithContext(ctx).First(&row, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no revenue recorded for order")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Summary aggregates platform earnings over a window for admin reporting.
type Summary struct {
	Orders      int64           `json:"orders"`
	OrderTotal  decimal.Decimal `json:"orderTotal"`
	PlatformFee decimal.Decimal `json:"platformFee"`
}

// Summarize totals the fee splits recorded between from and to.
func (r *Repository) Summarize(ctx context.Context, from, to time.Time) (*Summary, error) {
	var out struct {
		Orders      int64
		OrderTotal  decimal.NullDecimal
		PlatformFee decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.PlatformRevenue{}).
		Select("COUNT(*) AS orders, SUM(order_total) AS order_total, SUM(platform_fee) AS platform_fee").
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	summary := &Summary{Orders: out.Orders}
	if out.OrderTotal.Valid {
		summary.OrderTotal = out.OrderTotal.Decimal
	}
	if out.PlatformFee.Valid {
		summary.PlatformFee = out.PlatformFee.Decimal
	}
	return summary, nil
}
