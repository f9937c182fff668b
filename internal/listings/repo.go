package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/pagination"
)

// Repository exposes listing persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a listings repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByIDs loads listings by id without any state filtering.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// DecrementQuantity atomically reduces a listing's stock. The WHERE guard
// means a concurrent checkout that drained the stock first makes this a
// no-op; callers must treat zero rows affected as insufficient inventory.
func (r *Repository) DecrementQuantity(ctx context.Context, listingID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE listings
		    SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND active AND quantity >= ?`,
		qty, listingID, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementQuantity returns stock to a listing, used by cancellations.
func (r *Repository) IncrementQuantity(ctx context.Context, listingID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE listings
		    SET quantity = quantity + ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		qty, listingID,
	).Error
}

// ListByVendor returns a cursor page of the vendor's listings, newest first.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Listing, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Listing
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
