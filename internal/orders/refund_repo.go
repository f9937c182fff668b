package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"

	dbpkg "github.com/marketsideco/marketside-backend/pkg/db"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// RefundRepository persists refund requests.
type RefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository constructs a refund repo bound to the provided GORM DB.
func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *RefundRepository) WithTx(tx *gorm.DB) *RefundRepository {
	return &RefundRepository{db: tx}
}

// Create persists a new refund request. A partial unique index on open
// requests backstops the HasOpenForOrder check when two requests race: the
// losing insert surfaces as the same conflict the check would have raised.
func (r *RefundRepository) Create(ctx context.Context, req *models.RefundRequest) error {
	err := r.db.WithContext(ctx).Create(req).Error
	if dbpkg.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "a refund request is already open for this order")
	}
	return err
}

// FindByID loads a refund request.
func (r *RefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	var req models.RefundRequest
	err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// HasOpenForOrder reports whether an undecided or approved request already
// exists for the order. Rejected requests do not block a new attempt.
func (r *RefundRepository) HasOpenForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.RefundRequestStatus{
			enums.RefundRequestStatusPending,
			enums.RefundRequestStatusApproved,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Decide records an admin decision on a pending request. The status guard
// makes concurrent decisions lose with zero rows affected.
func (r *RefundRepository) Decide(ctx context.Context, id uuid.UUID, status enums.RefundRequestStatus, decidedBy uuid.UUID, note *string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", id, enums.RefundRequestStatusPending).
		Updates(map[string]any{
			"status":     status,
			"decided_by": decidedBy,
			"decided_at": now,
			"note":       note,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPending returns undecided refund requests, oldest first, for admin review.
func (r *RefundRepository) ListPending(ctx context.Context, limit int) ([]models.RefundRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.RefundRequestStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
