package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Upsert inserts the user or refreshes the mutable fields when the
// external id already exists. Safe to call on every authenticated request.
func (r *Repository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "name", "updated_at",
			}),
		}).
		Create(user).Error
	if err != nil {
		return nil, err
	}

	var persisted models.User
	if err := r.db.WithContext(ctx).Where("external_id = ?", user.ExternalID).First(&persisted).Error; err != nil {
		return nil, err
	}
	return &persisted, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByExternalID retrieves the user matching the identity provider subject.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads many users at once, keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.User{}, nil
	}
	var rows []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.User, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}
