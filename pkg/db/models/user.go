package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// User represents the canonical identity entity. ExternalID carries the
// identity provider's subject claim, so webhook retries and repeated logins
// upsert the same row.
type User struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalID string         `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	Email      string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name       string         `gorm:"column:name;type:text;not null"`
	Role       enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
