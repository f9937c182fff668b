package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// Notification stores durable notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Type      enums.NotificationType    `gorm:"type:text;not null"`
	Channel   enums.NotificationChannel `gorm:"type:text;not null;default:'in_app'"`
	Title     string                    `gorm:"type:text;not null"`
	Message   string                    `gorm:"type:text;not null"`
	Link      *string                   `gorm:"type:text"`
	ReadAt    *time.Time                `gorm:"type:timestamptz"`
	SentAt    *time.Time                `gorm:"type:timestamptz"`
	CreatedAt time.Time                 `gorm:"type:timestamptz;default:now()"`
}
