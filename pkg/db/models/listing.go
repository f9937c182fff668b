package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// Listing is a vendor's sellable item with its live inventory count.
type Listing struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Description *string         `gorm:"column:description;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;type:text;not null;default:'NGN'"`
	Quantity    int             `gorm:"column:quantity;not null;default:0"`
	Active      bool            `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
