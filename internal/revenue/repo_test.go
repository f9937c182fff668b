package revenue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
)

func setupRevenueTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:revenue_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `CREATE TABLE platform_revenues (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  payment_reference TEXT NOT NULL,
  order_total NUMERIC NOT NULL,
  platform_fee NUMERIC NOT NULL,
  vendor_amount NUMERIC NOT NULL,
  commission_rate NUMERIC NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(ddl).Error)
	return conn
}

func TestCreateAbsorbsDuplicates(t *testing.T) {
	conn := setupRevenueTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	orderID := uuid.New()
	vendorID := uuid.New()
	row := &models.PlatformRevenue{
		ID:               uuid.New(),
		OrderID:          orderID,
		VendorID:         vendorID,
		PaymentReference: "MKS-a1b2c3d4e5f60718",
		OrderTotal:       decimal.NewFromInt(10000),
		PlatformFee:      decimal.NewFromInt(500),
		VendorAmount:     decimal.NewFromInt(9500),
		CommissionRate:   decimal.RequireFromString("0.05"),
	}
	created, err := repo.Create(ctx, row)
	require.NoError(t, err)
	assert.True(t, created)

	duplicate := *row
	duplicate.ID = uuid.New()
	duplicate.PlatformFee = decimal.NewFromInt(999)
	created, err = repo.Create(ctx, &duplicate)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, stored.PlatformFee.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, vendorID, stored.VendorID)
	assert.Equal(t, "MKS-a1b2c3d4e5f60718", stored.PaymentReference)
}

func TestSummarizeWindow(t *testing.T) {
	conn := setupRevenueTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, total := range []int64{10000, 6000} {
		fee, vendorAmount := Split(decimal.NewFromInt(total), decimal.RequireFromString("0.05"))
		row := &models.PlatformRevenue{
			ID:               uuid.New(),
			OrderID:          uuid.New(),
			VendorID:         uuid.New(),
			PaymentReference: "MKS-00000000000000aa",
			OrderTotal:       decimal.NewFromInt(total),
			PlatformFee:      fee,
			VendorAmount:     vendorAmount,
			CommissionRate:   decimal.RequireFromString("0.05"),
			CreatedAt:        now.Add(time.Duration(i) * time.Minute),
		}
		created, err := repo.Create(ctx, row)
		require.NoError(t, err)
		require.True(t, created)
	}

	summary, err := repo.Summarize(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Orders)
	assert.True(t, summary.OrderTotal.Equal(decimal.NewFromInt(16000)))
	assert.True(t, summary.PlatformFee.Equal(decimal.NewFromInt(800)))

	empty, err := repo.Summarize(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Orders)
	assert.True(t, empty.OrderTotal.IsZero())
}

func TestSplitSumsExactly(t *testing.T) {
	cases := []struct {
		total string
		rate  string
		fee   string
	}{
		{"10000.00", "0.05", "500.00"},
		{"99.99", "0.05", "5.00"},
		{"0.01", "0.05", "0.00"},
		{"333.33", "0.075", "25.00"},
	}
	for _, tc := range cases {
		total := decimal.RequireFromString(tc.total)
		fee, vendorAmount := Split(total, decimal.RequireFromString(tc.rate))
		assert.True(t, fee.Equal(decimal.RequireFromString(tc.fee)), "fee for %s", tc.total)
		assert.True(t, fee.Add(vendorAmount).Equal(total), "sum for %s", tc.total)
	}
}
