package notifications

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/outbox/payloads"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT 'in_app',
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  sent_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(ddl).Error)
	return conn
}

type stubUserLoader struct {
	user *models.User
	err  error
}

func (s *stubUserLoader) FindByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type capturingEmail struct {
	to      []string
	failing bool
}

func (c *capturingEmail) Send(_ context.Context, to, _, _ string) error {
	if c.failing {
		return errors.New("smtp unavailable")
	}
	c.to = append(c.to, to)
	return nil
}

func newConsumerForTest(conn *gorm.DB, users userLoader, email EmailSender) *Consumer {
	logg := logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
	return &Consumer{
		repo:  NewRepository(conn),
		users: users,
		email: email,
		logg:  logg,
	}
}

func TestHandlePayloadStoresAndEmails(t *testing.T) {
	conn := setupNotificationsTestDB(t)
	userID := uuid.New()
	email := &capturingEmail{}
	consumer := newConsumerForTest(conn, &stubUserLoader{user: &models.User{ID: userID, Email: "buyer@example.com"}}, email)
	ctx := context.Background()

	payload := payloads.NotificationRequestedEvent{
		UserID:  userID,
		OrderID: uuid.New(),
		Type:    enums.NotificationTypeOrderConfirmation,
		Title:   "Payment confirmed",
		Message: "Your payment was received.",
	}
	require.NoError(t, consumer.handlePayload(ctx, payload, ctx))

	var stored models.Notification
	require.NoError(t, conn.First(&stored, "user_id = ?", userID).Error)
	assert.Equal(t, enums.NotificationTypeOrderConfirmation, stored.Type)
	assert.Equal(t, enums.NotificationChannelInApp, stored.Channel)
	require.NotNil(t, stored.SentAt)
	assert.Equal(t, []string{"buyer@example.com"}, email.to)
}

func TestHandlePayloadEmailFailureIsSwallowed(t *testing.T) {
	conn := setupNotificationsTestDB(t)
	userID := uuid.New()
	consumer := newConsumerForTest(conn, &stubUserLoader{user: &models.User{ID: userID, Email: "buyer@example.com"}}, &capturingEmail{failing: true})
	ctx := context.Background()

	payload := payloads.NotificationRequestedEvent{
		UserID:  userID,
		OrderID: uuid.New(),
		Type:    enums.NotificationTypeVendorNewOrder,
		Title:   "New paid order",
		Message: "Order is ready to fulfil.",
	}
	require.NoError(t, consumer.handlePayload(ctx, payload, ctx))

	var stored models.Notification
	require.NoError(t, conn.First(&stored, "user_id = ?", userID).Error)
	assert.Nil(t, stored.SentAt)
}

func TestHandlePayloadWithoutEmailSender(t *testing.T) {
	conn := setupNotificationsTestDB(t)
	userID := uuid.New()
	consumer := newConsumerForTest(conn, &stubUserLoader{err: errors.New("unused")}, nil)
	ctx := context.Background()

	payload := payloads.NotificationRequestedEvent{
		UserID:  userID,
		OrderID: uuid.New(),
		Type:    enums.NotificationTypePaymentFailed,
		Title:   "Payment failed",
		Message: "Your payment did not go through.",
	}
	require.NoError(t, consumer.handlePayload(ctx, payload, ctx))

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandlePayloadRejectsMissingUser(t *testing.T) {
	conn := setupNotificationsTestDB(t)
	consumer := newConsumerForTest(conn, &stubUserLoader{}, nil)
	ctx := context.Background()

	err := consumer.handlePayload(ctx, payloads.NotificationRequestedEvent{
		OrderID: uuid.New(),
		Type:    enums.NotificationTypeOrderConfirmation,
	}, ctx)
	require.Error(t, err)
}
