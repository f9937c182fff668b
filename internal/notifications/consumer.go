package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
	"github.com/marketsideco/marketside-backend/pkg/outbox/idempotency"
	"github.com/marketsideco/marketside-backend/pkg/outbox/payloads"
	"github.com/marketsideco/marketside-backend/pkg/outbox/registry"
)

const orderNotificationConsumer = "order-notifications"

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Consumer turns notification_requested events into stored notifications
// and best-effort emails.
type Consumer struct {
	repo         Repository
	users        userLoader
	email        EmailSender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds the order notification consumer. The email sender may
// be nil; notifications then stay in-app only.
func NewConsumer(
	repo Repository,
	users userLoader,
	email EmailSender,
	subscription *pubsub.Subscriber,
	manager *idempotency.Manager,
	logg *logger.Logger,
) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users loader required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventNotificationRequested, 1, func(raw json.RawMessage) (interface{}, error) {
		var payload payloads.NotificationRequestedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	})

	return &Consumer{
		repo:         repo,
		users:        users,
		email:        email,
		subscription: subscription,
		idempotency:  manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Info(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventNotificationRequested, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	payload, ok := decoded.(*payloads.NotificationRequestedEvent)
	if !ok {
		c.logg.Error(logCtx, "unexpected payload type", fmt.Errorf("%T", decoded))
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"user_id":  payload.UserID.String(),
		"order_id": payload.OrderID.String(),
		"type":     payload.Type,
	})

	if err := c.handlePayload(ctx, *payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handlePayload(ctx context.Context, payload payloads.NotificationRequestedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	if !payload.Type.IsValid() {
		return fmt.Errorf("unknown notification type %q", payload.Type)
	}

	link := payload.Link
	if link == "" {
		link = fmt.Sprintf("/orders/%s", payload.OrderID)
	}
	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.UserID,
		Type:    payload.Type,
		Channel: enums.NotificationChannelInApp,
		Title:   payload.Title,
		Message: payload.Message,
		Link:    &link,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "notification stored")

	// Email is a side channel. A delivery failure is logged and swallowed;
	// the stored notification already satisfied the event.
	c.sendEmail(ctx, notification, logCtx)
	return nil
}

func (c *Consumer) sendEmail(ctx context.Context, notification *models.Notification, logCtx context.Context) {
	if c.email == nil {
		return
	}
	user, err := c.users.FindByID(ctx, notification.UserID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "reason", err.Error()), "skipping email, user lookup failed")
		return
	}
	body := fmt.Sprintf("<p>%s</p><p><a href=%q>View order</a></p>", notification.Message, *notification.Link)
	if err := c.email.Send(ctx, user.Email, notification.Title, body); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "reason", err.Error()), "notification email failed")
		return
	}
	if err := c.repo.MarkSent(ctx, notification.ID, time.Now().UTC()); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "reason", err.Error()), "marking notification sent failed")
	}
}
