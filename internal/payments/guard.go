package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marketsideco/marketside-backend/pkg/redis"
)

// WebhookGuard deduplicates gateway webhook deliveries by event id. The
// durable guards (status-guarded updates, unique revenue rows) still hold if
// redis loses a key; this just short-circuits obvious replays.
type WebhookGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewWebhookGuard(store redis.IdempotencyStore, ttl time.Duration) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &WebhookGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark returns true when the event was already processed, marking it
// otherwise.
func (g *WebhookGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	stored, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// Delete clears the mark so a failed handler can be retried.
func (g *WebhookGuard) Delete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *WebhookGuard) key(eventID string) (string, error) {
	trimmed := strings.TrimSpace(eventID)
	if trimmed == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("gateway-webhook", trimmed), nil
}
