package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/marketsideco/marketside-backend/api/responses"
	"github.com/marketsideco/marketside-backend/internal/payments"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
)

const signatureHeader = "X-Gateway-Signature"

type PaymentEventHandler interface {
	HandleGatewayEvent(ctx context.Context, event payments.GatewayEvent) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingClient interface {
	SigningSecret() string
}

// paymentWebhookEvent mirrors the gateway's webhook envelope for payment
// status changes.
type paymentWebhookEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Payment struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			ReferenceID   string `json:"reference_id"`
			FailureReason string `json:"failure_reason,omitempty"`
		} `json:"payment"`
	} `json:"data"`
}

// PaymentWebhook handles gateway payment status callbacks. Deliveries are
// HMAC-verified against the signing secret and deduplicated by event id.
func PaymentWebhook(svc PaymentEventHandler, client signingClient, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
			return
		}

		if !validateSignature(payload, client.SigningSecret(), sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		var event paymentWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			eventID = event.Data.Payment.ID
		}
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}

		status, terminal := gateway.EventStatus(event.Data.Payment.Status)
		if !terminal {
			// Pending charges never move orders; ack so the gateway stops retrying.
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		domainEvent := payments.GatewayEvent{
			Reference:        strings.TrimSpace(event.Data.Payment.ReferenceID),
			GatewayPaymentID: event.Data.Payment.ID,
			Status:           status,
			FailureReason:    event.Data.Payment.FailureReason,
			Source:           "webhook",
		}

		if err := svc.HandleGatewayEvent(ctx, domainEvent); err != nil {
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("gateway event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

func validateSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
