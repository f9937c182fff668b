package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/api/responses"
	pkgauth "github.com/marketsideco/marketside-backend/pkg/auth"
	"github.com/marketsideco/marketside-backend/pkg/config"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/logger"
)

// UserResolver turns the identity provider subject into the durable user row.
type UserResolver interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
}

// Auth validates a bearer token, resolves the caller's durable user row, and
// seeds the request context with the internal user id and role. Repeated
// logins upsert the same row keyed on the provider subject.
func Auth(cfg config.JWTConfig, users UserResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseIdentityToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			externalID := strings.TrimSpace(claims.Subject)
			if externalID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing subject"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role"))
				return
			}

			if users == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user resolver unavailable"))
				return
			}

			user, err := users.Upsert(r.Context(), &models.User{
				ID:         uuid.New(),
				ExternalID: externalID,
				Email:      claims.Email,
				Name:       claims.Name,
				Role:       claims.Role,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve user"))
				return
			}
			if !user.IsActive {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "account disabled"))
				return
			}

			role := user.Role
			if role == "" {
				role = enums.UserRoleCustomer
			}

			ctx := context.WithValue(r.Context(), ctxUserID, user.ID.String())
			ctx = context.WithValue(ctx, ctxRole, string(role))
			ctx = context.WithValue(ctx, ctxExternalID, externalID)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    user.ID.String(),
					"actor_role": string(role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
