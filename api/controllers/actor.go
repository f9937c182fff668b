package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/marketsideco/marketside-backend/api/middleware"
	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
)

// actorFromRequest rebuilds the authenticated principal from the values the
// auth middleware seeded into the request context.
func actorFromRequest(r *http.Request) (orders.Actor, error) {
	rawID := middleware.UserIDFromContext(r.Context())
	if rawID == "" {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return orders.Actor{ID: id, Role: role}, nil
}
