package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/marketsideco/marketside-backend/pkg/auth"
	"github.com/marketsideco/marketside-backend/pkg/config"
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
)

type stubUserResolver struct {
	lastUpsert *models.User
	resolved   *models.User
	err        error
}

func (s *stubUserResolver) Upsert(_ context.Context, user *models.User) (*models.User, error) {
	s.lastUpsert = user
	if s.err != nil {
		return nil, s.err
	}
	if s.resolved != nil {
		return s.resolved, nil
	}
	resolved := *user
	resolved.IsActive = true
	return &resolved, nil
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, externalID string, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintIdentityToken(cfg, time.Now(), pkgauth.IdentityPayload{
		ExternalID: externalID,
		Email:      "user@example.com",
		Name:       "Test User",
		Role:       role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	handler := Auth(cfg, &stubUserResolver{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	handler := Auth(cfg, &stubUserResolver{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthResolvesUserAndSeedsContext(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	internalID := uuid.New()
	resolver := &stubUserResolver{
		resolved: &models.User{
			ID:         internalID,
			ExternalID: "auth0|abc",
			Role:       enums.UserRoleVendor,
			IsActive:   true,
		},
	}
	token := mintTestToken(t, cfg, "auth0|abc", enums.UserRoleVendor)

	var captured struct {
		user     string
		role     string
		external string
	}
	handler := Auth(cfg, resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.external = ExternalIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if captured.user != internalID.String() {
		t.Fatalf("expected internal user id %s got %s", internalID, captured.user)
	}
	if captured.role != string(enums.UserRoleVendor) {
		t.Fatalf("expected role vendor got %s", captured.role)
	}
	if captured.external != "auth0|abc" {
		t.Fatalf("expected external id preserved, got %s", captured.external)
	}
	if resolver.lastUpsert == nil || resolver.lastUpsert.ExternalID != "auth0|abc" {
		t.Fatal("expected upsert keyed on the provider subject")
	}
}

func TestAuthRejectsDisabledAccount(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	resolver := &stubUserResolver{
		resolved: &models.User{
			ID:         uuid.New(),
			ExternalID: "auth0|gone",
			Role:       enums.UserRoleCustomer,
			IsActive:   false,
		},
	}
	token := mintTestToken(t, cfg, "auth0|gone", enums.UserRoleCustomer)

	handler := Auth(cfg, resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
