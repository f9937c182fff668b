package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/marketsideco/marketside-backend/pkg/config"
	"github.com/marketsideco/marketside-backend/pkg/enums"
)

func TestMintAndParseIdentityToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "marketside",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()

	payload := IdentityPayload{
		ExternalID: "auth0|abc123",
		Email:      "buyer@example.com",
		Name:       "Ada Buyer",
		Role:       enums.UserRoleCustomer,
	}

	token, err := MintIdentityToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint identity token: %v", err)
	}

	claims, err := ParseIdentityToken(cfg, token)
	if err != nil {
		t.Fatalf("parse identity token: %v", err)
	}

	if claims.Subject != payload.ExternalID {
		t.Fatalf("expected subject %s, got %s", payload.ExternalID, claims.Subject)
	}
	if claims.Email != payload.Email {
		t.Fatalf("unexpected email %s", claims.Email)
	}
	if claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseIdentityTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "marketside",
		ExpirationMinutes: 10,
	}

	token, err := MintIdentityToken(cfg, time.Now(), IdentityPayload{
		ExternalID: "auth0|def456",
		Role:       enums.UserRoleVendor,
	})
	if err != nil {
		t.Fatalf("mint identity token: %v", err)
	}

	if _, err := ParseIdentityToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseIdentityTokenExpired(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "marketside",
		ExpirationMinutes: 15,
	}

	token, err := MintIdentityToken(cfg, time.Now().Add(-time.Hour), IdentityPayload{
		ExternalID: "auth0|ghi789",
		Role:       enums.UserRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint identity token: %v", err)
	}

	_, err = ParseIdentityToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintIdentityTokenRejectsBadPayload(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "marketside",
		ExpirationMinutes: 15,
	}

	if _, err := MintIdentityToken(cfg, time.Now(), IdentityPayload{Role: enums.UserRoleCustomer}); err == nil {
		t.Fatal("expected missing external id to fail")
	}
	if _, err := MintIdentityToken(cfg, time.Now(), IdentityPayload{ExternalID: "x", Role: "superuser"}); err == nil {
		t.Fatal("expected invalid role to fail")
	}
}
