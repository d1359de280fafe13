package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokens(t *testing.T, clock *fakeClock) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "test",
	}, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenServiceRequiresDistinctSecrets(t *testing.T) {
	if _, err := NewTokenService(TokenConfig{AccessSecret: "a"}); err == nil {
		t.Fatalf("expected error for missing refresh secret")
	}
	if _, err := NewTokenService(TokenConfig{AccessSecret: "same", RefreshSecret: "same"}); err == nil {
		t.Fatalf("expected error for shared secret")
	}
	svc, err := NewTokenService(TokenConfig{AccessSecret: "a", RefreshSecret: "b"})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if svc.AccessTTL() != defaultAccessTTL || svc.RefreshTTL() != defaultRefreshTTL {
		t.Fatalf("expected default ttls, got %v/%v", svc.AccessTTL(), svc.RefreshTTL())
	}
}

func TestAccessTokenLifecycle(t *testing.T) {
	clock := newFakeClock()
	svc := newTestTokens(t, clock)

	token, expiresAt, err := svc.IssueAccess("acc-1", Identity{Email: "ops@example.com", Name: "Ops", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !expiresAt.Equal(clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	claims, err := svc.Verify(token, AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "acc-1" || claims.Issuer != "test" {
		t.Fatalf("unexpected claims: %+v", claims.RegisteredClaims)
	}
	if claims.Identity == nil || claims.Identity.Role != RoleAdmin || claims.Identity.Email != "ops@example.com" {
		t.Fatalf("identity not carried: %+v", claims.Identity)
	}

	clock.Advance(15*time.Minute - time.Second)
	if _, err := svc.Verify(token, AccessToken); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := svc.Verify(token, AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at expiry, got %v", err)
	}
}

func TestVerifyRejectsWrongClass(t *testing.T) {
	clock := newFakeClock()
	svc := newTestTokens(t, clock)

	access, _, err := svc.IssueAccess("acc-1", Identity{Email: "ops@example.com", Role: RoleUser})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := svc.IssueRefresh("acc-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := svc.Verify(access, RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := svc.Verify(refresh, AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	claims, err := svc.Verify(refresh, RefreshToken)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if claims.Identity != nil {
		t.Fatalf("refresh token should carry only the subject")
	}
}

func TestVerifyRejectsTamperingAndForeignSigners(t *testing.T) {
	clock := newFakeClock()
	svc := newTestTokens(t, clock)

	token, _, err := svc.IssueAccess("acc-1", Identity{Email: "ops@example.com", Role: RoleUser})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := svc.Verify(strings.Join(parts, "."), AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected tampered token to be invalid, got %v", err)
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "test",
			IssuedAt:  jwt.NewNumericDate(clock.Now()),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign foreign token: %v", err)
	}
	if _, err := svc.Verify(signed, AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}

	if _, err := svc.Verify("", AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected empty token to be invalid, got %v", err)
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	clock := newFakeClock()
	svc := newTestTokens(t, clock)
	other, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "elsewhere",
	}, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _, err := other.IssueAccess("acc-1", Identity{Role: RoleUser})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.Verify(token, AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected foreign issuer to be rejected, got %v", err)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	svc := newTestTokens(t, newFakeClock())
	if _, _, err := svc.IssueRefresh("  "); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}
