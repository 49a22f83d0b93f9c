package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"dolmen/pos/internal/domain"
)

type authenticatorStub struct {
	users map[string]domain.Role
}

func (s authenticatorStub) Authenticate(_ context.Context, username string, credential string) (domain.Role, bool) {
	role, ok := s.users[strings.TrimSpace(username)]
	if !ok || credential != "open-sesame" {
		return "", false
	}
	return role, true
}

func newStubAuth(ttl time.Duration) *AuthManager {
	return NewAuthManager("0123456789abcdef0123456789abcdef", ttl, authenticatorStub{users: map[string]domain.Role{
		"admin": domain.RoleAdmin,
		"staff": domain.RoleStaff,
	}})
}

func TestLoginIssuesDistinctSessions(t *testing.T) {
	auth := newStubAuth(time.Hour)

	first, err := auth.Login(context.Background(), domain.LoginRequest{Username: " staff ", Password: "open-sesame"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	second, err := auth.Login(context.Background(), domain.LoginRequest{Username: "staff", Password: "open-sesame"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	a, err := auth.ParseToken(first.AccessToken)
	if err != nil {
		t.Fatalf("parse first: %v", err)
	}
	b, err := auth.ParseToken(second.AccessToken)
	if err != nil {
		t.Fatalf("parse second: %v", err)
	}
	if a.Username != "staff" || a.Role != domain.RoleStaff {
		t.Fatalf("unexpected actor %+v", a)
	}
	if a.SessionID == "" || a.SessionID == b.SessionID {
		t.Fatalf("expected distinct session ids, got %q and %q", a.SessionID, b.SessionID)
	}
}

func TestLoginRejectsBadCredential(t *testing.T) {
	auth := newStubAuth(time.Hour)

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"}); err != errInvalidCredentials {
		t.Fatalf("expected errInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "open-sesame"}); err != errInvalidCredentials {
		t.Fatalf("expected errInvalidCredentials for unknown user, got %v", err)
	}
}

func TestParseTokenRejectsForeignAndExpiredTokens(t *testing.T) {
	auth := newStubAuth(time.Hour)
	other := NewAuthManager("ffffffffffffffffffffffffffffffff", time.Hour, authenticatorStub{})

	token, err := other.sign("admin", domain.RoleAdmin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	expired, err := auth.sign("admin", domain.RoleAdmin, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	auth := newStubAuth(time.Hour)

	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "mallory",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.Role("owner"),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(auth.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestNewAuthManagerDefaultsTTL(t *testing.T) {
	if got := newStubAuth(0).TokenTTL(); got != 8*time.Hour {
		t.Fatalf("expected 8h default TTL, got %s", got)
	}
}
