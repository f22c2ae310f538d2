package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/bookswap/bookswap/internal/config"
	"github.com/bookswap/bookswap/internal/identity"
)

func testConfig(ttl time.Duration) config.Config {
	return config.Config{
		AppName:        "BookSwap",
		JWTSecret:      "test-secret",
		AccessTokenTTL: ttl,
	}
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(testConfig(time.Hour))

	token, err := svc.Issue(identity.User{ID: 42, Email: "a@b.com", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.AccessToken == "" || token.ExpiresIn != 3600 {
		t.Fatalf("unexpected token: %+v", token)
	}

	userID, err := svc.Verify(token.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected subject 42, got %d", userID)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc := NewService(testConfig(time.Hour))
	other := NewService(config.Config{AppName: "BookSwap", JWTSecret: "different", AccessTokenTTL: time.Hour})

	token, err := other.Issue(identity.User{ID: 7})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(token.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	if _, err := svc.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewService(testConfig(-time.Minute))

	token, err := svc.Issue(identity.User{ID: 7})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(token.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
