package gateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func newLocalAuth(t *testing.T) *Auth {
	t.Helper()
	t.Setenv(envLocalAuthMode, "hs256")
	t.Setenv(envLocalAuthSecret, testSecret)
	return NewAuth(nil, "", "")
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthValidToken(t *testing.T) {
	a := newLocalAuth(t)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sub, err := a.UserIDFromToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("sub = %q, want user-1", sub)
	}
}

func TestAuthExpiredToken(t *testing.T) {
	a := newLocalAuth(t)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-2 * time.Hour).Unix(),
	})

	if _, err := a.UserIDFromToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestAuthMissingSubject(t *testing.T) {
	a := newLocalAuth(t)
	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.UserIDFromToken(token); err == nil {
		t.Fatal("token without sub accepted")
	}
}

func TestAuthHeaderForms(t *testing.T) {
	a := newLocalAuth(t)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.UserIDFromAuthHeader("Bearer " + token); err != nil {
		t.Fatalf("bearer header rejected: %v", err)
	}
	if _, err := a.UserIDFromAuthHeader(""); err == nil {
		t.Fatal("empty header accepted")
	}
	if _, err := a.UserIDFromAuthHeader(token); err == nil {
		t.Fatal("headerless token accepted")
	}
	if _, err := a.UserIDFromToken(""); err == nil {
		t.Fatal("empty token accepted")
	}
}
