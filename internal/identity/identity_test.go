package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestMiddleware(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := FromContext(r.Context())
		if !ok {
			t.Error("expected customer in context")
		}
		if c.ID != "user-1" || c.Email != "ann@example.com" {
			t.Errorf("unexpected customer: %+v", c)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("forwards customer headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req.Header.Set(HeaderUserEmail, "ann@example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rec.Code)
		}
	})

	t.Run("rejects anonymous requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})
}

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret")
	valid := Claims{
		Email: "ann@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	t.Run("accepts a valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", valid))

		c, err := v.VerifyRequest(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ID != "user-1" || c.Email != "ann@example.com" {
			t.Errorf("unexpected customer: %+v", c)
		}
	})

	t.Run("accepts the access token cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: signToken(t, "secret", valid)})

		if _, err := v.VerifyRequest(req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		if _, err := v.Verify(signToken(t, "other", valid)); err == nil {
			t.Error("expected error for foreign signature")
		}
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		expired := valid
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		if _, err := v.Verify(signToken(t, "secret", expired)); err == nil {
			t.Error("expected error for expired token")
		}
	})

	t.Run("rejects missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if _, err := v.VerifyRequest(req); err != ErrMissingToken {
			t.Errorf("expected ErrMissingToken, got %v", err)
		}
	})
}
