package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cardata-bridge/cdb/internal/config"
)

const testSecret = "unit-test-secret"

func hs256Verifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{Algorithm: "HS256", SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}
	return v
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestNewVerifierRejectsBadConfig(t *testing.T) {
	if _, err := NewVerifier(config.AuthConfig{Algorithm: "HS256"}); err == nil {
		t.Error("HS256 without secret should fail")
	}
	if _, err := NewVerifier(config.AuthConfig{Algorithm: "RS256", PublicKeyPEM: "not a pem"}); err == nil {
		t.Error("RS256 with bad PEM should fail")
	}
	if _, err := NewVerifier(config.AuthConfig{Algorithm: "ES384"}); err == nil {
		t.Error("unsupported algorithm should fail")
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := hs256Verifier(t)
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"sub":    "operator",
		"scopes": []string{ScopeRead, ScopeTelemetry},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := v.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if claims.Subject != "operator" {
		t.Errorf("subject = %q, want operator", claims.Subject)
	}
	if !claims.HasScope(ScopeRead) || !claims.HasScope(ScopeTelemetry) {
		t.Errorf("scopes missing: %v", claims.Scopes)
	}
	if claims.HasScope("admin") {
		t.Error("HasScope reported an absent scope")
	}
}

func TestVerifyRejects(t *testing.T) {
	v := hs256Verifier(t)

	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := v.Verify(expired); err == nil {
		t.Error("expired token accepted")
	}

	wrongKey := signToken(t, "other-secret", jwt.MapClaims{"sub": "operator"})
	if _, err := v.Verify(wrongKey); err == nil {
		t.Error("token with wrong key accepted")
	}

	if _, err := v.Verify("not.a.token"); err == nil {
		t.Error("malformed token accepted")
	}
}

func TestRequireAuth(t *testing.T) {
	m := NewMiddleware(hs256Verifier(t))

	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || claims.Subject != "operator" {
			t.Errorf("claims not propagated: %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})

	// No header.
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: status = %d, want 401", rec.Code)
	}

	// Malformed header.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Header.Set("Authorization", "Token abc")
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("malformed header: status = %d, want 401", rec.Code)
	}

	// Valid bearer token.
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":    "operator",
		"scopes": []string{ScopeRead},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestRequireScope(t *testing.T) {
	m := NewMiddleware(hs256Verifier(t))

	handler := m.RequireAuth(m.RequireScope(ScopeTelemetry)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":    "viewer",
		"scopes": []string{ScopeRead},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("missing scope: status = %d, want 403", rec.Code)
	}
}
