package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "editor@example.com"
)

func newTestValidator(t *testing.T, clockNow time.Time, requiredRole string) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        DefaultSessionIssuer,
		CookieName:    testSessionCookieName,
		RequiredRole:  requiredRole,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func signSessionToken(t *testing.T, clockNow time.Time, roles []string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		UserRoles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(expiresIn)),
		},
	})
	signed, err := token.SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestSessionValidatorValidateToken(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow, "")

	claims, err := validator.ValidateToken(signSessionToken(t, clockNow, nil, time.Hour))
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
}

func TestSessionValidatorValidateTokenExpired(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow, "")

	_, err := validator.ValidateToken(signSessionToken(t, clockNow, nil, -30*time.Second))
	if !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestSessionValidatorRejectsForeignIssuer(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        "someone-else",
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	if _, err := validator.ValidateToken(signSessionToken(t, clockNow, nil, time.Hour)); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestSessionValidatorRequiredRole(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow, "editor")

	if _, err := validator.ValidateToken(signSessionToken(t, clockNow, []string{"viewer"}, time.Hour)); !errors.Is(err, ErrMissingSessionRole) {
		t.Fatalf("expected missing role error, got %v", err)
	}
	if _, err := validator.ValidateToken(signSessionToken(t, clockNow, []string{"viewer", "Editor"}, time.Hour)); err != nil {
		t.Fatalf("expected editor role to be accepted: %v", err)
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow, "")

	request := httptest.NewRequest(http.MethodGet, "/admin/projects", http.NoBody)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookieName,
		Value: signSessionToken(t, clockNow, nil, time.Hour),
	})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
}

func TestSessionValidatorValidateRequestAcceptsBearer(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow, "")

	request := httptest.NewRequest(http.MethodGet, "/admin/projects", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+signSessionToken(t, clockNow, nil, time.Hour))

	if _, err := validator.ValidateRequest(request); err != nil {
		t.Fatalf("validation failed: %v", err)
	}

	empty := httptest.NewRequest(http.MethodGet, "/admin/projects", http.NoBody)
	if _, err := validator.ValidateRequest(empty); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
