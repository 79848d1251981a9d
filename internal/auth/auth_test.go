package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

func setAdminPassword(t *testing.T, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	t.Setenv("ADMIN_PASSWORD_HASH", string(hash))
}

func TestIssueToken_RoundTrip(t *testing.T) {
	setAdminPassword(t, "correct horse")

	token, err := IssueToken("correct horse")
	if err != nil {
		t.Fatalf("expected token, got %v", err)
	}
	if !validToken(token) {
		t.Fatal("issued token does not validate")
	}
}

func TestIssueToken_WrongPassword(t *testing.T) {
	setAdminPassword(t, "correct horse")

	if _, err := IssueToken("battery staple"); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("expected ErrInvalidCreds, got %v", err)
	}
}

func TestIssueToken_NoHashConfigured(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD_HASH", "")

	if _, err := IssueToken("anything"); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("expected ErrInvalidCreds, got %v", err)
	}
}

func TestValidToken_Garbage(t *testing.T) {
	if validToken("not.a.jwt") {
		t.Fatal("garbage token validated")
	}
}

func callAdmin(req *http.Request) int {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := AdminMiddleware(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)
	return rec.Code
}

func TestAdminMiddleware_RejectsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/backfill", nil)
	if code := callAdmin(req); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAdminMiddleware_BearerToken(t *testing.T) {
	setAdminPassword(t, "correct horse")
	token, err := IssueToken("correct horse")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/backfill", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	if code := callAdmin(req); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/backfill", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer forged")
	if code := callAdmin(req); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAdminMiddleware_WrongSharedSecret(t *testing.T) {
	// The fallback admin secret is random per process, so an arbitrary
	// header value can never match it.
	req := httptest.NewRequest(http.MethodPost, "/admin/backfill", nil)
	req.Header.Set("X-Admin-Secret", "guess")
	if code := callAdmin(req); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
