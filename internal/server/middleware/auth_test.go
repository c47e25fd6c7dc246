package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/pharmakg/backend/internal/config"
)

func newAuthTestContext(authHeader string, masterKey string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/labels", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	app := &App{Config: &config.Config{MasterAPIKey: masterKey}}
	return &AppContext{Context: c, App: app}, rec
}

func TestAdminAuthRejectsMissingHeader(t *testing.T) {
	c, rec := newAuthTestContext("", "secret")

	handler := AdminAuthMiddleware(func(c echo.Context) error {
		t.Fatal("next handler called without credentials")
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminAuthRejectsWrongKey(t *testing.T) {
	c, rec := newAuthTestContext("Bearer wrong", "secret")

	handler := AdminAuthMiddleware(func(c echo.Context) error {
		t.Fatal("next handler called with wrong key")
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminAuthRejectsWhenNoKeyConfigured(t *testing.T) {
	c, rec := newAuthTestContext("Bearer anything", "")

	handler := AdminAuthMiddleware(func(c echo.Context) error {
		t.Fatal("next handler called with admin surface disabled")
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminAuthAcceptsMasterKey(t *testing.T) {
	c, _ := newAuthTestContext("Bearer secret", "secret")

	called := false
	handler := AdminAuthMiddleware(func(c echo.Context) error {
		called = true
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("next handler not called with the master key")
	}
}
