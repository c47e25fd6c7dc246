package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/pharmakg/backend/internal/config"
	"github.com/pharmakg/backend/internal/server/middleware"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i any) error {
	return v.validator.Struct(i)
}

func newTestContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	req := httptest.NewRequest(http.MethodPost, "/api/nlq", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// Orchestrator left nil on purpose: requests rejected at binding must
	// never reach the pipeline.
	app := &middleware.App{Config: &config.Config{Env: "production"}}
	return &middleware.AppContext{Context: c, App: app}, rec
}

func TestPostNLQMissingQuestion(t *testing.T) {
	c, rec := newTestContext(`{}`)

	if err := PostNLQHandler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "question") {
		t.Fatalf("body = %s, want a message naming the missing field", rec.Body.String())
	}
}

func TestPostNLQInvalidMode(t *testing.T) {
	c, rec := newTestContext(`{"question": "阿司匹林", "mode": "chat"}`)

	if err := PostNLQHandler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostNLQStage1MissingQuestion(t *testing.T) {
	c, rec := newTestContext(`{"mode": "qa"}`)

	if err := PostNLQStage1Handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostNLQStage2MissingFields(t *testing.T) {
	c, rec := newTestContext(`{"question": "阿司匹林"}`)

	if err := PostNLQStage2Handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
