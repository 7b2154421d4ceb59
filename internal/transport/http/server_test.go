package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xiaot623/orderdesk/internal/adapter/llm"
	"github.com/xiaot623/orderdesk/internal/metrics"
	"github.com/xiaot623/orderdesk/internal/service"
	"github.com/xiaot623/orderdesk/internal/tools"
	"github.com/xiaot623/orderdesk/tests/helpers"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, secret string) http.Handler {
	t.Helper()
	reg, err := tools.NewRegistry(tools.OrderTools(helpers.NewFakeMailbox(), helpers.NewFakeCalendar(), tools.Options{})...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	m := metrics.New()
	svc := service.New(helpers.NewTestSQLiteStore(t), llm.NewScriptedOracle(llm.Answer("ok")), reg, nil, m, service.Options{})
	return NewServer(svc, m, secret)
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, "")

	if rec := get(h, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	rec := get(h, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if rec := get(h, "/v1/tools", ""); rec.Code != http.StatusOK {
		t.Fatalf("tools without auth: expected 200, got %d", rec.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	h := newTestServer(t, testSecret)

	if rec := get(h, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rec.Code)
	}
	if rec := get(h, "/v1/tools", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, err := IssueToken([]byte(testSecret), "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if rec := get(h, "/v1/tools", token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if rec := get(h, "/v1/tools?token="+token, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", rec.Code)
	}

	other, _ := IssueToken([]byte("other"), "operator", time.Hour)
	rec := get(h, "/v1/tools", other)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), ErrInvalidToken.Error()) {
		t.Fatalf("expected invalid token, got %d %s", rec.Code, rec.Body.String())
	}

	expired, _ := IssueToken([]byte(testSecret), "operator", -time.Minute)
	rec = get(h, "/v1/tools", expired)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), ErrExpiredToken.Error()) {
		t.Fatalf("expected expired token, got %d %s", rec.Code, rec.Body.String())
	}
}
