package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/orderdesk/internal/adapter/llm"
	"github.com/xiaot623/orderdesk/internal/domain"
	store "github.com/xiaot623/orderdesk/internal/repository"
	"github.com/xiaot623/orderdesk/internal/service"
	"github.com/xiaot623/orderdesk/internal/tools"
	"github.com/xiaot623/orderdesk/tests/helpers"
)

func newTestHandler(t *testing.T, steps ...llm.Step) (*echo.Echo, *store.SQLiteStore) {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)
	reg, err := tools.NewRegistry(tools.OrderTools(helpers.NewFakeMailbox(), helpers.NewFakeCalendar(), tools.Options{
		OrderSenders: []string{"orders@platform.example"},
		Location:     time.UTC,
	})...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	svc := service.New(st, llm.NewScriptedOracle(steps...), reg, nil, nil, service.Options{
		MaxIterations: 5,
		RunTimeout:    5 * time.Second,
		OracleTimeout: time.Second,
		ToolTimeout:   time.Second,
		OrderSenders:  []string{"orders@platform.example"},
		Location:      time.UTC,
	})

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/v1"))
	return e, st
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPostMessage(t *testing.T) {
	e, _ := newTestHandler(t,
		llm.CallTools(domain.ToolCall{ID: "c1", Name: tools.NameGetEvents,
			Arguments: json.RawMessage(`{"q":"","timeMin":"2024-05-03T00:00:00Z","timeMax":"2024-05-04T00:00:00Z"}`)}),
		llm.Answer("nothing scheduled"),
	)

	rec := do(e, http.MethodPost, "/v1/threads/t1/messages", `{"content":"what is on my calendar?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res domain.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Status != domain.RunStatusDone || res.Answer != "nothing scheduled" || res.Iterations != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec = do(e, http.MethodGet, "/v1/runs/"+res.RunID+"/tool_calls", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var calls domain.ListToolCallsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &calls); err != nil {
		t.Fatalf("decode tool calls: %v", err)
	}
	if len(calls.ToolCalls) != 1 || calls.ToolCalls[0].Result != tools.ResultNoEvents {
		t.Fatalf("unexpected tool calls: %+v", calls.ToolCalls)
	}

	rec = do(e, http.MethodGet, "/v1/runs/"+res.RunID+"/events?types=run_started,run_done", "")
	var events domain.ListEventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events.Events) != 2 || events.Events[0].Type != domain.EventTypeRunStarted {
		t.Fatalf("unexpected events: %+v", events.Events)
	}

	rec = do(e, http.MethodGet, "/v1/threads/t1/messages?limit=2", "")
	var page domain.ListMessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(page.Messages) != 2 || !page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestPostMessageValidation(t *testing.T) {
	e, _ := newTestHandler(t, llm.Answer("x"))

	rec := do(e, http.MethodPost, "/v1/threads/t1/messages", `{"content":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = do(e, http.MethodPost, "/v1/threads/t1/messages", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRunNotFound(t *testing.T) {
	e, _ := newTestHandler(t, llm.Answer("x"))

	for _, path := range []string{"/v1/runs/run_none", "/v1/runs/run_none/events", "/v1/runs/run_none/tool_calls"} {
		if rec := do(e, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if rec := do(e, http.MethodPost, "/v1/runs/run_none/cancel", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("cancel: expected 404, got %d", rec.Code)
	}
}

func TestCancelFinishedRun(t *testing.T) {
	e, st := newTestHandler(t, llm.Answer("x"))

	run := &domain.Run{RunID: "run_done", ThreadID: "t1", Status: domain.RunStatusDone, StartedAt: time.Now()}
	if err := st.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if rec := do(e, http.MethodPost, "/v1/runs/run_done/cancel", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestListTools(t *testing.T) {
	e, _ := newTestHandler(t)

	rec := do(e, http.MethodGet, "/v1/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.ListToolsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Tools) != 3 || resp.Tools[0].Name != tools.NameGetLatestGmail {
		t.Fatalf("unexpected tools: %+v", resp.Tools)
	}
}

func TestChatSocket(t *testing.T) {
	e, _ := newTestHandler(t, llm.Answer("hello from the desk"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?thread_id=cli"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(domain.Frame{Type: "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var frame domain.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if frame.Type != domain.FrameError || frame.Code != "invalid_message" {
		t.Fatalf("expected error frame, got %+v", frame)
	}

	if err := conn.WriteJSON(domain.Frame{Type: domain.FrameUserMessage, Content: "hi"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if frame.Type != domain.FrameAnswer || frame.Content != "hello from the desk" || frame.ThreadID != "cli" {
		t.Fatalf("unexpected answer frame: %+v", frame)
	}
	if frame.Status != domain.RunStatusDone || frame.RunID == "" {
		t.Fatalf("unexpected answer frame: %+v", frame)
	}
}

func TestStreamRunEvents(t *testing.T) {
	e, _ := newTestHandler(t, llm.Answer("done"))

	rec := do(e, http.MethodPost, "/v1/threads/t1/messages", `{"content":"hi"}`)
	var res domain.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = do(e, http.MethodGet, "/v1/runs/"+res.RunID+"/events/stream", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, typ := range []domain.EventType{domain.EventTypeRunStarted, domain.EventTypeOracleCallDone, domain.EventTypeRunDone} {
		if strings.Count(body, "event: "+string(typ)+"\n") != 1 {
			t.Fatalf("expected exactly one %s event in stream:\n%s", typ, body)
		}
	}

	if rec := do(e, http.MethodGet, "/v1/runs/run_none/events/stream", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
