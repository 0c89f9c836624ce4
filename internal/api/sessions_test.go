package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tablechat/tablechat/internal/audit"
	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/format"
	"github.com/tablechat/tablechat/internal/history"
	"github.com/tablechat/tablechat/internal/schema"
)

type fakeChatService struct {
	result        chat.TurnResult
	submitErr     error
	turns         []history.Turn
	cleared       []string
	lastSessionID string
	lastQuestion  string
}

func (f *fakeChatService) SubmitTurn(_ context.Context, sessionID, question string) (chat.TurnResult, error) {
	f.lastSessionID = sessionID
	f.lastQuestion = question
	return f.result, f.submitErr
}

func (f *fakeChatService) GetContext(string) []history.Turn {
	return f.turns
}

func (f *fakeChatService) ExportContext(sessionID string) history.Snapshot {
	return history.Snapshot{SessionID: sessionID, ExportedAt: time.Now().UTC(), Turns: f.turns}
}

func (f *fakeChatService) Summarize(string) history.Summary {
	return history.Summary{TotalTurns: len(f.turns), WindowSize: 10}
}

func (f *fakeChatService) ClearContext(sessionID string) {
	f.cleared = append(f.cleared, sessionID)
}

type fakeUploader struct {
	result audit.UploadResult
	err    error
	calls  int
}

func (f *fakeUploader) Upload(context.Context, history.Snapshot) (audit.UploadResult, error) {
	f.calls++
	return f.result, f.err
}

func retailCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "stores", Columns: []schema.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "name", Type: "VARCHAR"},
		}},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return catalog
}

func newTestHandler(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	cfg, err := config.Load("tablechat-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return NewHandler(cfg, deps)
}

func TestSubmitTurnReturnsResponse(t *testing.T) {
	service := &fakeChatService{result: chat.TurnResult{
		TurnID:   "turn-1",
		Status:   history.TurnSucceeded,
		SQL:      "SELECT name FROM stores LIMIT 1000",
		Attempts: 1,
		Response: &format.Response{Narrative: "Returned 2 rows."},
	}}
	h := newTestHandler(t, Dependencies{Chat: service})

	body := strings.NewReader(`{"question": "list stores"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/turns", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if service.lastSessionID != "s1" || service.lastQuestion != "list stores" {
		t.Fatalf("unexpected service call: %q %q", service.lastSessionID, service.lastQuestion)
	}

	var result chat.TurnResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TurnID != "turn-1" || result.Response == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitTurnRequiresQuestion(t *testing.T) {
	h := newTestHandler(t, Dependencies{Chat: &fakeChatService{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/turns", strings.NewReader(`{"question": "  "}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSubmitTurnRejectsUnknownFields(t *testing.T) {
	h := newTestHandler(t, Dependencies{Chat: &fakeChatService{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/turns", strings.NewReader(`{"question": "q", "sql": "SELECT 1"}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSubmitTurnMapsFailureKindsToStatusCodes(t *testing.T) {
	cases := []struct {
		kind chat.FailureKind
		want int
	}{
		{chat.FailureValidation, http.StatusUnprocessableEntity},
		{chat.FailureTranslation, http.StatusBadGateway},
		{chat.FailureExecution, http.StatusBadGateway},
		{chat.FailureExecutionTimeout, http.StatusGatewayTimeout},
	}

	for _, tc := range cases {
		service := &fakeChatService{result: chat.TurnResult{
			Status:  history.TurnRejected,
			Failure: &chat.FailureReport{Kind: tc.kind, Message: "failed"},
		}}
		h := newTestHandler(t, Dependencies{Chat: service})

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/turns", strings.NewReader(`{"question": "q"}`)))

		if rr.Code != tc.want {
			t.Fatalf("kind %s: status = %d, want %d", tc.kind, rr.Code, tc.want)
		}
	}
}

func TestGetContextReturnsTurnsAndSummary(t *testing.T) {
	service := &fakeChatService{turns: []history.Turn{{
		TurnID:   "turn-1",
		Question: "list stores",
		Status:   history.TurnSucceeded,
	}}}
	h := newTestHandler(t, Dependencies{Chat: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/context", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var response contextResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.SessionID != "s1" || len(response.Turns) != 1 {
		t.Fatalf("unexpected response: %+v", response)
	}
	if response.Summary.TotalTurns != 1 {
		t.Fatalf("unexpected summary: %+v", response.Summary)
	}
}

func TestClearContext(t *testing.T) {
	service := &fakeChatService{}
	h := newTestHandler(t, Dependencies{Chat: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1/context", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(service.cleared) != 1 || service.cleared[0] != "s1" {
		t.Fatalf("unexpected cleared sessions: %v", service.cleared)
	}
}

func TestExportContextSetsAttachmentHeader(t *testing.T) {
	service := &fakeChatService{turns: []history.Turn{{TurnID: "turn-1"}}}
	h := newTestHandler(t, Dependencies{Chat: service})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/export", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if disposition := rr.Header().Get("Content-Disposition"); !strings.Contains(disposition, "s1-context.json") {
		t.Fatalf("Content-Disposition = %q", disposition)
	}
	var snapshot history.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.SessionID != "s1" || len(snapshot.Turns) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestUploadExport(t *testing.T) {
	service := &fakeChatService{turns: []history.Turn{{TurnID: "turn-1"}}}
	uploader := &fakeUploader{result: audit.UploadResult{Key: "sessions/s1/date=2026-03-05/turns-1.parquet", RecordCount: 1}}
	h := newTestHandler(t, Dependencies{Chat: service, Uploader: uploader})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/export/upload", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if uploader.calls != 1 {
		t.Fatalf("uploader calls = %d", uploader.calls)
	}
}

func TestUploadExportRejectsEmptySession(t *testing.T) {
	h := newTestHandler(t, Dependencies{Chat: &fakeChatService{}, Uploader: &fakeUploader{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/export/upload", nil))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUploadExportWithoutUploaderIsNotImplemented(t *testing.T) {
	h := newTestHandler(t, Dependencies{Chat: &fakeChatService{turns: []history.Turn{{TurnID: "t"}}}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/export/upload", nil))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUploadExportPropagatesUploaderFailure(t *testing.T) {
	service := &fakeChatService{turns: []history.Turn{{TurnID: "turn-1"}}}
	uploader := &fakeUploader{err: fmt.Errorf("bucket missing")}
	h := newTestHandler(t, Dependencies{Chat: service, Uploader: uploader})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/export/upload", nil))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSchemaEndpointDescribesTables(t *testing.T) {
	h := newTestHandler(t, Dependencies{Catalog: retailCatalog(t)})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var response schemaResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Tables) != 1 || response.Tables[0].Name != "stores" {
		t.Fatalf("unexpected schema: %+v", response)
	}
	if len(response.Tables[0].Columns) != 2 {
		t.Fatalf("unexpected columns: %+v", response.Tables[0].Columns)
	}
}
