package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tablechat/tablechat/internal/history"
	"github.com/tablechat/tablechat/internal/schema"
)

func testSchema(t *testing.T) *schema.Catalog {
	t.Helper()
	catalog, err := schema.NewCatalog([]schema.Table{
		{Name: "stores", Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", Nullable: true},
			{Name: "name", Type: "VARCHAR", Nullable: true},
			{Name: "manager", Type: "VARCHAR", Nullable: true},
		}},
	})
	if err != nil {
		t.Fatalf("schema.NewCatalog() error = %v", err)
	}
	return catalog
}

func completionServer(t *testing.T, content string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if capture != nil {
			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			*capture = payload
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func newTestTranslator(t *testing.T, baseURL string) *OpenAITranslator {
	t.Helper()
	translator, err := NewOpenAITranslator(OpenAIConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	return translator
}

func TestTranslateStripsMarkdownFences(t *testing.T) {
	server := completionServer(t, "```sql\nSELECT name, manager FROM stores;\n```", nil)
	defer server.Close()

	candidate, err := newTestTranslator(t, server.URL).Translate(context.Background(), Request{
		Question: "Show me all stores and their managers",
		Schema:   testSchema(t),
		Attempt:  1,
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if candidate.SQL != "SELECT name, manager FROM stores;" {
		t.Fatalf("SQL = %q", candidate.SQL)
	}
	if candidate.Attempt != 1 {
		t.Fatalf("Attempt = %d", candidate.Attempt)
	}
	if candidate.Model != "test-model" {
		t.Fatalf("Model = %q", candidate.Model)
	}
}

func TestTranslatePromptCarriesSchemaContextAndPriorErrors(t *testing.T) {
	var captured map[string]any
	server := completionServer(t, "SELECT 1", &captured)
	defer server.Close()

	_, err := newTestTranslator(t, server.URL).Translate(context.Background(), Request{
		Question: "and their managers?",
		Schema:   testSchema(t),
		Context: []history.Turn{
			{Question: "show stores", TranslatedSQL: "SELECT name FROM stores"},
			{Question: "failed one", TranslatedSQL: ""},
		},
		PriorErrors: []string{`unknown table "inventoy"`},
		Attempt:     2,
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	userPrompt := messages[1].(map[string]any)["content"].(string)
	if !strings.Contains(userPrompt, "stores(id INTEGER, name VARCHAR, manager VARCHAR)") {
		t.Fatalf("prompt missing schema:\n%s", userPrompt)
	}
	if !strings.Contains(userPrompt, "SELECT name FROM stores") {
		t.Fatalf("prompt missing prior SQL:\n%s", userPrompt)
	}
	if strings.Contains(userPrompt, "failed one") {
		t.Fatalf("prompt should skip turns without SQL:\n%s", userPrompt)
	}
	if !strings.Contains(userPrompt, `unknown table "inventoy"`) {
		t.Fatalf("prompt missing prior errors:\n%s", userPrompt)
	}
}

func TestTranslateFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestTranslator(t, server.URL).Translate(context.Background(), Request{
		Question: "anything",
		Schema:   testSchema(t),
	})
	var translationErr *TranslationError
	if !errors.As(err, &translationErr) {
		t.Fatalf("error = %v, want TranslationError", err)
	}
}

func TestTranslateFailsOnEmptyCompletion(t *testing.T) {
	server := completionServer(t, "   ", nil)
	defer server.Close()

	_, err := newTestTranslator(t, server.URL).Translate(context.Background(), Request{
		Question: "anything",
		Schema:   testSchema(t),
	})
	var translationErr *TranslationError
	if !errors.As(err, &translationErr) {
		t.Fatalf("error = %v, want TranslationError", err)
	}
}

func TestTranslateMakesExactlyOneCompletionCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "SELECT 1"}},
			},
		})
	}))
	defer server.Close()

	_, err := newTestTranslator(t, server.URL).Translate(context.Background(), Request{
		Question: "anything",
		Schema:   testSchema(t),
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("completion calls = %d, want 1", calls)
	}
}

func TestNewOpenAITranslatorRequiresConfig(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAITranslator(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestStripMarkdownSQL(t *testing.T) {
	got := stripMarkdownSQL("```sql\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
	if got := stripMarkdownSQL("  SELECT 2  "); got != "SELECT 2" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
}
