package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAITranslator speaks the OpenAI-compatible chat completions protocol,
// which most hosted and local model servers accept.
type OpenAITranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAITranslator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Candidate, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Candidate{}, &TranslationError{Reason: "question is empty"}
	}
	if req.Schema == nil {
		return Candidate{}, &TranslationError{Reason: "schema is required"}
	}

	payload := buildChatPayload(t.model, t.temperature, req)
	body, err := json.Marshal(payload)
	if err != nil {
		return Candidate{}, &TranslationError{Reason: "marshal chat payload", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Candidate{}, &TranslationError{Reason: "build chat request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Candidate{}, &TranslationError{Reason: "completion capability unreachable", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Candidate{}, &TranslationError{Reason: "read chat response body", Err: err}
	}
	if resp.StatusCode >= 400 {
		return Candidate{}, &TranslationError{Reason: fmt.Sprintf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Candidate{}, &TranslationError{Reason: "decode chat completion response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return Candidate{}, &TranslationError{Reason: "empty chat completion choices"}
	}

	sqlText := stripMarkdownSQL(parsed.Choices[0].Message.Content)
	if strings.TrimSpace(sqlText) == "" {
		return Candidate{}, &TranslationError{Reason: "model returned empty SQL"}
	}
	return Candidate{
		SQL:      sqlText,
		Attempt:  req.Attempt,
		Provider: "openai-compatible",
		Model:    t.model,
	}, nil
}

func buildChatPayload(model string, temperature float64, req Request) map[string]any {
	systemPrompt := "You convert natural language questions into a single read-only DuckDB SQL query. " +
		"DuckDB uses PostgreSQL-like SQL syntax. Only SELECT statements (optionally wrapped in WITH) are acceptable. " +
		"Return ONLY SQL. No markdown, no explanation."

	var b strings.Builder
	b.WriteString("Database schema:\n")
	b.WriteString(req.Schema.Describe())
	b.WriteString("\n")

	if len(req.Context) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, turn := range req.Context {
			if turn.TranslatedSQL == "" {
				continue
			}
			fmt.Fprintf(&b, "Q: %s\nSQL: %s\n", turn.Question, turn.TranslatedSQL)
		}
	}

	if len(req.PriorErrors) > 0 {
		b.WriteString("\nYour previous attempt was rejected. Fix ALL of these problems:\n")
		for _, problem := range req.PriorErrors {
			fmt.Fprintf(&b, "- %s\n", problem)
		}
	}

	fmt.Fprintf(&b, "\nQuestion:\n%s\n", strings.TrimSpace(req.Question))
	b.WriteString("\nRules:\n- Use only listed tables and columns.\n- Prefer explicit columns over *.\n- Output a single SQL query only.")

	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": b.String()},
		},
		"temperature": temperature,
	}
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
