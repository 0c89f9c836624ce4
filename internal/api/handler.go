package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablechat/tablechat/internal/audit"
	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/history"
	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// ChatService is the turn pipeline surface the handlers drive.
type ChatService interface {
	SubmitTurn(ctx context.Context, sessionID, question string) (chat.TurnResult, error)
	GetContext(sessionID string) []history.Turn
	ExportContext(sessionID string) history.Snapshot
	Summarize(sessionID string) history.Summary
	ClearContext(sessionID string)
}

// ExportUploader archives an exported session history to object storage.
type ExportUploader interface {
	Upload(ctx context.Context, snapshot history.Snapshot) (audit.UploadResult, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Chat              ChatService
	Catalog           *schema.Catalog
	Uploader          ExportUploader
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions/{session}/turns", func(w http.ResponseWriter, r *http.Request) {
		handleSubmitTurn(deps, w, r)
	})
	protected.HandleFunc("GET /v1/sessions/{session}/context", func(w http.ResponseWriter, r *http.Request) {
		handleGetContext(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/sessions/{session}/context", func(w http.ResponseWriter, r *http.Request) {
		handleClearContext(deps, w, r)
	})
	protected.HandleFunc("GET /v1/sessions/{session}/export", func(w http.ResponseWriter, r *http.Request) {
		handleExportContext(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions/{session}/export/upload", func(w http.ResponseWriter, r *http.Request) {
		handleUploadExport(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/schema", protectedHandler)
	mux.Handle("POST /v1/sessions/{session}/turns", protectedHandler)
	mux.Handle("GET /v1/sessions/{session}/context", protectedHandler)
	mux.Handle("DELETE /v1/sessions/{session}/context", protectedHandler)
	mux.Handle("GET /v1/sessions/{session}/export", protectedHandler)
	mux.Handle("POST /v1/sessions/{session}/export/upload", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
