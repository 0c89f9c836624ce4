package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tablechat/tablechat/internal/auth"
	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/history"
)

type turnRequest struct {
	Question string `json:"question"`
}

type contextResponse struct {
	SessionID string          `json:"session_id"`
	Turns     []history.Turn  `json:"turns"`
	Summary   history.Summary `json:"summary"`
}

func handleSubmitTurn(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	sessionID, err := sessionFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request turnRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid turn request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	result, err := deps.Chat.SubmitTurn(r.Context(), sessionID, request.Question)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "TURN_FAILED", err.Error(), false, nil)
		return
	}
	writeJSON(w, turnStatusCode(result), result)
}

// turnStatusCode maps a turn outcome to an HTTP status. Failed turns are
// valid responses, not transport errors, but the status still signals the
// class of failure to clients.
func turnStatusCode(result chat.TurnResult) int {
	if result.Failure == nil {
		return http.StatusOK
	}
	switch result.Failure.Kind {
	case chat.FailureValidation:
		return http.StatusUnprocessableEntity
	case chat.FailureTranslation:
		return http.StatusBadGateway
	case chat.FailureExecutionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func handleGetContext(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	sessionID, err := sessionFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	writeJSON(w, http.StatusOK, contextResponse{
		SessionID: sessionID,
		Turns:     deps.Chat.GetContext(sessionID),
		Summary:   deps.Chat.Summarize(sessionID),
	})
}

func handleClearContext(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	sessionID, err := sessionFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	deps.Chat.ClearContext(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func handleExportContext(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	sessionID, err := sessionFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	snapshot := deps.Chat.ExportContext(sessionID)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sessionID+"-context.json"))
	writeJSON(w, http.StatusOK, snapshot)
}

func handleUploadExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	if deps.Uploader == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "object store export is not configured", false, nil)
		return
	}
	sessionID, err := sessionFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	snapshot := deps.Chat.ExportContext(sessionID)
	if len(snapshot.Turns) == 0 {
		writeError(r.Context(), w, http.StatusConflict, "EMPTY_CONTEXT", "session has no turns to export", false, nil)
		return
	}

	result, err := deps.Uploader.Upload(r.Context(), snapshot)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_UPLOAD_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func sessionFromRequest(r *http.Request) (string, error) {
	sessionID := strings.TrimSpace(r.PathValue("session"))
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	return sessionID, nil
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
