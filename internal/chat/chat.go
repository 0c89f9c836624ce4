package chat

import (
	"context"

	"github.com/tablechat/tablechat/internal/format"
	"github.com/tablechat/tablechat/internal/history"
)

// FailureKind classifies a terminal turn failure for callers.
type FailureKind string

const (
	FailureTranslation      FailureKind = "translation_error"
	FailureValidation       FailureKind = "validation_rejected"
	FailureExecution        FailureKind = "execution_error"
	FailureExecutionTimeout FailureKind = "execution_timeout"
)

// FailureReport explains why a turn ended without a formatted response.
type FailureReport struct {
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
	Errors   []string    `json:"errors,omitempty"`
	Attempts int         `json:"attempts"`
}

// TurnResult is the outcome of one submitted turn. Exactly one of Response
// and Failure is set.
type TurnResult struct {
	TurnID   string             `json:"turn_id"`
	Status   history.TurnStatus `json:"status"`
	SQL      string             `json:"sql,omitempty"`
	Attempts int                `json:"attempts"`
	Response *format.Response   `json:"response,omitempty"`
	Failure  *FailureReport     `json:"failure,omitempty"`
}

// TurnRecorder persists terminal turns outside the in-memory window, for
// audit. Recorder failures never fail the turn.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn history.Turn) error
}
