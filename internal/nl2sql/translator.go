package nl2sql

import (
	"context"
	"fmt"

	"github.com/tablechat/tablechat/internal/history"
	"github.com/tablechat/tablechat/internal/schema"
)

// Request carries everything a single translation attempt may draw on: the
// question, the bounded conversation window, the schema, and the validation
// errors from the previous attempt when the orchestrator is retrying.
type Request struct {
	SessionID   string
	Question    string
	Context     []history.Turn
	Schema      *schema.Catalog
	PriorErrors []string
	Attempt     int
}

// Candidate is an untrusted SQL string. It must pass validation before it
// is allowed anywhere near the serving database.
type Candidate struct {
	SQL      string
	Attempt  int
	Provider string
	Model    string
}

type Translator interface {
	// Translate makes exactly one completion call and returns exactly one
	// candidate. Retry policy belongs to the caller.
	Translate(ctx context.Context, req Request) (Candidate, error)
}

// TranslationError reports that the completion capability was unreachable,
// timed out, or returned unusable content. It is terminal for the turn.
type TranslationError struct {
	Reason string
	Err    error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("translation failed: %s", e.Reason)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
