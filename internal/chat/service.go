package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tablechat/tablechat/internal/format"
	"github.com/tablechat/tablechat/internal/history"
	"github.com/tablechat/tablechat/internal/nl2sql"
	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/query"
	"github.com/tablechat/tablechat/internal/schema"
	"github.com/tablechat/tablechat/internal/sqlcheck"
)

type Options struct {
	Translator       nl2sql.Translator
	Validator        *sqlcheck.Validator
	Engine           query.Engine
	Store            *history.Store
	Catalog          *schema.Catalog
	Recorder         TurnRecorder
	Logger           *slog.Logger
	MaxRetries       int
	MaxResultRows    int
	StatementTimeout time.Duration
}

// Service sequences one turn through translation, validation, execution, and
// formatting, owning the retry loop and the context window updates. Sessions
// run independently; turns within one session are strictly sequential.
type Service struct {
	translator       nl2sql.Translator
	validator        *sqlcheck.Validator
	engine           query.Engine
	store            *history.Store
	catalog          *schema.Catalog
	recorder         TurnRecorder
	logger           *slog.Logger
	maxRetries       int
	maxResultRows    int
	statementTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

func New(options Options) (*Service, error) {
	if options.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if options.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if options.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if options.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if options.Catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	if options.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be > 0")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.MaxResultRows <= 0 {
		options.MaxResultRows = 1000
	}
	if options.StatementTimeout <= 0 {
		options.StatementTimeout = 10 * time.Second
	}
	return &Service{
		translator:       options.Translator,
		validator:        options.Validator,
		engine:           options.Engine,
		store:            options.Store,
		catalog:          options.Catalog,
		recorder:         options.Recorder,
		logger:           options.Logger,
		maxRetries:       options.MaxRetries,
		maxResultRows:    options.MaxResultRows,
		statementTimeout: options.StatementTimeout,
		sessions:         map[string]*sync.Mutex{},
	}, nil
}

// SubmitTurn runs one full turn for the session and returns its outcome. A
// failed turn is a normal outcome carried in TurnResult.Failure; the error
// return is reserved for faults that violate internal contracts.
func (s *Service) SubmitTurn(ctx context.Context, sessionID, question string) (TurnResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	question = strings.TrimSpace(question)
	if sessionID == "" {
		return TurnResult{}, fmt.Errorf("session id is required")
	}
	if question == "" {
		return TurnResult{}, fmt.Errorf("question is required")
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	start := time.Now()
	window := s.store.Recent(sessionID, s.store.Window())

	var (
		candidate   nl2sql.Candidate
		validation  sqlcheck.Result
		priorErrors []string
	)

	for attempt := 1; ; attempt++ {
		translateStart := time.Now()
		var err error
		candidate, err = s.translator.Translate(ctx, nl2sql.Request{
			SessionID:   sessionID,
			Question:    question,
			Context:     window,
			Schema:      s.catalog,
			PriorErrors: priorErrors,
			Attempt:     attempt,
		})
		if err != nil {
			return s.failTurn(ctx, sessionID, question, "", start, TurnResult{
				Status:   history.TurnRejected,
				Attempts: attempt,
				Failure: &FailureReport{
					Kind:     FailureTranslation,
					Message:  err.Error(),
					Attempts: attempt,
				},
			}), nil
		}
		observability.ObserveTranslation(time.Since(translateStart))

		validation = s.validator.Validate(candidate.SQL, s.catalog)
		if validation.Valid {
			break
		}
		for _, validationErr := range validation.Errors {
			observability.IncrementValidationRejection(string(validationErr.Kind))
		}
		if attempt >= s.maxRetries {
			observability.IncrementRetriesExhausted()
			return s.failTurn(ctx, sessionID, question, candidate.SQL, start, TurnResult{
				Status:   history.TurnRejected,
				SQL:      candidate.SQL,
				Attempts: attempt,
				Failure: &FailureReport{
					Kind:     FailureValidation,
					Message:  fmt.Sprintf("query was rejected after %d attempts", attempt),
					Errors:   validation.ErrorStrings(),
					Attempts: attempt,
				},
			}), nil
		}
		priorErrors = validation.ErrorStrings()
	}

	result, err := s.engine.Execute(ctx, query.Request{
		SQL:      validation.SanitizedSQL,
		RowLimit: s.maxResultRows,
		Timeout:  s.statementTimeout,
	})
	if err != nil {
		kind := FailureExecution
		if query.IsTimeout(err) {
			kind = FailureExecutionTimeout
		}
		return s.failTurn(ctx, sessionID, question, validation.SanitizedSQL, start, TurnResult{
			Status:   history.TurnExecutionFailed,
			SQL:      validation.SanitizedSQL,
			Attempts: candidate.Attempt,
			Failure: &FailureReport{
				Kind:     kind,
				Message:  err.Error(),
				Attempts: candidate.Attempt,
			},
		}), nil
	}
	observability.ObserveExecution(result.RowCount, result.Truncated, result.Duration)

	response, err := format.Format(result, validation.SanitizedSQL)
	if err != nil {
		// Upstream contract violation, not a user-facing turn outcome.
		s.logger.Error("formatting fault",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return TurnResult{}, err
	}

	turn := history.Turn{
		TurnID:        history.NewTurnID(),
		Question:      question,
		TranslatedSQL: validation.SanitizedSQL,
		Status:        history.TurnSucceeded,
		ResultSummary: response.Narrative,
		Timestamp:     time.Now().UTC(),
	}
	s.record(ctx, sessionID, turn)
	observability.ObserveTurn(string(history.TurnSucceeded), time.Since(start))
	s.logger.Info("turn completed",
		slog.String("session_id", sessionID),
		slog.String("turn_id", turn.TurnID),
		slog.Int("attempts", candidate.Attempt),
		slog.Int("rows", result.RowCount),
		slog.Bool("truncated", result.Truncated))

	return TurnResult{
		TurnID:   turn.TurnID,
		Status:   history.TurnSucceeded,
		SQL:      validation.SanitizedSQL,
		Attempts: candidate.Attempt,
		Response: &response,
	}, nil
}

// GetContext returns the session's retained turns in chronological order.
func (s *Service) GetContext(sessionID string) []history.Turn {
	return s.store.Recent(sessionID, s.store.Window())
}

// ExportContext produces a serializable snapshot of the retained history.
func (s *Service) ExportContext(sessionID string) history.Snapshot {
	return s.store.Export(sessionID)
}

// Summarize reports aggregate session statistics.
func (s *Service) Summarize(sessionID string) history.Summary {
	return s.store.Summarize(sessionID)
}

func (s *Service) ClearContext(sessionID string) {
	s.store.Clear(sessionID)
}

func (s *Service) failTurn(ctx context.Context, sessionID, question, sqlText string, start time.Time, outcome TurnResult) TurnResult {
	turn := history.Turn{
		TurnID:        history.NewTurnID(),
		Question:      question,
		TranslatedSQL: sqlText,
		Status:        outcome.Status,
		ResultSummary: outcome.Failure.Message,
		Timestamp:     time.Now().UTC(),
	}
	s.record(ctx, sessionID, turn)
	outcome.TurnID = turn.TurnID
	observability.ObserveTurn(string(outcome.Status), time.Since(start))
	s.logger.Warn("turn failed",
		slog.String("session_id", sessionID),
		slog.String("turn_id", turn.TurnID),
		slog.String("kind", string(outcome.Failure.Kind)),
		slog.Int("attempts", outcome.Attempts))
	return outcome
}

func (s *Service) record(ctx context.Context, sessionID string, turn history.Turn) {
	s.store.Append(sessionID, turn)
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordTurn(ctx, sessionID, turn); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed",
			slog.String("session_id", sessionID),
			slog.String("turn_id", turn.TurnID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessions[sessionID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
