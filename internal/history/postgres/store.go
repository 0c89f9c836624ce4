package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tablechat/tablechat/internal/history"
)

// Store persists terminal conversation turns for audit. The in-memory window
// remains the source of truth for the translation context; this store only
// provides a durable trail across restarts.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

func (s *Store) RecordTurn(ctx context.Context, sessionID string, turn history.Turn) error {
	query := `
INSERT INTO conversation_turn (turn_id, session_id, question, translated_sql, status, result_summary, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	translatedSQL := sql.NullString{String: turn.TranslatedSQL, Valid: turn.TranslatedSQL != ""}
	resultSummary := sql.NullString{String: turn.ResultSummary, Valid: turn.ResultSummary != ""}

	if _, err := s.db.ExecContext(ctx, query,
		turn.TurnID,
		sessionID,
		turn.Question,
		translatedSQL,
		string(turn.Status),
		resultSummary,
		turn.Timestamp,
	); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT turn_id, question, translated_sql, status, result_summary, created_at
FROM conversation_turn
WHERE session_id = $1
ORDER BY created_at ASC, turn_id ASC
LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]history.Turn, 0)
	for rows.Next() {
		var (
			turn          history.Turn
			status        string
			translatedSQL sql.NullString
			resultSummary sql.NullString
		)
		if err := rows.Scan(
			&turn.TurnID,
			&turn.Question,
			&translatedSQL,
			&status,
			&resultSummary,
			&turn.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.Status = history.TurnStatus(status)
		turn.TranslatedSQL = translatedSQL.String
		turn.ResultSummary = resultSummary.String
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}
