package audit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tablechat/tablechat/internal/history"
)

type EncodeResult struct {
	Data        []byte
	RecordCount int64
	MinTurnTime *time.Time
	MaxTurnTime *time.Time
}

type parquetTurn struct {
	TurnID          string `parquet:"turn_id"`
	SessionID       string `parquet:"session_id"`
	Question        string `parquet:"question"`
	TranslatedSQL   string `parquet:"translated_sql"`
	Status          string `parquet:"status"`
	ResultSummary   string `parquet:"result_summary"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

// EncodeSnapshotToParquet renders a session history snapshot as a parquet
// payload suitable for long-term archival.
func EncodeSnapshotToParquet(snapshot history.Snapshot) (EncodeResult, error) {
	if len(snapshot.Turns) == 0 {
		return EncodeResult{}, fmt.Errorf("snapshot has no turns")
	}

	rows := make([]parquetTurn, 0, len(snapshot.Turns))
	var minTime *time.Time
	var maxTime *time.Time

	for _, turn := range snapshot.Turns {
		rows = append(rows, parquetTurn{
			TurnID:          turn.TurnID,
			SessionID:       snapshot.SessionID,
			Question:        turn.Question,
			TranslatedSQL:   turn.TranslatedSQL,
			Status:          string(turn.Status),
			ResultSummary:   turn.ResultSummary,
			CreatedAtUnixMs: turn.Timestamp.UnixMilli(),
		})

		if !turn.Timestamp.IsZero() {
			turnTime := turn.Timestamp.UTC()
			if minTime == nil || turnTime.Before(*minTime) {
				copy := turnTime
				minTime = &copy
			}
			if maxTime == nil || turnTime.After(*maxTime) {
				copy := turnTime
				maxTime = &copy
			}
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetTurn](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
		MinTurnTime: minTime,
		MaxTurnTime: maxTime,
	}, nil
}
