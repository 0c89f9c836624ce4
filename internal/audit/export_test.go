package audit

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tablechat/tablechat/internal/history"
)

func TestEncodeSnapshotToParquet(t *testing.T) {
	snapshot := history.Snapshot{
		SessionID:  "session-1",
		ExportedAt: time.Date(2026, time.March, 5, 14, 30, 0, 0, time.UTC),
		Turns: []history.Turn{
			{
				TurnID:        "turn-1",
				Question:      "list stores",
				TranslatedSQL: "SELECT name FROM stores LIMIT 1000",
				Status:        history.TurnSucceeded,
				ResultSummary: "Returned 4 rows.",
				Timestamp:     time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC),
			},
			{
				TurnID:        "turn-2",
				Question:      "drop everything",
				Status:        history.TurnRejected,
				ResultSummary: "query was rejected after 2 attempts",
				Timestamp:     time.Date(2026, time.March, 5, 11, 0, 0, 0, time.UTC),
			},
		},
	}

	result, err := EncodeSnapshotToParquet(snapshot)
	if err != nil {
		t.Fatalf("EncodeSnapshotToParquet() error = %v", err)
	}
	if result.RecordCount != 2 {
		t.Fatalf("RecordCount = %d", result.RecordCount)
	}
	if len(result.Data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}
	if result.MinTurnTime == nil || result.MinTurnTime.Hour() != 10 {
		t.Fatalf("MinTurnTime = %v", result.MinTurnTime)
	}
	if result.MaxTurnTime == nil || result.MaxTurnTime.Hour() != 11 {
		t.Fatalf("MaxTurnTime = %v", result.MaxTurnTime)
	}

	reader := parquet.NewGenericReader[parquetTurn](bytes.NewReader(result.Data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquetTurn, 2)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("read rows = %d", count)
	}
	if rows[0].TurnID != "turn-1" || rows[0].SessionID != "session-1" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Status != "rejected" || rows[1].TranslatedSQL != "" {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestEncodeSnapshotToParquetRejectsEmptySnapshot(t *testing.T) {
	_, err := EncodeSnapshotToParquet(history.Snapshot{SessionID: "session-1"})
	if err == nil {
		t.Fatal("expected error for empty snapshot")
	}
}
