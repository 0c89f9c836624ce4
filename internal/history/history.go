package history

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

type TurnStatus string

const (
	TurnSucceeded       TurnStatus = "succeeded"
	TurnRejected        TurnStatus = "rejected"
	TurnExecutionFailed TurnStatus = "execution_failed"
)

// Turn is one completed question/answer exchange. Turns are immutable once
// recorded; the orchestrator creates exactly one per terminal state.
type Turn struct {
	TurnID        string     `json:"turn_id"`
	Question      string     `json:"question"`
	TranslatedSQL string     `json:"translated_sql,omitempty"`
	Status        TurnStatus `json:"status"`
	ResultSummary string     `json:"result_summary,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Snapshot is the serializable export of a session's retained history.
// Field names are part of the export format and stay stable across versions.
type Snapshot struct {
	SessionID  string    `json:"session_id"`
	ExportedAt time.Time `json:"exported_at"`
	Turns      []Turn    `json:"turns"`
}

type Summary struct {
	TotalTurns  int    `json:"total_turns"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	WindowSize  int    `json:"window_size"`
	WindowUsage int    `json:"window_usage"`
	Warning     string `json:"warning,omitempty"`
}

func NewTurnID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
