package format

import (
	"fmt"

	"github.com/tablechat/tablechat/internal/query"
)

// Error indicates a malformed execution result reaching the formatter, which
// means an upstream contract was broken. It is never shown as a recoverable
// user condition.
type Error struct {
	Detail string
}

func (e *Error) Error() string {
	return "format: " + e.Detail
}

type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type Metadata struct {
	RowCount  int     `json:"row_count"`
	ElapsedMS float64 `json:"elapsed_ms"`
	SQL       string  `json:"sql_used"`
	Truncated bool    `json:"truncated"`
}

type Response struct {
	Narrative string   `json:"narrative_text"`
	Table     *Table   `json:"tabular_view,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

// Format turns an execution result into a user-facing response. The shape of
// the result selects the strategy: empty, single scalar cell, or tabular. The
// formatter is a pure transform and never touches the data source.
func Format(result query.Result, sqlUsed string) (Response, error) {
	for i, row := range result.Rows {
		if len(row) != len(result.Columns) {
			return Response{}, &Error{
				Detail: fmt.Sprintf("row %d has %d values for %d columns", i, len(row), len(result.Columns)),
			}
		}
	}

	response := Response{
		Metadata: Metadata{
			RowCount:  len(result.Rows),
			ElapsedMS: float64(result.Duration.Microseconds()) / 1000.0,
			SQL:       sqlUsed,
			Truncated: result.Truncated,
		},
	}

	switch {
	case len(result.Rows) == 0:
		response.Narrative = "No matching rows."

	case len(result.Rows) == 1 && len(result.Columns) == 1:
		response.Narrative = fmt.Sprintf("%s: %s", result.Columns[0], renderValue(result.Rows[0][0]))

	default:
		narrative := fmt.Sprintf("Returned %d rows.", len(result.Rows))
		if result.Truncated {
			narrative += " The result was truncated at the row limit."
		}
		response.Narrative = narrative
		response.Table = &Table{Columns: result.Columns, Rows: result.Rows}
	}
	return response, nil
}

func renderValue(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", value)
}
