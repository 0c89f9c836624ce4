package sqlcheck

import "fmt"

type Kind string

const (
	KindMultipleStatements Kind = "multiple_statements"
	KindForbiddenStatement Kind = "forbidden_statement"
	KindUnsafeConstruct    Kind = "unsafe_construct"
	KindUnknownTable       Kind = "unknown_table"
	KindUnknownColumn      Kind = "unknown_column"
)

type Error struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Result is the outcome of validating one candidate. SanitizedSQL is set
// only when Valid is true; Errors carries every failed check in check order
// so a retry prompt can address all of them at once.
type Result struct {
	Valid        bool    `json:"valid"`
	SanitizedSQL string  `json:"sanitized_sql,omitempty"`
	Errors       []Error `json:"errors,omitempty"`
}

func (r Result) ErrorStrings() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}
