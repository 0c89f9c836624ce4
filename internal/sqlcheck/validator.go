package sqlcheck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tablechat/tablechat/internal/schema"
)

// Validator statically analyzes candidate SQL before it may execute. Checks
// run in a fixed order and never short-circuit: a rejected candidate carries
// every problem found, so the retry prompt can fix them all in one pass.
type Validator struct {
	maxRows int
}

func New(maxRows int) (*Validator, error) {
	if maxRows <= 0 {
		return nil, fmt.Errorf("max rows must be > 0")
	}
	return &Validator{maxRows: maxRows}, nil
}

var allowedVerbs = map[string]struct{}{
	"select": {},
	"with":   {},
}

// forbiddenKeywords covers DML, DDL, and administrative verbs plus UNION,
// which the serving path has no legitimate use for and which anchors the
// classic injection shapes.
var forbiddenKeywords = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "drop": {}, "alter": {},
	"create": {}, "truncate": {}, "grant": {}, "revoke": {}, "exec": {},
	"execute": {}, "call": {}, "pragma": {}, "attach": {}, "detach": {},
	"copy": {}, "install": {}, "load": {}, "vacuum": {}, "union": {},
}

var clauseKeywords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "join": {}, "inner": {}, "left": {},
	"right": {}, "full": {}, "outer": {}, "cross": {}, "natural": {}, "on": {},
	"using": {}, "group": {}, "by": {}, "having": {}, "order": {}, "limit": {},
	"offset": {}, "as": {}, "and": {}, "or": {}, "not": {}, "in": {},
	"like": {}, "ilike": {}, "between": {}, "is": {}, "null": {}, "true": {},
	"false": {}, "case": {}, "when": {}, "then": {}, "else": {}, "end": {},
	"distinct": {}, "all": {}, "asc": {}, "desc": {}, "cast": {}, "with": {},
	"exists": {}, "any": {}, "some": {}, "interval": {}, "extract": {},
	"over": {}, "partition": {}, "rows": {}, "range": {}, "nulls": {},
	"first": {}, "last": {}, "filter": {}, "escape": {},
	"current_date": {}, "current_timestamp": {}, "table": {}, "into": {},
	"values": {}, "set": {}, "recursive": {}, "leading": {}, "trailing": {},
	"both": {},
}

// funcFromOwners are functions whose argument lists use FROM as a separator
// rather than as a clause introducing a table source.
var funcFromOwners = map[string]struct{}{
	"extract": {}, "substring": {}, "trim": {}, "position": {}, "overlay": {},
}

// Validate runs every check against the candidate and returns either a
// sanitized statement or the full ordered list of rejections.
func (v *Validator) Validate(candidateSQL string, catalog *schema.Catalog) Result {
	trimmed := trimStatement(candidateSQL)
	lexed := lex(trimmed)
	var errs []Error

	// 1. Exactly one statement.
	if lexed.statements > 1 {
		errs = append(errs, Error{
			Kind:   KindMultipleStatements,
			Detail: fmt.Sprintf("expected a single statement, found %d", lexed.statements),
		})
	}

	// 2. Top-level verb must be read-only.
	if len(lexed.tokens) == 0 || lexed.statements == 0 {
		errs = append(errs, Error{Kind: KindForbiddenStatement, Detail: "empty statement"})
	} else {
		verb := lexed.tokens[0].text
		if _, ok := allowedVerbs[verb]; !ok {
			errs = append(errs, Error{
				Kind:   KindForbiddenStatement,
				Detail: fmt.Sprintf("statement verb %q is not allowed; only SELECT (optionally under WITH) may run", strings.ToUpper(verb)),
			})
		}
	}

	// 3. Lexical safety.
	if lexed.hasComment {
		errs = append(errs, Error{Kind: KindUnsafeConstruct, Detail: "comment sequences are not allowed"})
	}
	if lexed.unterminated {
		errs = append(errs, Error{Kind: KindUnsafeConstruct, Detail: "unterminated string or comment"})
	}
	seenForbidden := map[string]struct{}{}
	for i, tok := range lexed.tokens {
		if i == 0 || tok.kind != tokenIdent {
			continue
		}
		if _, forbidden := forbiddenKeywords[tok.text]; !forbidden {
			continue
		}
		if _, dup := seenForbidden[tok.text]; dup {
			continue
		}
		seenForbidden[tok.text] = struct{}{}
		errs = append(errs, Error{
			Kind:   KindUnsafeConstruct,
			Detail: fmt.Sprintf("keyword %q is not allowed inside a query", strings.ToUpper(tok.text)),
		})
	}

	// 4. Schema conformance.
	if catalog != nil {
		errs = append(errs, checkSchema(lexed.tokens, catalog)...)
	}

	if len(errs) > 0 {
		return Result{Valid: false, Errors: errs}
	}

	// 5. Bound injection: append a row limit when the statement has none.
	sanitized := trimmed
	if !hasTopLevelLimit(lexed.tokens) {
		sanitized = fmt.Sprintf("%s LIMIT %d", trimmed, v.maxRows)
	}
	return Result{Valid: true, SanitizedSQL: sanitized}
}

// MaxRows reports the configured row bound used for injection.
func (v *Validator) MaxRows() int {
	return v.maxRows
}

type tableRefs struct {
	// names holds referenced table names in reference order, deduplicated.
	names []string
	// byAlias maps an alias or bare table name to the table name.
	byAlias map[string]string
}

func checkSchema(tokens []token, catalog *schema.Catalog) []Error {
	cte := collectCTENames(tokens)
	refs := collectTableRefs(tokens, cte)
	var errs []Error

	known := map[string]struct{}{}
	for _, name := range refs.names {
		if catalog.HasTable(name) {
			known[name] = struct{}{}
			continue
		}
		errs = append(errs, Error{
			Kind:   KindUnknownTable,
			Detail: fmt.Sprintf("unknown table %q", name),
		})
	}

	seenColumns := map[string]struct{}{}

	// Qualified references: alias.column or table.column.
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i].kind != tokenIdent || !isSymbol(tokens[i+1], ".") {
			continue
		}
		base := tokens[i].text
		tableName, ok := refs.byAlias[base]
		if !ok {
			continue
		}
		if _, tableKnown := known[tableName]; !tableKnown {
			continue
		}
		if isSymbol(tokens[i+2], "*") {
			continue
		}
		if tokens[i+2].kind != tokenIdent {
			continue
		}
		column := tokens[i+2].text
		if catalog.HasColumn(tableName, column) {
			continue
		}
		key := tableName + "." + column
		if _, dup := seenColumns[key]; dup {
			continue
		}
		seenColumns[key] = struct{}{}
		errs = append(errs, Error{
			Kind:   KindUnknownColumn,
			Detail: fmt.Sprintf("unknown column %q on table %q", column, tableName),
		})
	}

	// Unqualified identifiers must resolve on some referenced table. Skipped
	// entirely when no referenced table is known, to avoid cascading noise
	// behind an UnknownTable rejection.
	if len(known) == 0 {
		return errs
	}

	// Identifiers introduced as aliases (AS total, count(*) cnt) are not
	// column references, here or in later clauses that mention them.
	aliases := map[string]struct{}{}
	for i, tok := range tokens {
		if tok.kind != tokenIdent || i == 0 {
			continue
		}
		if _, keyword := clauseKeywords[tok.text]; keyword {
			continue
		}
		if isAliasPosition(tokens[i-1]) {
			aliases[tok.text] = struct{}{}
		}
	}

	for i, tok := range tokens {
		if tok.kind != tokenIdent {
			continue
		}
		if _, keyword := clauseKeywords[tok.text]; keyword {
			continue
		}
		if _, forbidden := forbiddenKeywords[tok.text]; forbidden {
			continue
		}
		if _, isRef := refs.byAlias[tok.text]; isRef {
			continue
		}
		if _, isAlias := aliases[tok.text]; isAlias {
			continue
		}
		if i > 0 && isSymbol(tokens[i-1], ".") {
			continue
		}
		if i+1 < len(tokens) && (isSymbol(tokens[i+1], ".") || isSymbol(tokens[i+1], "(")) {
			continue
		}
		// Date-part argument of EXTRACT(part FROM expr), not a column.
		if i >= 2 && isSymbol(tokens[i-1], "(") && tokens[i-2].kind == tokenIdent && tokens[i-2].text == "extract" {
			continue
		}
		resolved := false
		for name := range known {
			if catalog.HasColumn(name, tok.text) {
				resolved = true
				break
			}
		}
		if resolved {
			continue
		}
		if _, dup := seenColumns[tok.text]; dup {
			continue
		}
		seenColumns[tok.text] = struct{}{}
		errs = append(errs, Error{
			Kind:   KindUnknownColumn,
			Detail: fmt.Sprintf("unknown column %q", tok.text),
		})
	}
	return errs
}

// isAliasPosition reports whether an identifier following the given token is
// in an alias slot rather than a column reference: after AS, after a closing
// paren, or after a literal.
func isAliasPosition(prev token) bool {
	if prev.kind == tokenIdent && prev.text == "as" {
		return true
	}
	if prev.kind == tokenNumber || prev.kind == tokenString {
		return true
	}
	return isSymbol(prev, ")")
}

// collectCTENames gathers the names a WITH prologue introduces. They resolve
// within the statement itself, so the catalog checks must not treat them as
// tables.
func collectCTENames(tokens []token) map[string]struct{} {
	names := map[string]struct{}{}
	if len(tokens) == 0 || tokens[0].kind != tokenIdent || tokens[0].text != "with" {
		return names
	}
	expectName := true
	for _, tok := range tokens[1:] {
		if tok.depth > 0 {
			continue
		}
		if tok.kind == tokenIdent {
			switch tok.text {
			case "recursive", "as":
				continue
			case "select":
				return names
			}
			if expectName {
				names[tok.text] = struct{}{}
				expectName = false
			}
			continue
		}
		if isSymbol(tok, ",") {
			expectName = true
		}
	}
	return names
}

func collectTableRefs(tokens []token, cte map[string]struct{}) tableRefs {
	refs := tableRefs{byAlias: map[string]string{}}
	seen := map[string]struct{}{}

	add := func(name string) {
		refs.byAlias[name] = name
		if _, isCTE := cte[name]; isCTE {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		refs.names = append(refs.names, name)
	}

	// Tracks whether the innermost open paren belongs to a FROM-separator
	// function such as EXTRACT, whose FROM introduces no table.
	var funcParens []bool
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if tok.kind == tokenSymbol {
			switch tok.text {
			case "(":
				owner := false
				if i > 0 && tokens[i-1].kind == tokenIdent {
					_, owner = funcFromOwners[tokens[i-1].text]
				}
				funcParens = append(funcParens, owner)
			case ")":
				if len(funcParens) > 0 {
					funcParens = funcParens[:len(funcParens)-1]
				}
			}
		}
		inFuncArgs := len(funcParens) > 0 && funcParens[len(funcParens)-1]
		if tok.kind != tokenIdent || (tok.text != "from" && tok.text != "join") || inFuncArgs {
			i++
			continue
		}
		inFromList := tok.text == "from"
		i++
		for i < len(tokens) {
			if tokens[i].kind != tokenIdent {
				break // subquery or expression, handled by its own FROM
			}
			if _, keyword := clauseKeywords[tokens[i].text]; keyword {
				break
			}
			name := tokens[i].text
			for i+2 < len(tokens) && isSymbol(tokens[i+1], ".") && tokens[i+2].kind == tokenIdent {
				name = tokens[i+2].text
				i += 2
			}
			add(name)
			i++

			// Optional alias, with or without AS.
			if i < len(tokens) && tokens[i].kind == tokenIdent && tokens[i].text == "as" {
				i++
			}
			if i < len(tokens) && tokens[i].kind == tokenIdent {
				if _, keyword := clauseKeywords[tokens[i].text]; !keyword {
					refs.byAlias[tokens[i].text] = name
					i++
				}
			}

			if inFromList && i < len(tokens) && isSymbol(tokens[i], ",") {
				i++
				continue
			}
			break
		}
	}
	return refs
}

func hasTopLevelLimit(tokens []token) bool {
	for _, tok := range tokens {
		if tok.kind == tokenIdent && tok.text == "limit" && tok.depth == 0 {
			return true
		}
	}
	return false
}

func isSymbol(tok token, text string) bool {
	return tok.kind == tokenSymbol && tok.text == text
}

func trimStatement(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// ParseLimit extracts the numeric argument of a top-level LIMIT clause.
// Used by tests and by the executor's defensive row cap.
func ParseLimit(sqlText string) (int, bool) {
	lexed := lex(trimStatement(sqlText))
	for i, tok := range lexed.tokens {
		if tok.kind != tokenIdent || tok.text != "limit" || tok.depth != 0 {
			continue
		}
		if i+1 < len(lexed.tokens) && lexed.tokens[i+1].kind == tokenNumber {
			value, err := strconv.Atoi(lexed.tokens[i+1].text)
			if err == nil {
				return value, true
			}
		}
	}
	return 0, false
}
