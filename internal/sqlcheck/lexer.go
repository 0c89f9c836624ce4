package sqlcheck

import "strings"

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenSymbol
)

type token struct {
	kind  tokenKind
	text  string // identifiers are lowercased, quoted or not, to match catalog lookups
	depth int    // parenthesis nesting depth at the token position
}

type lexResult struct {
	tokens      []token
	statements  int
	hasComment  bool
	unterminated bool
}

// lex splits a candidate into tokens, tracking parenthesis depth and
// statement boundaries. String literal contents never produce tokens, so
// keyword checks cannot be fooled by quoted text.
func lex(input string) lexResult {
	result := lexResult{}
	depth := 0
	sawToken := false
	i := 0

	for i < len(input) {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < len(input) && input[i+1] == '-':
			result.hasComment = true
			for i < len(input) && input[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(input) && input[i+1] == '*':
			result.hasComment = true
			i += 2
			for i+1 < len(input) && !(input[i] == '*' && input[i+1] == '/') {
				i++
			}
			if i+1 < len(input) {
				i += 2
			} else {
				i = len(input)
				result.unterminated = true
			}

		case c == '\'':
			start := i
			i++
			closed := false
			for i < len(input) {
				if input[i] == '\'' {
					if i+1 < len(input) && input[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				result.unterminated = true
			}
			result.tokens = append(result.tokens, token{kind: tokenString, text: input[start:i], depth: depth})
			sawToken = true

		case c == '"':
			start := i
			i++
			closed := false
			for i < len(input) {
				if input[i] == '"' {
					if i+1 < len(input) && input[i+1] == '"' {
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				result.unterminated = true
			}
			text := strings.Trim(input[start:i], `"`)
			text = strings.ReplaceAll(text, `""`, `"`)
			result.tokens = append(result.tokens, token{kind: tokenIdent, text: strings.ToLower(text), depth: depth})
			sawToken = true

		case c == ';':
			if sawToken {
				result.statements++
				sawToken = false
			}
			i++

		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			result.tokens = append(result.tokens, token{kind: tokenIdent, text: strings.ToLower(input[start:i]), depth: depth})
			sawToken = true

		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				i++
			}
			result.tokens = append(result.tokens, token{kind: tokenNumber, text: input[start:i], depth: depth})
			sawToken = true

		default:
			if c == '(' {
				depth++
			}
			result.tokens = append(result.tokens, token{kind: tokenSymbol, text: string(c), depth: depth})
			if c == ')' && depth > 0 {
				depth--
			}
			i++
		}
	}

	if sawToken {
		result.statements++
	}
	return result
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
