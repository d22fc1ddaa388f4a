package exprlang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowlayer/engine/pkg/ferrors"
)

// longest-match multi-character operators, checked before any
// single-character fallback (spec §4.2).
var multiCharOps = []string{"===", "!==", "==", "!=", ">=", "<=", "&&", "||", "??", "..."}

var singleCharOps = "+-*/%<>!.=&|"

// invalidOpSequences are explicitly rejected even though their prefixes
// are legal operator characters (spec §4.2).
var invalidOpSequences = []string{"++", "--", "**", "<>", "<<", ">>", "$$", "@@"}

// Tokenize converts an expression string into a tree of tokens (spec
// §4.2). It fails with a TokenizerError describing the first violation;
// empty or whitespace-only input is rejected.
func Tokenize(expr string) ([]Token, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ferrors.NewTokenizerError("expression must not be empty", 0)
	}
	toks, end, err := tokenizeStream(expr, 0, len(expr))
	if err != nil {
		return nil, err
	}
	if end != len(expr) {
		return nil, ferrors.NewTokenizerError("unexpected trailing input", end)
	}
	if err := validateOperatorPlacement(toks); err != nil {
		return nil, err
	}
	return toks, nil
}

// tokenizeStream scans src[start:limit] into a flat token list. Several
// token kinds (reference, template literal, array literal, and object
// literal when classified as such) carry their own nested content as
// Children rather than flattening it into this list.
func tokenizeStream(src string, start, limit int) ([]Token, int, error) {
	var toks []Token
	i := start
	for i < limit {
		c := src[i]
		switch {
		case isSpace(c):
			i++

		case c == '$' && i+1 < limit && src[i+1] == '{':
			tok, next, err := scanReference(src, i)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, tok)
			i = next

		case c == '`':
			tok, next, err := scanTemplate(src, i)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, tok)
			i = next

		case c == '"' || c == '\'':
			tok, next, err := scanString(src, i)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, tok)
			i = next

		case isDigit(c):
			tok, next, err := scanNumber(src, i)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, tok)
			i = next

		case isIdentStart(c):
			tok, next := scanIdentifier(src, i)
			toks = append(toks, tok)
			i = next

		case c == '[':
			close, err := findMatchingClose(src, i)
			if err != nil {
				return nil, 0, err
			}
			children, _, err := tokenizeStream(src, i+1, close)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, Token{Type: TokArrayLiteral, Raw: src[i : close+1], Pos: i, Children: children})
			i = close + 1

		case c == '{':
			close, err := findMatchingClose(src, i)
			if err != nil {
				return nil, 0, err
			}
			inner := src[i+1 : close]
			if looksLikeObjectLiteral(inner) {
				children, _, err := tokenizeStream(src, i+1, close)
				if err != nil {
					return nil, 0, err
				}
				toks = append(toks, Token{Type: TokObjectLiteral, Raw: src[i : close+1], Pos: i, Children: children})
				i = close + 1
			} else {
				toks = append(toks, Token{Type: TokPunctuation, Raw: "{", Text: "{", Pos: i})
				i++
			}

		case c == '(' || c == ')' || c == ']' || c == '}' || c == ',' || c == ':':
			toks = append(toks, Token{Type: TokPunctuation, Raw: string(c), Text: string(c), Pos: i})
			i++

		default:
			op, opLen, err := scanOperator(src, i, limit)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, Token{Type: TokOperator, Raw: op, Text: op, Pos: i})
			i += opLen
		}
	}
	return toks, i, nil
}

// scanReference tokenizes a `${...}` group, counting braces to allow
// arbitrary nesting (spec §4.2).
func scanReference(src string, start int) (Token, int, error) {
	open := start + 1 // position of '{'
	close, err := findMatchingClose(src, open)
	if err != nil {
		return Token{}, 0, ferrors.NewTokenizerError("unterminated reference", start)
	}
	children, _, err := tokenizeStream(src, open+1, close)
	if err != nil {
		return Token{}, 0, err
	}
	return Token{Type: TokReference, Raw: src[start : close+1], Pos: start, Children: children}, close + 1, nil
}

// scanTemplate tokenizes a backtick template literal. `\`` and `\\`
// before a backtick escape it; `\${` emits a literal "${" rather than
// starting an interpolation (spec §4.2).
func scanTemplate(src string, start int) (Token, int, error) {
	i := start + 1
	var children []Token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			children = append(children, Token{Type: TokString, Raw: lit.String(), Text: lit.String(), Pos: start})
			lit.Reset()
		}
	}
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			next := src[i+1]
			if next == '`' || next == '\\' {
				lit.WriteByte(next)
				i += 2
				continue
			}
			if next == '$' && i+2 < len(src) && src[i+2] == '{' {
				lit.WriteString("${")
				i += 3
				continue
			}
			lit.WriteByte(c)
			i++
		case c == '`':
			flush()
			return Token{Type: TokTemplateLiteral, Raw: src[start : i+1], Pos: start, Children: children}, i + 1, nil
		case c == '$' && i+1 < len(src) && src[i+1] == '{':
			flush()
			tok, next, err := scanReference(src, i)
			if err != nil {
				return Token{}, 0, err
			}
			children = append(children, tok)
			i = next
		default:
			lit.WriteByte(c)
			i++
		}
	}
	return Token{}, 0, ferrors.NewTokenizerError("unterminated template literal", start)
}

// scanString tokenizes a single- or double-quoted string, resolving
// `\"`, `\'`, `\\` escapes.
func scanString(src string, start int) (Token, int, error) {
	quote := src[start]
	var buf strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			next := src[i+1]
			switch next {
			case '"', '\'', '\\':
				buf.WriteByte(next)
				i += 2
				continue
			}
			buf.WriteByte(c)
			i++
			continue
		}
		if c == quote {
			return Token{Type: TokString, Raw: src[start : i+1], Text: buf.String(), Pos: start}, i + 1, nil
		}
		buf.WriteByte(c)
		i++
	}
	return Token{}, 0, ferrors.NewTokenizerError("unterminated string literal", start)
}

func scanNumber(src string, start int) (Token, int, error) {
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' && i+1 < len(src) && isDigit(src[i+1]) {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	raw := src[start:i]
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Token{}, 0, ferrors.NewTokenizerError(fmt.Sprintf("invalid number literal %q", raw), start)
	}
	return Token{Type: TokNumber, Raw: raw, Number: n, Pos: start}, i, nil
}

func scanIdentifier(src string, start int) (Token, int) {
	i := start + 1
	for i < len(src) && isIdentPart(src[i]) {
		i++
	}
	name := src[start:i]
	return Token{Type: TokIdentifier, Raw: name, Text: name, Pos: start}, i
}

func scanOperator(src string, start, limit int) (string, int, error) {
	for _, bad := range invalidOpSequences {
		if strings.HasPrefix(src[start:limit], bad) {
			return "", 0, ferrors.NewTokenizerError(fmt.Sprintf("invalid operator sequence %q", bad), start)
		}
	}
	for _, op := range multiCharOps {
		if strings.HasPrefix(src[start:limit], op) {
			return op, len(op), nil
		}
	}
	c := src[start]
	if strings.IndexByte(singleCharOps, c) >= 0 {
		return string(c), 1, nil
	}
	return "", 0, ferrors.NewTokenizerError(fmt.Sprintf("unexpected character %q", c), start)
}

// looksLikeObjectLiteral implements spec §4.2's brace-disambiguation
// rule: a `{...}` body is an object literal if it contains a top-depth
// ':', a top-depth spread '...', or opens with a reference used as a
// key; otherwise the braces are plain punctuation.
func looksLikeObjectLiteral(inner string) bool {
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" {
		return true // `{}` is the empty object literal
	}
	if strings.HasPrefix(trimmed, "${") {
		return true
	}
	depth := 0
	i := 0
	for i < len(inner) {
		c := inner[i]
		switch c {
		case '\'', '"':
			j := i + 1
			for j < len(inner) && inner[j] != c {
				if inner[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			continue
		case '`':
			j := i + 1
			for j < len(inner) && inner[j] != '`' {
				if inner[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 {
				return true
			}
		case '.':
			if depth == 0 && strings.HasPrefix(inner[i:], "...") {
				return true
			}
		}
		i++
	}
	return false
}

// findMatchingClose returns the index of the bracket matching the
// opening '(', '[' or '{' at openPos, skipping over quoted strings and
// backtick templates (including their nested ${...} interpolations) so
// bracket characters inside them are never counted.
func findMatchingClose(src string, openPos int) (int, error) {
	depth := 0
	i := openPos
	for i < len(src) {
		c := src[i]
		switch c {
		case '\'', '"':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return -1, ferrors.NewTokenizerError("unterminated string literal", i)
			}
			i = j + 1
		case '`':
			j := i + 1
			for j < len(src) {
				if src[j] == '\\' {
					j += 2
					continue
				}
				if src[j] == '`' {
					break
				}
				if src[j] == '$' && j+1 < len(src) && src[j+1] == '{' {
					k, err := findMatchingClose(src, j+1)
					if err != nil {
						return -1, err
					}
					j = k + 1
					continue
				}
				j++
			}
			if j >= len(src) {
				return -1, ferrors.NewTokenizerError("unterminated template literal", i)
			}
			i = j + 1
		case '(', '[', '{':
			depth++
			i++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i, nil
			}
			i++
		default:
			i++
		}
	}
	return -1, ferrors.NewTokenizerError("unclosed bracket", openPos)
}

// validateOperatorPlacement enforces that a unary operator is followed
// by an operand or another unary operator (never EOF) and a binary
// operator has operands on both sides (spec §4.2). It inspects the flat
// top-level stream only; tokens nested inside literal or reference
// groups are not checked here.
func validateOperatorPlacement(toks []Token) error {
	for i, tok := range toks {
		if tok.Type != TokOperator {
			continue
		}
		isUnaryPosition := i == 0 || toks[i-1].Type == TokOperator ||
			(toks[i-1].Type == TokPunctuation && toks[i-1].Text != ")")
		if isUnaryPosition {
			if tok.Text != "!" && tok.Text != "-" && tok.Text != "+" && tok.Text != "..." {
				return ferrors.NewTokenizerError(fmt.Sprintf("operator %q cannot appear here", tok.Text), tok.Pos)
			}
			if i+1 >= len(toks) {
				return ferrors.NewTokenizerError(fmt.Sprintf("operator %q must be followed by an operand", tok.Text), tok.Pos)
			}
			next := toks[i+1]
			if next.Type == TokOperator && next.Text != "!" && next.Text != "-" && next.Text != "+" {
				return ferrors.NewTokenizerError(fmt.Sprintf("operator %q cannot be followed by %q", tok.Text, next.Text), tok.Pos)
			}
		} else {
			if i+1 >= len(toks) {
				return ferrors.NewTokenizerError(fmt.Sprintf("operator %q must have a right operand", tok.Text), tok.Pos)
			}
		}
	}
	return nil
}
