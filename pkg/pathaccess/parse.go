package pathaccess

import (
	"strconv"
	"strings"

	"github.com/flowlayer/engine/pkg/ferrors"
)

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Parse parses a path string into its segments, per the grammar:
//
//	Path    := Segment ( '.' Segment | '[' Index ']' )*
//	Segment := [A-Za-z_$][A-Za-z0-9_$]*
//	Index   := integer | quoted-string | expression
//
// The leading Segment names the scope root (a step name, or one of
// "context"/"metadata"/a loop variable) and is always a bare identifier;
// everything after it walks into that root. Every rejection below raises
// a PathSyntaxError carrying the byte offset of the offending character.
func Parse(path string) ([]Segment, error) {
	if path == "" {
		return nil, ferrors.NewPathSyntaxError("path must not be empty", 0)
	}
	if path[0] == '.' {
		return nil, ferrors.NewPathSyntaxError("path must not start with '.'", 0)
	}

	i := 0
	name, n, err := scanIdent(path, i)
	if err != nil {
		return nil, err
	}
	segments := []Segment{{Type: Property, Name: name, Raw: name}}
	i += n

	for i < len(path) {
		switch path[i] {
		case '.':
			start := i
			i++
			if i < len(path) && path[i] == '.' {
				return nil, ferrors.NewPathSyntaxError("unexpected consecutive '.'", i)
			}
			if i >= len(path) {
				return nil, ferrors.NewPathSyntaxError("path must not end with '.'", i)
			}
			if isDigit(path[i]) {
				return nil, ferrors.NewPathSyntaxError("numeric property name after '.' must use bracket form, e.g. [0]", i)
			}
			name, n, err := scanIdent(path, i)
			if err != nil {
				return nil, err
			}
			i += n
			segments = append(segments, Segment{Type: Property, Name: name, Raw: path[start:i]})

		case '[':
			start := i
			end, err := matchBracket(path, i)
			if err != nil {
				return nil, err
			}
			content := path[i+1 : end]
			if content == "" {
				return nil, ferrors.NewPathSyntaxError("empty brackets", i)
			}
			raw := path[start : end+1]
			seg, err := classifyIndex(content, i+1)
			if err != nil {
				return nil, err
			}
			seg.Raw = raw
			segments = append(segments, seg)
			i = end + 1

		default:
			return nil, ferrors.NewPathSyntaxError("expected '.' or '[' after segment", i)
		}
	}

	return segments, nil
}

// scanIdent reads a `[A-Za-z_$][A-Za-z0-9_$]*` token starting at i,
// returning the identifier text and its length.
func scanIdent(path string, i int) (string, int, error) {
	if i >= len(path) || !isIdentStart(path[i]) {
		return "", 0, ferrors.NewPathSyntaxError("expected identifier", i)
	}
	j := i + 1
	for j < len(path) && isIdentPart(path[j]) {
		j++
	}
	return path[i:j], j - i, nil
}

// matchBracket finds the index of the ']' matching the '[' at open,
// skipping over nested brackets and quoted substrings so an index
// expression containing its own brackets or string literals (e.g.
// `a[items[0]]` or `a["x]"]`) matches correctly.
func matchBracket(path string, open int) (int, error) {
	depth := 0
	var quote byte
	for i := open; i < len(path); i++ {
		c := path[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(path) {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, ferrors.NewPathSyntaxError("unclosed '['", open)
}

// classifyIndex decides whether bracket content is an integer index, a
// quoted property name, or a computed expression. pos is the content's
// starting byte offset, used in error positions.
func classifyIndex(content string, pos int) (Segment, error) {
	if isAllDigits(content) {
		idx, err := strconv.Atoi(content)
		if err != nil {
			return Segment{}, ferrors.NewPathSyntaxError("invalid integer index", pos)
		}
		return Segment{Type: Index, Idx: idx}, nil
	}
	if len(content) >= 1 && (content[0] == '\'' || content[0] == '"') {
		quote := content[0]
		if len(content) < 2 || content[len(content)-1] != quote {
			return Segment{}, ferrors.NewPathSyntaxError("unterminated quoted property name", pos)
		}
		inner := content[1 : len(content)-1]
		inner = strings.ReplaceAll(inner, `\`+string(quote), string(quote))
		return Segment{Type: Property, Name: inner}, nil
	}
	return Segment{Type: Expression, Expr: content}, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
