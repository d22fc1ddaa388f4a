// Package exprlang implements the expression subsystem (spec §4.2,
// §4.3): a tokenizer that turns a `${...}` expression into a tree of
// tokens, a recursive-descent parser (no Shunting-yard or postfix stage)
// that folds those tokens into an AST,
// and a safe evaluator that walks the AST under a deadline with no
// access to the host environment. The split across token.go/ast.go/
// tokenizer.go/parser.go/eval.go mirrors the teacher's pkg/expr layout;
// the grammar itself is rewritten for the spec's JavaScript-flavored
// semantics rather than the teacher's Python-flavored one (`and`/`or`,
// `//`, GCW-specific int/double split).
package exprlang

// TokenType identifies one of the nine token shapes of spec §3's tagged
// Token union.
type TokenType int

const (
	TokNumber TokenType = iota
	TokString
	TokIdentifier
	TokOperator
	TokPunctuation
	TokReference       // children: the tokens inside ${ ... }
	TokObjectLiteral   // children: the tokens inside { ... }
	TokArrayLiteral    // children: the tokens inside [ ... ]
	TokTemplateLiteral // children: interleaved string/reference tokens
)

func (t TokenType) String() string {
	switch t {
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokIdentifier:
		return "identifier"
	case TokOperator:
		return "operator"
	case TokPunctuation:
		return "punctuation"
	case TokReference:
		return "reference"
	case TokObjectLiteral:
		return "object_literal"
	case TokArrayLiteral:
		return "array_literal"
	case TokTemplateLiteral:
		return "template_literal"
	default:
		return "unknown"
	}
}

// Token is one node of the token tree (spec §3). Composite kinds
// (reference/object_literal/array_literal/template_literal) carry
// Children instead of a scalar value; every token carries Raw, the
// literal source slice it was parsed from, which is load-bearing for
// the tokenizer's round-trip property (spec §8).
type Token struct {
	Type TokenType
	Raw  string
	Pos  int

	// Number holds the parsed value for TokNumber.
	Number float64
	// Text holds the resolved text for TokString (escapes applied),
	// the name for TokIdentifier, and the symbol for TokOperator and
	// TokPunctuation.
	Text string

	Children []Token
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
