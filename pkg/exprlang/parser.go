package exprlang

import (
	"strconv"
	"strings"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Parser folds a flat token list into an AST following the precedence
// cascade of spec §6's grammar summary (a recursive-descent rendering of
// the same left-associative, same-precedence-level grouping the
// Shunting-yard precedence table in §4.3 describes). Where the table and
// the grammar disagree on `??`'s precedence, the grammar is authoritative
// here; see DESIGN.md.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse builds the AST for one complete expression from its token list.
func Parse(tokens []Token) (*Node, error) {
	p := &Parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, ferrors.NewTokenizerError("unexpected trailing tokens", p.current().Pos)
	}
	return node, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokPunctuation, Text: ""}
	}
	return p.tokens[p.pos]
}

func (p *Parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *Parser) matchOp(ops ...string) (Token, bool) {
	if p.atEnd() || p.current().Type != TokOperator {
		return Token{}, false
	}
	for _, op := range ops {
		if p.current().Text == op {
			return p.advance(), true
		}
	}
	return Token{}, false
}

func (p *Parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("||", "??")
		if !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperation, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseAnd() (*Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("&&")
		if !ok {
			return left, nil
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperation, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseEquality() (*Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("==", "!=", "===", "!==")
		if !ok {
			return left, nil
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperation, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseRelational() (*Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperation, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (*Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperation, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperation, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (*Node, error) {
	if op, ok := p.matchOp("!", "-", "+"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeOperation, Op: "unary" + op.Text, Right: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (*Node, error) {
	if p.atEnd() {
		return nil, ferrors.NewTokenizerError("unexpected end of expression", 0)
	}
	tok := p.current()
	switch tok.Type {
	case TokNumber:
		p.advance()
		return &Node{Kind: NodeLiteral, Literal: flowtypes.Number(tok.Number)}, nil

	case TokString:
		p.advance()
		return &Node{Kind: NodeLiteral, Literal: flowtypes.String(tok.Text)}, nil

	case TokIdentifier:
		p.advance()
		switch tok.Text {
		case "true":
			return &Node{Kind: NodeLiteral, Literal: flowtypes.Bool(true)}, nil
		case "false":
			return &Node{Kind: NodeLiteral, Literal: flowtypes.Bool(false)}, nil
		case "null", "undefined":
			return &Node{Kind: NodeLiteral, Literal: flowtypes.Null}, nil
		default:
			return nil, ferrors.NewTokenizerError("unexpected identifier outside a reference: "+tok.Text, tok.Pos)
		}

	case TokReference:
		p.advance()
		return &Node{Kind: NodeReference, Path: referencePath(tok)}, nil

	case TokTemplateLiteral:
		p.advance()
		return buildTemplate(tok)

	case TokArrayLiteral:
		p.advance()
		return buildArray(tok)

	case TokObjectLiteral:
		p.advance()
		return buildObject(tok)

	case TokPunctuation:
		if tok.Text == "(" {
			p.advance()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if p.atEnd() || p.current().Text != ")" {
				return nil, ferrors.NewTokenizerError("expected ')'", tok.Pos)
			}
			p.advance()
			return inner, nil
		}
		return nil, ferrors.NewTokenizerError("unexpected token "+tok.Text, tok.Pos)

	default:
		return nil, ferrors.NewTokenizerError("unexpected reference in operator position", tok.Pos)
	}
}

// referencePath strips the "${" prefix and trailing "}" from a reference
// token's raw text, yielding the path string the Reference Resolver (and
// beneath it, the Path Accessor) operates on.
func referencePath(tok Token) string {
	raw := tok.Raw
	raw = strings.TrimPrefix(raw, "${")
	raw = strings.TrimSuffix(raw, "}")
	return raw
}

// buildTemplate turns a template-literal token's children (interleaved
// literal-string and reference tokens) into a NodeTemplate.
func buildTemplate(tok Token) (*Node, error) {
	parts := make([]*Node, 0, len(tok.Children))
	for _, child := range tok.Children {
		switch child.Type {
		case TokString:
			parts = append(parts, &Node{Kind: NodeLiteral, Literal: flowtypes.String(child.Text)})
		case TokReference:
			parts = append(parts, &Node{Kind: NodeReference, Path: referencePath(child)})
		default:
			return nil, ferrors.NewTokenizerError("unexpected token inside template literal", child.Pos)
		}
	}
	return &Node{Kind: NodeTemplate, Parts: parts}, nil
}

// buildArray splits an array-literal token's children on top-level
// commas and parses each group as an element, honoring leading spreads.
func buildArray(tok Token) (*Node, error) {
	groups := splitOnTopLevelCommas(tok.Children)
	elements := make([]ArrayElement, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		if group[0].Type == TokOperator && group[0].Text == "..." {
			val, err := parseGroup(group[1:])
			if err != nil {
				return nil, err
			}
			if err := validateSpreadTarget(val); err != nil {
				return nil, err
			}
			elements = append(elements, ArrayElement{Spread: true, Value: val})
			continue
		}
		val, err := parseGroup(group)
		if err != nil {
			return nil, err
		}
		elements = append(elements, ArrayElement{Value: val})
	}
	return &Node{Kind: NodeArray, Elements: elements}, nil
}

// buildObject splits an object-literal token's children on top-level
// commas and parses each group as `key: value` or a spread.
func buildObject(tok Token) (*Node, error) {
	groups := splitOnTopLevelCommas(tok.Children)
	entries := make([]ObjectEntry, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		if group[0].Type == TokOperator && group[0].Text == "..." {
			val, err := parseGroup(group[1:])
			if err != nil {
				return nil, err
			}
			if err := validateSpreadTarget(val); err != nil {
				return nil, err
			}
			entries = append(entries, ObjectEntry{Spread: true, Value: val})
			continue
		}
		if len(group) < 2 || !(group[1].Type == TokPunctuation && group[1].Text == ":") {
			return nil, ferrors.NewTokenizerError("malformed object literal entry", group[0].Pos)
		}
		valNode, err := parseGroup(group[2:])
		if err != nil {
			return nil, err
		}
		switch group[0].Type {
		case TokString:
			entries = append(entries, ObjectEntry{KeyLiteral: group[0].Text, Value: valNode})
		case TokIdentifier:
			entries = append(entries, ObjectEntry{KeyLiteral: group[0].Text, Value: valNode})
		case TokNumber:
			entries = append(entries, ObjectEntry{KeyLiteral: formatKeyNumber(group[0].Number), Value: valNode})
		case TokReference:
			entries = append(entries, ObjectEntry{Key: &Node{Kind: NodeReference, Path: referencePath(group[0])}, Value: valNode})
		default:
			return nil, ferrors.NewTokenizerError("invalid object literal key", group[0].Pos)
		}
	}
	return &Node{Kind: NodeObject, Entries: entries}, nil
}

func formatKeyNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// validateSpreadTarget enforces that `...` only precedes a reference, an
// object/array literal, a template, or a parenthesised expression — not a
// bare literal scalar (spec §4.2).
func validateSpreadTarget(n *Node) error {
	switch n.Kind {
	case NodeReference, NodeObject, NodeArray, NodeTemplate, NodeOperation:
		return nil
	case NodeLiteral:
		return ferrors.NewTokenizerError("cannot spread a literal value", 0)
	default:
		return nil
	}
}

func parseGroup(tokens []Token) (*Node, error) {
	if len(tokens) == 0 {
		return nil, ferrors.NewTokenizerError("expected expression", 0)
	}
	return Parse(tokens)
}

// splitOnTopLevelCommas splits a flat token list on TokPunctuation ","
// that appears outside any '(' ')' nesting. Composite tokens (reference,
// array/object literal, template) are already atomic in this list, so
// only plain parens need depth tracking here.
func splitOnTopLevelCommas(tokens []Token) [][]Token {
	var groups [][]Token
	var current []Token
	depth := 0
	for _, tok := range tokens {
		if tok.Type == TokPunctuation {
			switch tok.Text {
			case "(", "{":
				depth++
			case ")", "}":
				depth--
			case ",":
				if depth == 0 {
					groups = append(groups, current)
					current = nil
					continue
				}
			}
		}
		current = append(current, tok)
	}
	groups = append(groups, current)
	return groups
}
