package exprlang

import (
	"context"
	"fmt"
	"math"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Resolve looks up the value a reference's path addresses. The Reference
// Resolver implements this; exprlang only depends on the interface so it
// never imports upward (spec's dependency order has Reference Resolver
// sit above the evaluator, yet the evaluator must call back into it for
// `${...}` nodes — this callback boundary is how the cycle is avoided).
type Resolve func(ctx context.Context, path string) (flowtypes.Value, error)

// Evaluate tokenizes, parses, and evaluates expr under ctx's deadline,
// returning the resulting value (spec §4.3). Any failure surfaces as an
// ExpressionError carrying the original expression and the inner cause.
func Evaluate(ctx context.Context, expr string, resolve Resolve) (flowtypes.Value, error) {
	toks, err := Tokenize(expr)
	if err != nil {
		return flowtypes.Null, ferrors.NewExpressionError(expr, err)
	}
	node, err := Parse(toks)
	if err != nil {
		return flowtypes.Null, ferrors.NewExpressionError(expr, err)
	}
	v, err := evalNode(ctx, node, resolve)
	if err != nil {
		if ferrors.HasCode(err, ferrors.CodeExpression) {
			return flowtypes.Null, err
		}
		return flowtypes.Null, ferrors.NewExpressionError(expr, err)
	}
	return v, nil
}

// checkDeadline implements §4.3's "before each AST step, check elapsed
// wall time" rule via ctx cancellation, honoring §5's "cancellation
// treats... as an immediate timeout" contract.
func checkDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func evalNode(ctx context.Context, n *Node, resolve Resolve) (flowtypes.Value, error) {
	if err := checkDeadline(ctx); err != nil {
		return flowtypes.Null, err
	}
	switch n.Kind {
	case NodeLiteral:
		return n.Literal, nil

	case NodeReference:
		v, err := resolve(ctx, n.Path)
		if err != nil {
			if ferrors.HasCode(err, ferrors.CodePropertyAccess) || ferrors.HasCode(err, ferrors.CodePathSyntax) {
				return flowtypes.Null, err // wrapped by the caller with the outer expression
			}
			return flowtypes.Null, err
		}
		return v, nil

	case NodeOperation:
		return evalOperation(ctx, n, resolve)

	case NodeObject:
		return evalObject(ctx, n, resolve)

	case NodeArray:
		return evalArray(ctx, n, resolve)

	case NodeTemplate:
		return evalTemplate(ctx, n, resolve)

	default:
		return flowtypes.Null, fmt.Errorf("exprlang: unknown AST node kind %d", n.Kind)
	}
}

func evalOperation(ctx context.Context, n *Node, resolve Resolve) (flowtypes.Value, error) {
	switch n.Op {
	case "unary!":
		v, err := evalNode(ctx, n.Right, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		return flowtypes.Bool(!v.Truthy()), nil
	case "unary-":
		v, err := evalNode(ctx, n.Right, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		f, _ := v.ToNumber()
		return flowtypes.Number(-f), nil
	case "unary+":
		v, err := evalNode(ctx, n.Right, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		f, _ := v.ToNumber()
		return flowtypes.Number(f), nil

	case "&&":
		left, err := evalNode(ctx, n.Left, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		if !left.Truthy() {
			return left, nil
		}
		return evalNode(ctx, n.Right, resolve)

	case "||":
		left, err := evalNode(ctx, n.Left, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		if left.Truthy() {
			return left, nil
		}
		return evalNode(ctx, n.Right, resolve)

	case "??":
		left, err := evalNode(ctx, n.Left, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		if !left.IsNull() {
			return left, nil
		}
		return evalNode(ctx, n.Right, resolve)

	case "==":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		return flowtypes.Bool(l.LooseEqual(r)), nil
	case "!=":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		return flowtypes.Bool(!l.LooseEqual(r)), nil
	case "===":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		return flowtypes.Bool(l.StrictEqual(r)), nil
	case "!==":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		return flowtypes.Bool(!l.StrictEqual(r)), nil

	case "<", "<=", ">", ">=":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		return evalRelational(n.Op, l, r)

	case "+":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		if l.Kind() == flowtypes.KindString || r.Kind() == flowtypes.KindString {
			return flowtypes.String(l.ToDisplayString() + r.ToDisplayString()), nil
		}
		lf, _ := l.ToNumber()
		rf, _ := r.ToNumber()
		return flowtypes.Number(lf + rf), nil

	case "-", "*":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		lf, _ := l.ToNumber()
		rf, _ := r.ToNumber()
		if n.Op == "-" {
			return flowtypes.Number(lf - rf), nil
		}
		return flowtypes.Number(lf * rf), nil

	case "/":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		lf, _ := l.ToNumber()
		rf, _ := r.ToNumber()
		if rf == 0 {
			return flowtypes.Null, fmt.Errorf("division by zero")
		}
		return flowtypes.Number(lf / rf), nil

	case "%":
		l, r, err := evalBinaryOperands(ctx, n, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		lf, _ := l.ToNumber()
		rf, _ := r.ToNumber()
		if rf == 0 {
			return flowtypes.Null, fmt.Errorf("modulo by zero")
		}
		return flowtypes.Number(math.Mod(lf, rf)), nil

	default:
		return flowtypes.Null, fmt.Errorf("exprlang: unknown operator %q", n.Op)
	}
}

func evalBinaryOperands(ctx context.Context, n *Node, resolve Resolve) (flowtypes.Value, flowtypes.Value, error) {
	l, err := evalNode(ctx, n.Left, resolve)
	if err != nil {
		return flowtypes.Null, flowtypes.Null, err
	}
	r, err := evalNode(ctx, n.Right, resolve)
	if err != nil {
		return flowtypes.Null, flowtypes.Null, err
	}
	return l, r, nil
}

func evalRelational(op string, l, r flowtypes.Value) (flowtypes.Value, error) {
	if l.Kind() == flowtypes.KindString && r.Kind() == flowtypes.KindString {
		ls, rs := l.AsString(), r.AsString()
		switch op {
		case "<":
			return flowtypes.Bool(ls < rs), nil
		case "<=":
			return flowtypes.Bool(ls <= rs), nil
		case ">":
			return flowtypes.Bool(ls > rs), nil
		case ">=":
			return flowtypes.Bool(ls >= rs), nil
		}
	}
	lf, _ := l.ToNumber()
	rf, _ := r.ToNumber()
	switch op {
	case "<":
		return flowtypes.Bool(lf < rf), nil
	case "<=":
		return flowtypes.Bool(lf <= rf), nil
	case ">":
		return flowtypes.Bool(lf > rf), nil
	case ">=":
		return flowtypes.Bool(lf >= rf), nil
	}
	return flowtypes.Null, fmt.Errorf("exprlang: unknown relational operator %q", op)
}

func evalObject(ctx context.Context, n *Node, resolve Resolve) (flowtypes.Value, error) {
	obj := flowtypes.NewObject()
	for _, entry := range n.Entries {
		if entry.Spread {
			v, err := evalNode(ctx, entry.Value, resolve)
			if err != nil {
				return flowtypes.Null, err
			}
			if v.Kind() != flowtypes.KindMap {
				return flowtypes.Null, fmt.Errorf("cannot spread a non-object into an object literal")
			}
			for _, k := range v.AsObject().Keys() {
				val, _ := v.AsObject().Get(k)
				obj.Set(k, val)
			}
			continue
		}
		key := entry.KeyLiteral
		if entry.Key != nil {
			kv, err := evalNode(ctx, entry.Key, resolve)
			if err != nil {
				return flowtypes.Null, err
			}
			key = kv.ToDisplayString()
		}
		val, err := evalNode(ctx, entry.Value, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		obj.Set(key, val)
	}
	return flowtypes.Map(obj), nil
}

func evalArray(ctx context.Context, n *Node, resolve Resolve) (flowtypes.Value, error) {
	items := make([]flowtypes.Value, 0, len(n.Elements))
	for _, el := range n.Elements {
		if el.Spread {
			v, err := evalNode(ctx, el.Value, resolve)
			if err != nil {
				return flowtypes.Null, err
			}
			if v.Kind() != flowtypes.KindList {
				return flowtypes.Null, fmt.Errorf("cannot spread a non-iterable value into an array literal")
			}
			items = append(items, v.AsList()...)
			continue
		}
		v, err := evalNode(ctx, el.Value, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		items = append(items, v)
	}
	return flowtypes.List(items), nil
}

func evalTemplate(ctx context.Context, n *Node, resolve Resolve) (flowtypes.Value, error) {
	out := ""
	for _, part := range n.Parts {
		v, err := evalNode(ctx, part, resolve)
		if err != nil {
			return flowtypes.Null, err
		}
		out += v.ToDisplayString()
	}
	return flowtypes.String(out), nil
}
