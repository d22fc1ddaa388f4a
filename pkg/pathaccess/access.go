package pathaccess

import (
	"context"
	"fmt"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// ExprEval evaluates a computed-index expression (the text inside an
// Expression segment's brackets) against whatever scope the caller is
// currently resolving. The Reference Resolver supplies this by
// re-entering the expression evaluator (spec §4.4); pathaccess itself
// has no notion of expressions beyond this callback boundary, so it
// never imports pkg/exprlang.
type ExprEval func(ctx context.Context, expr string) (flowtypes.Value, error)

// Read walks segments over root, returning the value addressed by the
// full path. It fails with a PropertyAccessError as soon as the current
// value is null/undefined, not indexable the way the segment demands, or
// does not own the requested key/index (spec §4.1).
func Read(ctx context.Context, root flowtypes.Value, segments []Segment, eval ExprEval) (flowtypes.Value, error) {
	current := root
	for _, seg := range segments {
		switch seg.Type {
		case Property:
			v, err := readProperty(current, seg.Name)
			if err != nil {
				return flowtypes.Null, err
			}
			current = v

		case Index:
			v, err := readIndex(current, seg.Idx)
			if err != nil {
				return flowtypes.Null, err
			}
			current = v

		case Expression:
			key, err := eval(ctx, seg.Expr)
			if err != nil {
				return flowtypes.Null, err
			}
			switch key.Kind() {
			case flowtypes.KindString:
				v, err := readProperty(current, key.AsString())
				if err != nil {
					return flowtypes.Null, err
				}
				current = v
			case flowtypes.KindNumber:
				v, err := readIndex(current, int(key.AsNumber()))
				if err != nil {
					return flowtypes.Null, err
				}
				current = v
			default:
				return flowtypes.Null, ferrors.NewPathSyntaxError(
					fmt.Sprintf("computed index %q must evaluate to a string or number, got %s", seg.Expr, key.Kind()), 0)
			}
		}
	}
	return current, nil
}

func readProperty(current flowtypes.Value, name string) (flowtypes.Value, error) {
	if current.IsNull() {
		return flowtypes.Null, ferrors.NewPropertyAccessError(fmt.Sprintf("cannot read property %q of null or undefined", name))
	}
	if current.Kind() != flowtypes.KindMap {
		return flowtypes.Null, ferrors.NewPropertyAccessError(fmt.Sprintf("cannot read property %q of a %s", name, current.Kind()))
	}
	v, ok := current.AsObject().Get(name)
	if !ok {
		return flowtypes.Null, ferrors.NewPropertyAccessError(fmt.Sprintf("property %q does not exist", name))
	}
	return v, nil
}

func readIndex(current flowtypes.Value, idx int) (flowtypes.Value, error) {
	if current.IsNull() {
		return flowtypes.Null, ferrors.NewPropertyAccessError(fmt.Sprintf("cannot read index %d of null or undefined", idx))
	}
	if current.Kind() != flowtypes.KindList {
		return flowtypes.Null, ferrors.NewPropertyAccessError(fmt.Sprintf("cannot read index %d of a %s", idx, current.Kind()))
	}
	list := current.AsList()
	if idx < 0 || idx >= len(list) {
		return flowtypes.Null, ferrors.NewPropertyAccessError(fmt.Sprintf("index %d out of range (length %d)", idx, len(list)))
	}
	return list[idx], nil
}
