package builtins

import (
	"context"
	"fmt"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

// registerUtil registers the small value-introspection helpers a
// request step can call on its own resolved data (default/keys/len/
// type/int/double/string/bool) -- the expression language itself has
// no function-call syntax (spec §4.3 only grants it operators,
// templates and ${} references), so these live as ordinary dispatch
// methods instead.
func (r *Registry) registerUtil() {
	r.Register("util.default", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok || v.IsNull() {
			if def, ok := arg(params, "default"); ok {
				return def, nil
			}
			return flowtypes.Null, nil
		}
		return v, nil
	})

	r.Register("util.keys", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok || v.Kind() != flowtypes.KindMap {
			return flowtypes.Null, fmt.Errorf("util.keys: 'value' must be an object")
		}
		keys := v.AsObject().Keys()
		out := make([]flowtypes.Value, len(keys))
		for i, k := range keys {
			out[i] = flowtypes.String(k)
		}
		return flowtypes.List(out), nil
	})

	r.Register("util.len", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.len: missing 'value'")
		}
		switch v.Kind() {
		case flowtypes.KindString:
			return flowtypes.Number(float64(len([]rune(v.AsString())))), nil
		case flowtypes.KindList:
			return flowtypes.Number(float64(len(v.AsList()))), nil
		case flowtypes.KindMap:
			return flowtypes.Number(float64(v.AsObject().Len())), nil
		default:
			return flowtypes.Null, fmt.Errorf("util.len: value of kind %s has no length", v.Kind())
		}
	})

	r.Register("util.type", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.type: missing 'value'")
		}
		return flowtypes.String(v.Kind().String()), nil
	})

	r.Register("util.int", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.int: missing 'value'")
		}
		n, ok := v.ToNumber()
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.int: cannot coerce %s to a number", v.Kind())
		}
		return flowtypes.Number(float64(int64(n))), nil
	})

	r.Register("util.double", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.double: missing 'value'")
		}
		n, ok := v.ToNumber()
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.double: cannot coerce %s to a number", v.Kind())
		}
		return flowtypes.Number(n), nil
	})

	r.Register("util.string", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.string: missing 'value'")
		}
		return flowtypes.String(v.ToDisplayString()), nil
	})

	r.Register("util.bool", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("util.bool: missing 'value'")
		}
		return flowtypes.Bool(v.Truthy()), nil
	})
}
