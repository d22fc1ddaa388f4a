package builtins

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerMath() {
	r.Register("math.abs", mathUnary(math.Abs))
	r.Register("math.floor", mathUnary(math.Floor))
	r.Register("math.ceil", mathUnary(math.Ceil))
	r.Register("math.round", mathUnary(math.Round))

	r.Register("math.min", mathBinary(math.Min))
	r.Register("math.max", mathBinary(math.Max))

	r.Register("math.random", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		lo := numArg(params, "min", 0)
		hi := numArg(params, "max", 1)
		return flowtypes.Number(lo + rand.Float64()*(hi-lo)), nil
	})
}

func mathUnary(f func(float64) float64) Func {
	return func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok || v.Kind() != flowtypes.KindNumber {
			return flowtypes.Null, fmt.Errorf("'value' must be a number")
		}
		return flowtypes.Number(f(v.AsNumber())), nil
	}
}

func mathBinary(f func(a, b float64) float64) Func {
	return func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		a, ok := arg(params, "a")
		if !ok || a.Kind() != flowtypes.KindNumber {
			return flowtypes.Null, fmt.Errorf("'a' must be a number")
		}
		b, ok := arg(params, "b")
		if !ok || b.Kind() != flowtypes.KindNumber {
			return flowtypes.Null, fmt.Errorf("'b' must be a number")
		}
		return flowtypes.Number(f(a.AsNumber(), b.AsNumber())), nil
	}
}

func numArg(params flowtypes.Value, name string, def float64) float64 {
	v, ok := arg(params, name)
	if !ok || v.Kind() != flowtypes.KindNumber {
		return def
	}
	return v.AsNumber()
}
