package builtins

import (
	"context"
	"fmt"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerList() {
	r.Register("list.concat", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		lists, ok := arg(params, "lists")
		if !ok || lists.Kind() != flowtypes.KindList {
			return flowtypes.Null, fmt.Errorf("list.concat: 'lists' must be an array of arrays")
		}
		out := make([]flowtypes.Value, 0)
		for _, l := range lists.AsList() {
			if l.Kind() != flowtypes.KindList {
				return flowtypes.Null, fmt.Errorf("list.concat: every element of 'lists' must be an array")
			}
			out = append(out, l.AsList()...)
		}
		return flowtypes.List(out), nil
	})

	r.Register("list.prepend", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		l, ok := arg(params, "list")
		if !ok || l.Kind() != flowtypes.KindList {
			return flowtypes.Null, fmt.Errorf("list.prepend: 'list' must be an array")
		}
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("list.prepend: missing 'value'")
		}
		out := append([]flowtypes.Value{v}, l.AsList()...)
		return flowtypes.List(out), nil
	})

	r.Register("list.range", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		start := intArg(params, "start", 0)
		end := intArg(params, "end", 0)
		if end < start {
			return flowtypes.List(nil), nil
		}
		out := make([]flowtypes.Value, 0, end-start)
		for i := start; i < end; i++ {
			out = append(out, flowtypes.Number(float64(i)))
		}
		return flowtypes.List(out), nil
	})
}
