package builtins

import (
	"context"
	"fmt"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerMap() {
	r.Register("map.get", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		m, err := mapArg(params, "map")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("map.get: %w", err)
		}
		key, err := stringArg(params, "key")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("map.get: %w", err)
		}
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		if def, ok := arg(params, "default"); ok {
			return def, nil
		}
		return flowtypes.Null, nil
	})

	r.Register("map.delete", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		m, err := mapArg(params, "map")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("map.delete: %w", err)
		}
		key, err := stringArg(params, "key")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("map.delete: %w", err)
		}
		out := flowtypes.NewObject()
		for _, k := range m.Keys() {
			if k == key {
				continue
			}
			v, _ := m.Get(k)
			out.Set(k, v)
		}
		return flowtypes.Map(out), nil
	})

	r.Register("map.merge", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		maps, ok := arg(params, "maps")
		if !ok || maps.Kind() != flowtypes.KindList {
			return flowtypes.Null, fmt.Errorf("map.merge: 'maps' must be an array of objects")
		}
		out := flowtypes.NewObject()
		for _, m := range maps.AsList() {
			if m.Kind() != flowtypes.KindMap {
				return flowtypes.Null, fmt.Errorf("map.merge: every element of 'maps' must be an object")
			}
			for _, k := range m.AsObject().Keys() {
				v, _ := m.AsObject().Get(k)
				out.Set(k, v)
			}
		}
		return flowtypes.Map(out), nil
	})
}

func mapArg(params flowtypes.Value, name string) (*flowtypes.Object, error) {
	v, ok := arg(params, name)
	if !ok || v.Kind() != flowtypes.KindMap {
		return nil, fmt.Errorf("%s must be an object", name)
	}
	return v.AsObject(), nil
}
