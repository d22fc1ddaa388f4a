package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerJSON() {
	r.Register("json.encode", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		v, ok := arg(params, "value")
		if !ok {
			return flowtypes.Null, fmt.Errorf("json.encode: missing 'value' argument")
		}
		raw, err := json.Marshal(v.ToGo())
		if err != nil {
			return flowtypes.Null, fmt.Errorf("json.encode: %w", err)
		}
		return flowtypes.String(string(raw)), nil
	})
	r.Register("json.decode", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("json.decode: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(s)))
		dec.UseNumber()
		var out interface{}
		if err := dec.Decode(&out); err != nil {
			return flowtypes.Null, fmt.Errorf("json.decode: %w", err)
		}
		return flowtypes.FromGo(out), nil
	})
}
