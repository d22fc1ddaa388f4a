package builtins

import (
	"context"
	"fmt"
	"time"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerTime() {
	r.Register("time.now", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		return flowtypes.String(time.Now().UTC().Format(time.RFC3339Nano)), nil
	})

	r.Register("time.format", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "value")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("time.format: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return flowtypes.Null, fmt.Errorf("time.format: %w", err)
		}
		layout := optStringArg(params, "layout", time.RFC3339)
		return flowtypes.String(t.Format(layout)), nil
	})

	r.Register("time.parse", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "value")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("time.parse: %w", err)
		}
		layout := optStringArg(params, "layout", time.RFC3339)
		t, err := time.Parse(layout, s)
		if err != nil {
			return flowtypes.Null, fmt.Errorf("time.parse: %w", err)
		}
		return flowtypes.Number(float64(t.Unix())), nil
	})
}
