package builtins

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerBase64() {
	r.Register("base64.encode", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("base64.encode: %w", err)
		}
		return flowtypes.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
	})
	r.Register("base64.decode", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		s, err := stringArg(params, "data")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("base64.decode: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			if raw, err = base64.URLEncoding.DecodeString(s); err != nil {
				return flowtypes.Null, fmt.Errorf("base64.decode: %w", err)
			}
		}
		return flowtypes.String(string(raw)), nil
	})
}
