package builtins

import (
	"context"

	"github.com/google/uuid"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerUUID() {
	r.Register("uuid.generate", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		return flowtypes.String(uuid.NewString()), nil
	})
}
