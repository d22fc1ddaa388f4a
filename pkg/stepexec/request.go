package stepexec

import (
	"context"
	"errors"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// ExecuteRequest dispatches an RPC (spec §4.9): validates method/params,
// resolves references embedded in params, and calls dispatch. Any
// dispatch failure is wrapped in a RequestError carrying the original
// cause so the Retry Engine can still classify it by code (ferrors.Error
// unwraps to the cause via Unwrap).
func ExecuteRequest(ctx context.Context, step *flowtypes.Step, exec *flowtypes.ExecutionContext, dispatch Dispatch) (flowtypes.StepResult, error) {
	req := step.Request
	if req.Method == "" {
		return flowtypes.StepResult{}, ferrors.NewRequestError(step.Name, errors.New("method must be a non-empty string"))
	}

	resolver := resolverFor(exec)
	params, err := resolveValue(ctx, req.Params, resolver.Resolve)
	if err != nil {
		return flowtypes.StepResult{}, ferrors.WithStep(err, step.Name)
	}
	if req.Params != nil && params.Kind() != flowtypes.KindMap && params.Kind() != flowtypes.KindList {
		return flowtypes.StepResult{}, ferrors.NewRequestError(step.Name, errors.New("params must be an object or array"))
	}

	result, err := dispatch(ctx, req.Method, params)
	if err != nil {
		return flowtypes.StepResult{}, ferrors.NewRequestError(step.Name, err)
	}
	return flowtypes.StepResult{Result: result, Type: flowtypes.KindRequest}, nil
}
