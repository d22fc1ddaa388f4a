// Package stepexec implements the five Step Executors (spec §4.9):
// request, transform, condition, loop and stop. Each executor takes the
// run's ExecutionContext directly (rather than a narrower resolve
// callback) because transform/loop bind iteration-local variables into
// it for the duration of one element's evaluation, the same mechanism
// the Reference Resolver already falls back to for loop locals.
package stepexec

import (
	"context"

	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/refresolver"
)

// Dispatch is the injected RPC capability a request step calls into
// (spec §6: "dispatch(method, params, {signal}) -> Promise<any>").
// Rejections should carry a duck-typed error code for the Retry Engine
// to classify; ctx carries the step's cancellation/timeout signal.
type Dispatch func(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error)

// RunStep executes one nested step (of any kind) and returns its
// result. Condition/Loop executors call back into this rather than
// reimplementing step dispatch, since a nested body step can itself be
// any of the five kinds; the Flow Executor supplies its per-kind
// dispatch. A nested step gets no STEP_START event and no retry or
// timeout wrapping of its own; its owning top-level step bounds it.
type RunStep func(ctx context.Context, step *flowtypes.Step) (flowtypes.StepResult, error)

func resolverFor(exec *flowtypes.ExecutionContext) *refresolver.Resolver {
	return refresolver.New(exec)
}
