// Package refresolver implements the Reference Resolver (spec §4.4) and
// the Reference Collector (spec §4.5): the former resolves a parsed
// `${...}` path against step results, flow context, run metadata, and
// loop-local variables at evaluation time; the latter statically scans
// an expression string for the step names it depends on, without
// evaluating anything, feeding the Dependency Resolver.
package refresolver

import (
	"context"

	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/pathaccess"
)

// reservedRoots names the scope roots that are never step references
// (spec §3's invariant, §4.5's collector rules).
var reservedRoots = map[string]bool{
	"context":  true,
	"metadata": true,
	"item":     true,
	"acc":      true,
	"a":        true,
	"b":        true,
}

// Resolver resolves reference paths against one run's ExecutionContext.
type Resolver struct {
	exec *flowtypes.ExecutionContext
}

// New builds a Resolver bound to a run's execution state.
func New(exec *flowtypes.ExecutionContext) *Resolver {
	return &Resolver{exec: exec}
}

// Resolve implements exprlang.Resolve: it is what the evaluator calls
// back into for every NodeReference it walks.
func (r *Resolver) Resolve(ctx context.Context, path string) (flowtypes.Value, error) {
	segments, err := pathaccess.Parse(path)
	if err != nil {
		return flowtypes.Null, err
	}
	rootName := segments[0].Name

	rootValue, err := r.resolveRoot(rootName)
	if err != nil {
		return flowtypes.Null, err
	}
	if len(segments) == 1 {
		return rootValue, nil
	}

	eval := func(ctx context.Context, expr string) (flowtypes.Value, error) {
		return exprlang.Evaluate(ctx, expr, r.Resolve)
	}
	return pathaccess.Read(ctx, rootValue, segments[1:], eval)
}

// resolveRoot implements step 1-2 of spec §4.4: recognise context,
// metadata, or a declared local (loop/transform) variable and root
// there; otherwise root in the named step's result, or fail with
// UnknownReferenceError.
func (r *Resolver) resolveRoot(name string) (flowtypes.Value, error) {
	switch name {
	case "context":
		return flowtypes.FromGo(r.exec.RuntimeSnapshot()), nil
	case "metadata":
		return flowtypes.FromGo(r.exec.Metadata), nil
	}
	if v, ok := r.exec.GetRuntime(name); ok {
		return flowtypes.FromGo(v), nil
	}
	if sr, ok := r.exec.GetResult(name); ok {
		return sr.Result, nil
	}
	return flowtypes.Null, ferrors.NewUnknownReferenceError(name)
}
