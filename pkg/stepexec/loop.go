package stepexec

import (
	"context"

	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Progress is called once per executed iteration (spec §6:
// STEP_PROGRESS{stepName, iteration, total, percent}).
type Progress func(iteration, total int)

// ExecuteLoop iterates `over`, binding each element to `as` in the
// runtime context for the duration of its body (spec §4.9, §5's
// "loop body mutates runtime context only by adding/removing its own
// binding" rule), running one optional guard condition per element,
// and stopping after MaxIterations if set.
func ExecuteLoop(ctx context.Context, step *flowtypes.Step, exec *flowtypes.ExecutionContext, run RunStep, progress Progress) (flowtypes.StepResult, error) {
	loop := step.Loop
	resolver := resolverFor(exec)

	if !loop.HasExactlyOneBody() {
		return flowtypes.StepResult{}, ferrors.NewLoopError(step.Name, "Loop must have either step or steps defined")
	}

	overVal, err := exprlang.Evaluate(ctx, loop.Over, resolver.Resolve)
	if err != nil {
		return flowtypes.StepResult{}, ferrors.WithStep(err, step.Name)
	}
	if overVal.Kind() != flowtypes.KindList {
		return flowtypes.StepResult{}, ferrors.NewLoopError(step.Name, "Expected array for loop iteration")
	}
	items := overVal.AsList()

	total := len(items)
	if loop.MaxIterations > 0 && loop.MaxIterations < total {
		total = loop.MaxIterations
	}

	results := make([]flowtypes.Value, 0, total)
	iteration := 0
	for _, item := range items {
		if loop.MaxIterations > 0 && iteration >= loop.MaxIterations {
			break
		}

		exec.SetRuntime(loop.As, item.ToGo())
		res, err := runOneIteration(ctx, step.Name, loop, resolver.Resolve, run)
		exec.DeleteRuntime(loop.As)
		if err != nil {
			return flowtypes.StepResult{}, err
		}
		if res == nil {
			continue // guard condition false: skip, don't count toward progress
		}

		iteration++
		results = append(results, res.Result)
		if progress != nil {
			progress(iteration, total)
		}
	}

	return flowtypes.StepResult{Result: flowtypes.List(results), Type: flowtypes.KindLoop}, nil
}

// runOneIteration evaluates the optional guard condition and, if it
// passes, runs the loop body (a single step or a sequence of steps,
// spec §4.9's "exactly one of step/steps"). A nil, nil return means the
// guard rejected this element.
func runOneIteration(ctx context.Context, stepName string, loop *flowtypes.LoopStep, resolve exprlang.Resolve, run RunStep) (*flowtypes.StepResult, error) {
	if loop.Condition != "" {
		condVal, err := exprlang.Evaluate(ctx, loop.Condition, resolve)
		if err != nil {
			return nil, err
		}
		if condVal.Kind() != flowtypes.KindBool {
			return nil, ferrors.NewLoopError(stepName, "Loop condition must evaluate to boolean")
		}
		if !condVal.AsBool() {
			return nil, nil
		}
	}

	if loop.Step != nil {
		res, err := run(ctx, loop.Step)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}

	var last flowtypes.StepResult
	for _, s := range loop.Steps {
		res, err := run(ctx, s)
		if err != nil {
			return nil, err
		}
		last = res
	}
	return &last, nil
}
