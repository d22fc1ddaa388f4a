package stepexec

import (
	"context"

	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Skip notifies the Flow Executor that a nested step was not run
// because its branch was not taken (spec §6: STEP_SKIP{stepName,
// reason}, scenario 3 of spec §8).
type Skip func(step *flowtypes.Step, reason string)

// ExecuteCondition evaluates `if` and dispatches to the then/else body
// (spec §4.9): the condition must evaluate to a strict boolean, and a
// missing `else` yields null rather than running anything. The branch
// not taken is reported to skip rather than silently dropped.
func ExecuteCondition(ctx context.Context, step *flowtypes.Step, exec *flowtypes.ExecutionContext, run RunStep, skip Skip) (flowtypes.StepResult, error) {
	cond := step.Condition
	resolver := resolverFor(exec)

	val, err := exprlang.Evaluate(ctx, cond.If, resolver.Resolve)
	if err != nil {
		return flowtypes.StepResult{}, ferrors.WithStep(err, step.Name)
	}
	if val.Kind() != flowtypes.KindBool {
		return flowtypes.StepResult{}, ferrors.NewConditionError(step.Name, "Condition must evaluate to boolean")
	}

	if val.AsBool() {
		if cond.Else != nil {
			skip(cond.Else, "condition false branch not taken")
		}
		return run(ctx, cond.Then)
	}
	if cond.Else != nil {
		skip(cond.Then, "condition true branch not taken")
		return run(ctx, cond.Else)
	}
	skip(cond.Then, "condition true branch not taken")
	return flowtypes.StepResult{Result: flowtypes.Null, Type: flowtypes.KindCondition}, nil
}
