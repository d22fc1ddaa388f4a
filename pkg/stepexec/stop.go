package stepexec

import "github.com/flowlayer/engine/pkg/flowtypes"

// ExecuteStop marks a flow as finished (spec §4.9): it carries no
// expression to evaluate, so it cannot fail. The Flow Executor inspects
// step.Stop.EndWorkflow to decide whether to skip remaining steps.
func ExecuteStop(step *flowtypes.Step) flowtypes.StepResult {
	return flowtypes.StepResult{Result: flowtypes.Bool(step.Stop.EndWorkflow), Type: flowtypes.KindStop}
}
