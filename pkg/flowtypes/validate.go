package flowtypes

import (
	"fmt"
)

// ValidateFlow checks the structural invariants spec §4.10 step 1 asks
// the Flow Executor to check before calling the Dependency Resolver:
// step names unique within the flow, and exactly one variant populated
// per step (recursively, since condition/loop steps nest further
// steps).
func ValidateFlow(flow *Flow) error {
	if flow == nil {
		return fmt.Errorf("flow is nil")
	}
	if len(flow.Steps) == 0 {
		return fmt.Errorf("flow %q has no steps", flow.Name)
	}
	seen := make(map[string]bool, len(flow.Steps))
	for _, step := range flow.Steps {
		if err := validateStep(step, seen); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step *Step, seen map[string]bool) error {
	if step == nil {
		return fmt.Errorf("nil step in flow")
	}
	if step.Name == "" {
		return fmt.Errorf("step has no name")
	}
	if seen[step.Name] {
		return fmt.Errorf("duplicate step name %q", step.Name)
	}
	seen[step.Name] = true

	if !step.HasExactlyOneVariant() {
		return fmt.Errorf("step %q must have exactly one of request/transform/condition/loop/stop", step.Name)
	}

	switch step.Kind() {
	case KindCondition:
		if step.Condition.Then != nil {
			if err := validateStep(step.Condition.Then, seen); err != nil {
				return err
			}
		}
		if step.Condition.Else != nil {
			if err := validateStep(step.Condition.Else, seen); err != nil {
				return err
			}
		}
	case KindLoop:
		if !step.Loop.HasExactlyOneBody() {
			return fmt.Errorf("loop step %q must have exactly one of step/steps", step.Name)
		}
		if step.Loop.Step != nil {
			if err := validateStep(step.Loop.Step, seen); err != nil {
				return err
			}
		}
		for _, s := range step.Loop.Steps {
			if err := validateStep(s, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
