package depgraph

import (
	"strings"
	"testing"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

func step(name string, body *flowtypes.Step) *flowtypes.Step {
	body.Name = name
	return body
}

func requestStep(params interface{}) *flowtypes.Step {
	return &flowtypes.Step{Request: &flowtypes.RequestStep{Method: "get", Params: params}}
}

func TestPlanOrdersLinearChain(t *testing.T) {
	flow := &flowtypes.Flow{Steps: []*flowtypes.Step{
		step("second", requestStep(map[string]interface{}{"id": "${first.value}"})),
		step("first", requestStep(map[string]interface{}{"id": 1})),
	}}

	plan, err := Plan(flow)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(plan) != 2 || plan[0].Name != "first" || plan[1].Name != "second" {
		t.Fatalf("got order %v, want [first second]", names(plan))
	}
}

func TestPlanPreservesDeclarationOrderAmongIndependentSteps(t *testing.T) {
	flow := &flowtypes.Flow{Steps: []*flowtypes.Step{
		step("x", requestStep(nil)),
		step("y", requestStep(nil)),
		step("z", requestStep(nil)),
	}}

	plan, err := Plan(flow)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	got := names(plan)
	want := []string{"x", "y", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPlanDetectsUnknownDependency(t *testing.T) {
	flow := &flowtypes.Flow{Steps: []*flowtypes.Step{
		step("a", requestStep(map[string]interface{}{"id": "${ghost.value}"})),
	}}

	_, err := Plan(flow)
	if !ferrors.HasCode(err, ferrors.CodeDependency) {
		t.Fatalf("got %v, want DependencyError", err)
	}
}

func TestPlanDetectsCycle(t *testing.T) {
	flow := &flowtypes.Flow{Steps: []*flowtypes.Step{
		step("ping", requestStep(map[string]interface{}{"id": "${pong.value}"})),
		step("pong", requestStep(map[string]interface{}{"id": "${ping.value}"})),
	}}

	_, err := Plan(flow)
	if !ferrors.HasCode(err, ferrors.CodeDependency) {
		t.Fatalf("got %v, want DependencyError", err)
	}
	if err == nil || !strings.Contains(err.Error(), "ping") || !strings.Contains(err.Error(), "pong") {
		t.Fatalf("error %v should name both cycle members", err)
	}
}

func TestPlanIgnoresLoopLocalVariable(t *testing.T) {
	flow := &flowtypes.Flow{Steps: []*flowtypes.Step{
		step("a", requestStep(map[string]interface{}{"items": []interface{}{1, 2, 3}})),
		step("b", &flowtypes.Step{Loop: &flowtypes.LoopStep{
			Over: "${a.items}",
			As:   "item",
			Step: requestStep(map[string]interface{}{"value": "${item}"}),
		}}),
	}}

	plan, err := Plan(flow)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if names(plan)[0] != "a" || names(plan)[1] != "b" {
		t.Fatalf("got %v, want [a b]", names(plan))
	}
}

func TestPlanWalksNestedConditionBranches(t *testing.T) {
	flow := &flowtypes.Flow{Steps: []*flowtypes.Step{
		step("a", requestStep(nil)),
		step("b", &flowtypes.Step{Condition: &flowtypes.ConditionStep{
			If:   "true",
			Then: requestStep(map[string]interface{}{"v": "${a.value}"}),
			Else: requestStep(nil),
		}}),
	}}

	plan, err := Plan(flow)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if names(plan)[0] != "a" || names(plan)[1] != "b" {
		t.Fatalf("got %v, want [a b]", names(plan))
	}
}

func names(steps []*flowtypes.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}

