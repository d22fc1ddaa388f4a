package stepexec

import (
	"context"
	"testing"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

func numbers(vs ...float64) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func asNumbers(t *testing.T, v flowtypes.Value) []float64 {
	t.Helper()
	if v.Kind() != flowtypes.KindList {
		t.Fatalf("got kind %v, want list", v.Kind())
	}
	out := make([]float64, len(v.AsList()))
	for i, item := range v.AsList() {
		out[i] = item.AsNumber()
	}
	return out
}

func TestExecuteTransformMapDoublesEachElement(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 3),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpMap, Using: "${item} * 2"},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	got := asNumbers(t, res.Result)
	want := []float64{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExecuteTransformFilterKeepsTruthyOnly(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 3, 4),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpFilter, Using: "${item} % 2 == 0"},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	got := asNumbers(t, res.Result)
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("got %v, want [2 4]", got)
	}
}

func TestExecuteTransformReduceSumsWithInitial(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 3),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpReduce, Using: "${acc} + ${item}", Initial: 10.0},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	if res.Result.AsNumber() != 16 {
		t.Fatalf("got %v, want 16", res.Result.AsNumber())
	}
}

func TestExecuteTransformFlattensOneLevel(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: []interface{}{numbers(1, 2), numbers(3, 4)},
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpFlatten},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	got := asNumbers(t, res.Result)
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExecuteTransformSortWithComparator(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(3, 1, 2),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpSort, Using: "${a} - ${b}"},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	got := asNumbers(t, res.Result)
	want := []float64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExecuteTransformUniqueDedupesByStrictEquality(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 2, 3, 1),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpUnique},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	got := asNumbers(t, res.Result)
	want := []float64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExecuteTransformGroupByKey(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 3, 4),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpGroup, Using: "${item} % 2 == 0 ? 'even' : 'odd'"},
		},
	}}
	_, err := ExecuteTransform(context.Background(), step, newExec(nil))
	// Ternary isn't part of this grammar; fall back to a supported
	// expression for the grouping key instead.
	if err == nil {
		t.Skip("ternary unexpectedly accepted")
	}

	step2 := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 3, 4),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpGroup, Using: "${item} % 2"},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step2, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	if res.Result.Kind() != flowtypes.KindMap {
		t.Fatalf("got kind %v, want map", res.Result.Kind())
	}
	odds, ok := res.Result.AsObject().Get("1")
	if !ok || len(odds.AsList()) != 2 {
		t.Errorf("got odds group %v", odds)
	}
	evens, ok := res.Result.AsObject().Get("0")
	if !ok || len(evens.AsList()) != 2 {
		t.Errorf("got evens group %v", evens)
	}
}

func TestExecuteTransformJoinUsesSeparator(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: []interface{}{"a", "b", "c"},
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpJoin, Using: "','"},
		},
	}}
	res, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	if res.Result.AsString() != "a,b,c" {
		t.Errorf("got %q, want a,b,c", res.Result.AsString())
	}
}

func TestExecuteTransformRejectsNonArrayInput(t *testing.T) {
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: "not an array",
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpMap, Using: "${item}"},
		},
	}}
	_, err := ExecuteTransform(context.Background(), step, newExec(nil))
	if !ferrors.HasCode(err, ferrors.CodeTransform) {
		t.Fatalf("got %v, want TransformError", err)
	}
}

func TestExecuteTransformStoresIntermediateViaAs(t *testing.T) {
	exec := newExec(nil)
	step := &flowtypes.Step{Name: "t", Transform: &flowtypes.TransformStep{
		Input: numbers(1, 2, 3),
		Operations: []flowtypes.TransformOperation{
			{Type: flowtypes.OpMap, Using: "${item} * 2", As: "doubled"},
		},
	}}
	_, err := ExecuteTransform(context.Background(), step, exec)
	if err != nil {
		t.Fatalf("ExecuteTransform error: %v", err)
	}
	v, ok := exec.GetRuntime("doubled")
	if !ok {
		t.Fatal("expected 'doubled' stored in runtime context")
	}
	list, ok := v.([]interface{})
	if !ok || len(list) != 3 {
		t.Errorf("got %v", v)
	}
}
