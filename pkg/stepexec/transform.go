package stepexec

import (
	"context"
	"strings"

	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// ExecuteTransform runs a pipeline of operations over an input (spec
// §4.9): each operation consumes the previous operation's output (or
// the resolved Input on the first operation), and every operation kind
// requires an array input.
func ExecuteTransform(ctx context.Context, step *flowtypes.Step, exec *flowtypes.ExecutionContext) (flowtypes.StepResult, error) {
	tf := step.Transform
	if len(tf.Operations) == 0 {
		return flowtypes.StepResult{}, ferrors.NewTransformError(step.Name, "operations must not be empty")
	}
	resolver := resolverFor(exec)

	value, err := resolveValue(ctx, tf.Input, resolver.Resolve)
	if err != nil {
		return flowtypes.StepResult{}, ferrors.WithStep(err, step.Name)
	}

	for _, op := range tf.Operations {
		if value.Kind() != flowtypes.KindList {
			return flowtypes.StepResult{}, ferrors.NewTransformError(step.Name,
				string(op.Type)+" requires an array input")
		}

		next, err := applyOperation(ctx, step.Name, op, value.AsList(), exec, resolver.Resolve)
		if err != nil {
			return flowtypes.StepResult{}, err
		}
		value = next

		if op.As != "" {
			exec.SetRuntime(op.As, value.ToGo())
		}
	}

	return flowtypes.StepResult{Result: value, Type: flowtypes.KindTransform}, nil
}

func applyOperation(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, exec *flowtypes.ExecutionContext, resolve exprlang.Resolve) (flowtypes.Value, error) {
	switch op.Type {
	case flowtypes.OpMap:
		return mapOp(ctx, stepName, op, items, exec, resolve)
	case flowtypes.OpFilter:
		return filterOp(ctx, stepName, op, items, exec, resolve)
	case flowtypes.OpReduce:
		return reduceOp(ctx, stepName, op, items, exec, resolve)
	case flowtypes.OpFlatten:
		return flattenOp(stepName, items)
	case flowtypes.OpSort:
		return sortOp(ctx, stepName, op, items, exec, resolve)
	case flowtypes.OpUnique:
		return uniqueOp(items), nil
	case flowtypes.OpGroup:
		return groupOp(ctx, stepName, op, items, exec, resolve)
	case flowtypes.OpJoin:
		return joinOp(ctx, stepName, op, items, resolve)
	default:
		return flowtypes.Null, ferrors.NewTransformError(stepName, "Unknown transform operation type")
	}
}

func withBinding(exec *flowtypes.ExecutionContext, key string, val flowtypes.Value, fn func() (flowtypes.Value, error)) (flowtypes.Value, error) {
	exec.SetRuntime(key, val.ToGo())
	defer exec.DeleteRuntime(key)
	return fn()
}

func mapOp(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, exec *flowtypes.ExecutionContext, resolve exprlang.Resolve) (flowtypes.Value, error) {
	out := make([]flowtypes.Value, len(items))
	for i, item := range items {
		v, err := withBinding(exec, "item", item, func() (flowtypes.Value, error) {
			return exprlang.Evaluate(ctx, op.Using, resolve)
		})
		if err != nil {
			return flowtypes.Null, ferrors.WithStep(err, stepName)
		}
		out[i] = v
	}
	return flowtypes.List(out), nil
}

func filterOp(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, exec *flowtypes.ExecutionContext, resolve exprlang.Resolve) (flowtypes.Value, error) {
	out := make([]flowtypes.Value, 0, len(items))
	for _, item := range items {
		v, err := withBinding(exec, "item", item, func() (flowtypes.Value, error) {
			return exprlang.Evaluate(ctx, op.Using, resolve)
		})
		if err != nil {
			return flowtypes.Null, ferrors.WithStep(err, stepName)
		}
		if v.Truthy() {
			out = append(out, item)
		}
	}
	return flowtypes.List(out), nil
}

func reduceOp(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, exec *flowtypes.ExecutionContext, resolve exprlang.Resolve) (flowtypes.Value, error) {
	acc := flowtypes.Null
	if op.Initial != nil {
		initial, err := resolveValue(ctx, op.Initial, resolve)
		if err != nil {
			return flowtypes.Null, ferrors.WithStep(err, stepName)
		}
		acc = initial
	}

	for _, item := range items {
		exec.SetRuntime("acc", acc.ToGo())
		exec.SetRuntime("item", item.ToGo())
		v, err := exprlang.Evaluate(ctx, op.Using, resolve)
		exec.DeleteRuntime("item")
		exec.DeleteRuntime("acc")
		if err != nil {
			return flowtypes.Null, ferrors.WithStep(err, stepName)
		}
		acc = v
	}
	return acc, nil
}

func flattenOp(stepName string, items []flowtypes.Value) (flowtypes.Value, error) {
	out := make([]flowtypes.Value, 0, len(items))
	for _, item := range items {
		if item.Kind() != flowtypes.KindList {
			out = append(out, item)
			continue
		}
		out = append(out, item.AsList()...)
	}
	return flowtypes.List(out), nil
}

func sortOp(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, exec *flowtypes.ExecutionContext, resolve exprlang.Resolve) (flowtypes.Value, error) {
	out := make([]flowtypes.Value, len(items))
	copy(out, items)

	if op.Using == "" {
		sortDefault(out)
		return flowtypes.List(out), nil
	}

	var evalErr error
	less := func(i, j int) bool {
		if evalErr != nil {
			return false
		}
		exec.SetRuntime("a", out[i].ToGo())
		exec.SetRuntime("b", out[j].ToGo())
		v, err := exprlang.Evaluate(ctx, op.Using, resolve)
		exec.DeleteRuntime("b")
		exec.DeleteRuntime("a")
		if err != nil {
			evalErr = err
			return false
		}
		n, _ := v.ToNumber()
		return n < 0
	}
	insertionSort(out, less)
	if evalErr != nil {
		return flowtypes.Null, ferrors.WithStep(evalErr, stepName)
	}
	return flowtypes.List(out), nil
}

// insertionSort is a stable sort driven by a comparator that may itself
// fail (the evaluator can error mid-comparison); sort.Slice offers no
// way to propagate that, so this stays a plain insertion sort.
func insertionSort(items []flowtypes.Value, less func(i, j int) bool) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func sortDefault(items []flowtypes.Value) {
	less := func(i, j int) bool {
		a, aok := items[i].ToNumber()
		b, bok := items[j].ToNumber()
		if aok && bok {
			return a < b
		}
		return items[i].ToDisplayString() < items[j].ToDisplayString()
	}
	insertionSort(items, less)
}

func uniqueOp(items []flowtypes.Value) flowtypes.Value {
	out := make([]flowtypes.Value, 0, len(items))
	for _, item := range items {
		dup := false
		for _, seen := range out {
			if seen.StrictEqual(item) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return flowtypes.List(out)
}

func groupOp(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, exec *flowtypes.ExecutionContext, resolve exprlang.Resolve) (flowtypes.Value, error) {
	obj := flowtypes.NewObject()
	order := make([]string, 0)
	groups := make(map[string][]flowtypes.Value)

	for _, item := range items {
		v, err := withBinding(exec, "item", item, func() (flowtypes.Value, error) {
			return exprlang.Evaluate(ctx, op.Using, resolve)
		})
		if err != nil {
			return flowtypes.Null, ferrors.WithStep(err, stepName)
		}
		key := v.ToDisplayString()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}

	for _, key := range order {
		obj.Set(key, flowtypes.List(groups[key]))
	}
	return flowtypes.Map(obj), nil
}

func joinOp(ctx context.Context, stepName string, op flowtypes.TransformOperation, items []flowtypes.Value, resolve exprlang.Resolve) (flowtypes.Value, error) {
	sep := ""
	if op.Using != "" {
		v, err := exprlang.Evaluate(ctx, op.Using, resolve)
		if err != nil {
			return flowtypes.Null, ferrors.WithStep(err, stepName)
		}
		sep = v.ToDisplayString()
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.ToDisplayString()
	}
	return flowtypes.String(strings.Join(parts, sep)), nil
}
