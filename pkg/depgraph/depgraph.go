// Package depgraph implements the Dependency Resolver (spec §4.6):
// scanning every step's expressions for the step names it references,
// building a directed "depends-on" graph, validating every reference
// names a real step, and producing a topologically valid execution plan
// that breaks ties by declaration order.
package depgraph

import (
	"fmt"
	"strings"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/refresolver"
)

// Plan returns flow.Steps reordered so that, for every step A that
// references step B's result, B precedes A (spec §8: "if step A uses
// ${B.x}, B precedes A"). It fails with a DependencyError naming the
// offending reference on an unknown dependency, or naming every member
// of the cycle on a cyclic graph.
func Plan(flow *flowtypes.Flow) ([]*flowtypes.Step, error) {
	byName := make(map[string]*flowtypes.Step, len(flow.Steps))
	order := make([]string, 0, len(flow.Steps))
	for _, s := range flow.Steps {
		byName[s.Name] = s
		order = append(order, s.Name)
	}

	deps := make(map[string][]string, len(flow.Steps))
	for _, s := range flow.Steps {
		refs, err := collectStepDependencies(s)
		if err != nil {
			return nil, err
		}
		delete(refs, s.Name) // a step never depends on itself
		list := make([]string, 0, len(refs))
		for name := range refs {
			if _, ok := byName[name]; !ok {
				return nil, ferrors.NewDependencyError(
					fmt.Sprintf("unknown dependency %q referenced by step %q", name, s.Name))
			}
			list = append(list, name)
		}
		deps[s.Name] = list
	}

	sorted, err := topoSort(order, deps)
	if err != nil {
		return nil, err
	}

	steps := make([]*flowtypes.Step, len(sorted))
	for i, name := range sorted {
		steps[i] = byName[name]
	}
	return steps, nil
}

// topoSort performs a Kahn-style sort: each round scans the declared
// order and greedily resolves every step whose dependencies are all
// already resolved, so steps with no dependency on one another keep
// their declared order (spec §4.6 step 5).
func topoSort(order []string, deps map[string][]string) ([]string, error) {
	resolved := make(map[string]bool, len(order))
	result := make([]string, 0, len(order))

	for len(result) < len(order) {
		progressed := false
		for _, name := range order {
			if resolved[name] {
				continue
			}
			ready := true
			for _, dep := range deps[name] {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				resolved[name] = true
				result = append(result, name)
				progressed = true
			}
		}
		if !progressed {
			cycle := findCycle(order, deps, resolved)
			return nil, ferrors.NewDependencyError("cycle " + strings.Join(cycle, " -> "))
		}
	}
	return result, nil
}

// findCycle runs a DFS over the unresolved subgraph to report every
// member of one cycle (spec §4.6 step 4).
func findCycle(order []string, deps map[string][]string, resolved map[string]bool) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	color := make(map[string]int, len(order))
	var path []string

	var dfs func(n string) []string
	dfs = func(n string) []string {
		color[n] = visiting
		path = append(path, n)
		for _, dep := range deps[n] {
			if resolved[dep] {
				continue
			}
			if color[dep] == visiting {
				idx := indexOf(path, dep)
				cyc := append([]string{}, path[idx:]...)
				return append(cyc, dep)
			}
			if color[dep] == unvisited {
				if c := dfs(dep); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = done
		return nil
	}

	for _, n := range order {
		if resolved[n] || color[n] != unvisited {
			continue
		}
		if c := dfs(n); c != nil {
			return c
		}
	}
	return nil
}

func indexOf(path []string, name string) int {
	for i, p := range path {
		if p == name {
			return i
		}
	}
	return 0
}

// collectStepDependencies walks a step's full body — including nested
// condition/loop bodies — gathering every external step name its
// expressions reference, merging each loop's `as` binding into the
// local-variable set for its nested scan (spec §4.6 step 1).
func collectStepDependencies(step *flowtypes.Step) (map[string]bool, error) {
	refs := make(map[string]bool)
	if err := walkStepRefs(step, map[string]bool{}, refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func walkStepRefs(step *flowtypes.Step, locals map[string]bool, refs map[string]bool) error {
	switch step.Kind() {
	case flowtypes.KindRequest:
		return scanValue(step.Request.Params, locals, refs)

	case flowtypes.KindTransform:
		if err := scanValue(step.Transform.Input, locals, refs); err != nil {
			return err
		}
		for _, op := range step.Transform.Operations {
			if op.Using != "" {
				if err := scanExpr(op.Using, locals, refs); err != nil {
					return err
				}
			}
			if err := scanValue(op.Initial, locals, refs); err != nil {
				return err
			}
		}
		return nil

	case flowtypes.KindCondition:
		if err := scanExpr(step.Condition.If, locals, refs); err != nil {
			return err
		}
		if step.Condition.Then != nil {
			if err := walkStepRefs(step.Condition.Then, locals, refs); err != nil {
				return err
			}
		}
		if step.Condition.Else != nil {
			if err := walkStepRefs(step.Condition.Else, locals, refs); err != nil {
				return err
			}
		}
		return nil

	case flowtypes.KindLoop:
		if err := scanExpr(step.Loop.Over, locals, refs); err != nil {
			return err
		}
		nested := make(map[string]bool, len(locals)+1)
		for k := range locals {
			nested[k] = true
		}
		nested[step.Loop.As] = true
		if step.Loop.Condition != "" {
			if err := scanExpr(step.Loop.Condition, nested, refs); err != nil {
				return err
			}
		}
		if step.Loop.Step != nil {
			if err := walkStepRefs(step.Loop.Step, nested, refs); err != nil {
				return err
			}
		}
		for _, s := range step.Loop.Steps {
			if err := walkStepRefs(s, nested, refs); err != nil {
				return err
			}
		}
		return nil

	case flowtypes.KindStop:
		return nil

	default:
		return nil
	}
}

func scanExpr(expr string, locals map[string]bool, refs map[string]bool) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	names, err := refresolver.CollectStepNames(expr, locals)
	if err != nil {
		return err
	}
	for n := range names {
		refs[n] = true
	}
	return nil
}

// scanValue walks an arbitrary decoded value (map/slice/string/scalar)
// looking for `${...}`-bearing strings, since request params and
// transform input/initial values can embed expressions at any depth.
func scanValue(v interface{}, locals map[string]bool, refs map[string]bool) error {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, "${") {
			return scanExpr(val, locals, refs)
		}
	case map[string]interface{}:
		for _, item := range val {
			if err := scanValue(item, locals, refs); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range val {
			if err := scanValue(item, locals, refs); err != nil {
				return err
			}
		}
	}
	return nil
}
