// Package timeouts implements the Timeout Resolver (spec §4.7): a
// precedence ladder that picks the effective timeout for a step or for
// one expression evaluation, falling back through step-local, per-kind,
// flow-wide, and global policies down to a built-in default.
package timeouts

import (
	"fmt"
	"math"
	"time"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Built-in defaults per kind, in milliseconds (spec §4.7 step 7).
const (
	DefaultRequestMS    = 30_000
	DefaultTransformMS  = 10_000
	DefaultConditionMS  = 5_000
	DefaultLoopMS       = 60_000
	DefaultExpressionMS = 1_000
	DefaultGlobalMS     = 30_000

	MinTimeoutMS = 50
	MaxTimeoutMS = 3_600_000
)

// Resolve picks the effective timeout for a step, following the ladder:
// step policy, flow per-kind policy, flow step-wide policy, flow
// timeouts[kind], flow global policy, flow timeouts.global, built-in
// default (spec §4.7 steps 1-7).
func Resolve(step *flowtypes.Step, flow *flowtypes.Flow) (time.Duration, error) {
	kind := step.Kind().String()
	ms := ladder(step, flow, kind, builtinDefault(kind))
	return validate(kind, ms)
}

// ResolveGlobal picks the effective timeout for the whole flow run
// (spec §4.7 steps 5-7: flow.policies.global.timeout.timeout,
// flow.timeouts.global, then the built-in default) — the arm of the
// ladder that does not depend on any one step's kind, which the Flow
// Executor uses to compose its top-level cancellation deadline.
func ResolveGlobal(flow *flowtypes.Flow) (time.Duration, error) {
	ms := DefaultGlobalMS
	if flow != nil && flow.Policies != nil && flow.Policies.Global != nil && flow.Policies.Global.Timeout != nil {
		ms = flow.Policies.Global.Timeout.Timeout
	} else if flow != nil && flow.Timeouts != nil && flow.Timeouts.Global != nil {
		ms = *flow.Timeouts.Global
	}
	return validate("global", ms)
}

// ResolveExpression picks the effective timeout for one expression
// evaluation inside step, following the same ladder keyed "expression"
// (spec §4.7: "Expression timeout follows same ladder ... step-attached
// timeout can dominate").
func ResolveExpression(step *flowtypes.Step, flow *flowtypes.Flow) (time.Duration, error) {
	ms := ladder(step, flow, "expression", DefaultExpressionMS)
	return validate("expression", ms)
}

func ladder(step *flowtypes.Step, flow *flowtypes.Flow, kind string, builtin int) int {
	// Rung 1 (spec §3, §4.7): a step's own timeout, whether written as
	// the bare `timeout:` shorthand or nested under `policies.timeout.
	// timeout` — the shorthand wins when both are set since it's the
	// more specific, step-local spelling.
	if step != nil && step.Timeout != nil {
		return *step.Timeout
	}
	if step != nil && step.Policies != nil && step.Policies.Timeout != nil {
		return step.Policies.Timeout.Timeout
	}
	if flow != nil && flow.Policies != nil {
		if flow.Policies.Step != nil {
			if p, ok := flow.Policies.Step[kind]; ok && p != nil && p.Timeout != nil {
				return p.Timeout.Timeout
			}
		}
		if flow.Policies.Timeout != nil {
			return flow.Policies.Timeout.Timeout
		}
	}
	if flow != nil && flow.Timeouts != nil {
		if v := timeoutsFieldByKind(flow.Timeouts, kind); v != nil {
			return *v
		}
	}
	if flow != nil && flow.Policies != nil && flow.Policies.Global != nil && flow.Policies.Global.Timeout != nil {
		return flow.Policies.Global.Timeout.Timeout
	}
	if flow != nil && flow.Timeouts != nil && flow.Timeouts.Global != nil {
		return *flow.Timeouts.Global
	}
	return builtin
}

func timeoutsFieldByKind(t *flowtypes.TimeoutsConfig, kind string) *int {
	switch kind {
	case "request":
		return t.Request
	case "transform":
		return t.Transform
	case "condition":
		return t.Condition
	case "loop":
		return t.Loop
	case "expression":
		return t.Expression
	default:
		return nil
	}
}

func builtinDefault(kind string) int {
	switch kind {
	case "request":
		return DefaultRequestMS
	case "transform":
		return DefaultTransformMS
	case "condition":
		return DefaultConditionMS
	case "loop":
		return DefaultLoopMS
	case "expression":
		return DefaultExpressionMS
	default:
		return DefaultGlobalMS
	}
}

func validate(kind string, ms int) (time.Duration, error) {
	if ms < MinTimeoutMS || ms > MaxTimeoutMS {
		return 0, ferrors.NewValidationError(
			fmt.Sprintf("%s timeout %dms out of range [%d, %d]", kind, ms, MinTimeoutMS, MaxTimeoutMS))
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// RoundMS rounds a fractional millisecond value (as decoded from a flow
// document's numeric field) to the nearest whole millisecond, per spec
// §4.7's validation rule that non-integer timeouts are rounded rather
// than rejected.
func RoundMS(ms float64) int {
	return int(math.Round(ms))
}
