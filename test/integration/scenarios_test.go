// Package integration exercises whole-flow scenarios end to end through
// pkg/executor, the same way the old package did through a live emulator
// process, but in-process against this engine's own domain model (spec
// §8's worked scenarios).
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/flowlayer/engine/pkg/builtins"
	"github.com/flowlayer/engine/pkg/events"
	"github.com/flowlayer/engine/pkg/executor"
	"github.com/flowlayer/engine/pkg/exprlang"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/refresolver"
)

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

// TestLoopWithTransformReportsProgress runs a loop over three items,
// each body step doubling its bound value via a transform, and checks
// STEP_PROGRESS fires once per iteration with increasing percentages.
func TestLoopWithTransformReportsProgress(t *testing.T) {
	flow := &flowtypes.Flow{
		Name: "doubling",
		Steps: []*flowtypes.Step{
			{
				Name: "double_each",
				Loop: &flowtypes.LoopStep{
					Over: "[1, 2, 3]",
					As:   "n",
					Step: &flowtypes.Step{
						Name: "double",
						Transform: &flowtypes.TransformStep{
							Input: []interface{}{"${n}"},
							Operations: []flowtypes.TransformOperation{
								{Type: flowtypes.OpMap, Using: "${item} * 2"},
							},
						},
					},
				},
			},
		},
	}

	e := executor.New(flow, executor.Options{Dispatch: builtins.NewRegistry().Dispatch})
	ch := e.Events()
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	evs := drain(ch)

	var progressCount int
	var lastPercent float64
	for _, ev := range evs {
		if ev.Type == events.StepProgress {
			progressCount++
			if ev.Percent < lastPercent {
				t.Errorf("percent went backwards: %v after %v", ev.Percent, lastPercent)
			}
			lastPercent = ev.Percent
		}
	}
	if progressCount != 3 {
		t.Errorf("saw %d STEP_PROGRESS events, want 3", progressCount)
	}
	if lastPercent != 100 {
		t.Errorf("final percent = %v, want 100", lastPercent)
	}
}

// TestRequestTimeoutThenRetrySucceeds exercises the Retry Engine (spec
// §4.8): a dispatch that hangs past its step timeout on the first
// attempt and succeeds immediately on the second must still complete
// the flow rather than surfacing the timeout as a terminal error.
func TestRequestTimeoutThenRetrySucceeds(t *testing.T) {
	var attempts int
	dispatch := func(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error) {
		attempts++
		if attempts == 1 {
			select {
			case <-ctx.Done():
				return flowtypes.Null, ctx.Err()
			case <-time.After(2 * time.Second):
				return flowtypes.String("too slow"), nil
			}
		}
		return flowtypes.String("ok"), nil
	}

	flow := &flowtypes.Flow{
		Name: "flaky",
		Steps: []*flowtypes.Step{
			{
				Name:    "call",
				Request: &flowtypes.RequestStep{Method: "slow.thing"},
				Policies: &flowtypes.Policies{
					Timeout: &flowtypes.TimeoutPolicy{Timeout: 100},
					Retry:   &flowtypes.RetryPolicy{MaxAttempts: 2, RetryDelayMS: 10, RetryableErrors: []string{string(ferrors.CodeTimeout)}},
				},
			},
		},
	}

	e := executor.New(flow, executor.Options{Dispatch: dispatch})
	ch := e.Events()
	err := e.Execute(context.Background())
	evs := drain(ch)
	if err != nil {
		t.Fatalf("Execute error: %v (events=%v)", err, evs)
	}
	if attempts < 2 {
		t.Fatalf("attempts = %d, want at least 2", attempts)
	}

	var sawComplete bool
	for _, ev := range evs {
		if ev.Type == events.FlowComplete {
			sawComplete = true
			if ev.Status != events.StatusComplete {
				t.Errorf("FLOW_COMPLETE status = %s, want complete", ev.Status)
			}
		}
	}
	if !sawComplete {
		t.Fatal("never saw FLOW_COMPLETE")
	}
}

// TestExpressionShortCircuitsNullCoalesce checks that "??" only
// evaluates its right-hand side when the left is null, so with a
// non-null left a
// right-hand expression that would otherwise fail (division by zero)
// never runs (spec §4.3's short-circuit operators).
func TestExpressionShortCircuitsNullCoalesce(t *testing.T) {
	exec := flowtypes.NewExecutionContext(nil, nil, nil)
	resolver := refresolver.New(exec)

	result, err := exprlang.Evaluate(context.Background(), "5 ?? (1/0)", resolver.Resolve)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Kind() != flowtypes.KindNumber || result.AsNumber() != 5 {
		t.Errorf("result = %v, want 5 (right side of ?? must never evaluate)", result.ToGo())
	}
}
