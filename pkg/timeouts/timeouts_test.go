package timeouts

import (
	"testing"
	"time"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

func intp(v int) *int { return &v }

func TestResolveFallsBackToBuiltinDefault(t *testing.T) {
	step := &flowtypes.Step{Request: &flowtypes.RequestStep{}}
	got, err := Resolve(step, &flowtypes.Flow{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != DefaultRequestMS*time.Millisecond {
		t.Errorf("got %v, want %dms", got, DefaultRequestMS)
	}
}

func TestResolveStepPolicyDominates(t *testing.T) {
	step := &flowtypes.Step{
		Request:  &flowtypes.RequestStep{},
		Policies: &flowtypes.Policies{Timeout: &flowtypes.TimeoutPolicy{Timeout: 100}},
	}
	flow := &flowtypes.Flow{Timeouts: &flowtypes.TimeoutsConfig{Request: intp(9000)}}
	got, err := Resolve(step, flow)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 100*time.Millisecond {
		t.Errorf("got %v, want 100ms", got)
	}
}

func TestResolvePerKindFlowPolicy(t *testing.T) {
	step := &flowtypes.Step{Transform: &flowtypes.TransformStep{}}
	flow := &flowtypes.Flow{Policies: &flowtypes.Policies{
		Step: map[string]*flowtypes.Policies{
			"transform": {Timeout: &flowtypes.TimeoutPolicy{Timeout: 500}},
		},
	}}
	got, err := Resolve(step, flow)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 500*time.Millisecond {
		t.Errorf("got %v, want 500ms", got)
	}
}

func TestResolveFlowTimeoutsByKind(t *testing.T) {
	step := &flowtypes.Step{Loop: &flowtypes.LoopStep{}}
	flow := &flowtypes.Flow{Timeouts: &flowtypes.TimeoutsConfig{Loop: intp(7000)}}
	got, err := Resolve(step, flow)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 7000*time.Millisecond {
		t.Errorf("got %v, want 7000ms", got)
	}
}

func TestResolveGlobalTimeoutFallback(t *testing.T) {
	step := &flowtypes.Step{Condition: &flowtypes.ConditionStep{}}
	flow := &flowtypes.Flow{Timeouts: &flowtypes.TimeoutsConfig{Global: intp(2500)}}
	got, err := Resolve(step, flow)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 2500*time.Millisecond {
		t.Errorf("got %v, want 2500ms", got)
	}
}

func TestResolveRejectsOutOfRangeTimeout(t *testing.T) {
	step := &flowtypes.Step{
		Request:  &flowtypes.RequestStep{},
		Policies: &flowtypes.Policies{Timeout: &flowtypes.TimeoutPolicy{Timeout: 10}},
	}
	_, err := Resolve(step, &flowtypes.Flow{})
	if !ferrors.HasCode(err, ferrors.CodeValidation) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestResolveExpressionUsesExpressionLadder(t *testing.T) {
	step := &flowtypes.Step{Request: &flowtypes.RequestStep{}}
	flow := &flowtypes.Flow{Timeouts: &flowtypes.TimeoutsConfig{Expression: intp(250)}}
	got, err := ResolveExpression(step, flow)
	if err != nil {
		t.Fatalf("ResolveExpression error: %v", err)
	}
	if got != 250*time.Millisecond {
		t.Errorf("got %v, want 250ms", got)
	}
}

func TestResolveExpressionDefaultsTo1s(t *testing.T) {
	step := &flowtypes.Step{Request: &flowtypes.RequestStep{}}
	got, err := ResolveExpression(step, &flowtypes.Flow{})
	if err != nil {
		t.Fatalf("ResolveExpression error: %v", err)
	}
	if got != DefaultExpressionMS*time.Millisecond {
		t.Errorf("got %v, want %dms", got, DefaultExpressionMS)
	}
}

func TestRoundMS(t *testing.T) {
	if RoundMS(99.4) != 99 {
		t.Errorf("got %d, want 99", RoundMS(99.4))
	}
	if RoundMS(99.6) != 100 {
		t.Errorf("got %d, want 100", RoundMS(99.6))
	}
}
