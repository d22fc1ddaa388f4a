package executor

import (
	"context"
	"testing"
	"time"

	"github.com/flowlayer/engine/pkg/events"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

func echoDispatch(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error) {
	return params, nil
}

func collect(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestExecuteLinearRequestChain(t *testing.T) {
	flow := &flowtypes.Flow{
		Name: "chain",
		Steps: []*flowtypes.Step{
			{Name: "first", Request: &flowtypes.RequestStep{Method: "echo", Params: map[string]interface{}{"v": 1}}},
			{Name: "second", Request: &flowtypes.RequestStep{Method: "echo", Params: map[string]interface{}{"v": "${first.v}"}}},
		},
	}
	e := New(flow, Options{Dispatch: echoDispatch})
	ch := e.Events()
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	evs := collect(ch)

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

func TestExecuteConditionSkipsUntakenBranch(t *testing.T) {
	flow := &flowtypes.Flow{
		Name: "branch",
		Steps: []*flowtypes.Step{
			{
				Name: "decide",
				Condition: &flowtypes.ConditionStep{
					If:   "true",
					Then: &flowtypes.Step{Name: "stepB", Request: &flowtypes.RequestStep{Method: "echo"}},
					Else: &flowtypes.Step{Name: "stepA", Request: &flowtypes.RequestStep{Method: "echo"}},
				},
			},
		},
	}
	e := New(flow, Options{Dispatch: echoDispatch})
	ch := e.Events()
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	evs := collect(ch)

	var sawSkipA bool
	for _, ev := range evs {
		if ev.Type == events.StepSkip && ev.StepName == "stepA" {
			sawSkipA = true
		}
		if ev.Type == events.StepStart && ev.StepName == "stepA" {
			t.Error("stepA should not have started")
		}
	}
	if !sawSkipA {
		t.Error("expected STEP_SKIP for the not-taken branch (stepA)")
	}
}

func TestExecuteStopEndsWorkflowAsAborted(t *testing.T) {
	flow := &flowtypes.Flow{
		Name: "stopper",
		Steps: []*flowtypes.Step{
			{Name: "stop", Stop: &flowtypes.StopStep{EndWorkflow: true}},
			{Name: "never", Request: &flowtypes.RequestStep{Method: "echo"}},
		},
	}
	e := New(flow, Options{Dispatch: echoDispatch})
	ch := e.Events()
	err := e.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an aborted error from a terminal stop step")
	}
	evs := collect(ch)

	var sawSkipNever, sawComplete bool
	for _, ev := range evs {
		if ev.Type == events.StepSkip && ev.StepName == "never" {
			sawSkipNever = true
		}
		if ev.Type == events.FlowComplete {
			sawComplete = true
			if ev.Status != events.StatusAborted {
				t.Errorf("FLOW_COMPLETE status = %s, want aborted", ev.Status)
			}
		}
	}
	if !sawSkipNever {
		t.Error("expected STEP_SKIP for the step after a terminal stop")
	}
	if !sawComplete {
		t.Fatal("never saw FLOW_COMPLETE")
	}
}

func TestExecuteDependencyCycleIsRejected(t *testing.T) {
	flow := &flowtypes.Flow{
		Name: "cycle",
		Steps: []*flowtypes.Step{
			{Name: "ping", Request: &flowtypes.RequestStep{Method: "echo", Params: "${pong.x}"}},
			{Name: "pong", Request: &flowtypes.RequestStep{Method: "echo", Params: "${ping.x}"}},
		},
	}
	e := New(flow, Options{Dispatch: echoDispatch})
	ch := e.Events()
	if err := e.Execute(context.Background()); err == nil {
		t.Fatal("expected a dependency error for a cyclic flow")
	}
	go func() {
		for range ch {
		}
	}()
}

func TestExecutePauseBlocksUntilResume(t *testing.T) {
	flow := &flowtypes.Flow{
		Name: "pausable",
		Steps: []*flowtypes.Step{
			{Name: "only", Request: &flowtypes.RequestStep{Method: "echo"}},
		},
	}
	e := New(flow, Options{Dispatch: echoDispatch})
	e.Pause()
	done := make(chan error, 1)
	go func() { done <- e.Execute(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Execute returned before Resume despite Pause")
	case <-time.After(50 * time.Millisecond):
	}

	e.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute error after resume: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute never returned after Resume")
	}
}
