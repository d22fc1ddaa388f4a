package stepexec

import (
	"context"
	"errors"
	"testing"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

func newExec(flowContext map[string]interface{}) *flowtypes.ExecutionContext {
	return flowtypes.NewExecutionContext(flowContext, nil, nil)
}

type codedErr struct{ code ferrors.Code }

func (e codedErr) Error() string           { return string(e.code) }
func (e codedErr) ErrorCode() ferrors.Code { return e.code }

func TestExecuteRequestRejectsEmptyMethod(t *testing.T) {
	step := &flowtypes.Step{Name: "a", Request: &flowtypes.RequestStep{}}
	_, err := ExecuteRequest(context.Background(), step, newExec(nil), func(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error) {
		return flowtypes.Null, nil
	})
	if !ferrors.HasCode(err, ferrors.CodeRequest) {
		t.Fatalf("got %v, want RequestError", err)
	}
}

func TestExecuteRequestResolvesParamsAndDispatches(t *testing.T) {
	exec := newExec(nil)
	exec.SetResult("a", &flowtypes.StepResult{Result: flowtypes.FromGo(map[string]interface{}{"value": 5.0})})
	step := &flowtypes.Step{Name: "b", Request: &flowtypes.RequestStep{
		Method: "get",
		Params: map[string]interface{}{"id": "${a.value}"},
	}}

	var gotMethod string
	var gotParams flowtypes.Value
	res, err := ExecuteRequest(context.Background(), step, exec, func(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error) {
		gotMethod = method
		gotParams = params
		return flowtypes.String("ok"), nil
	})
	if err != nil {
		t.Fatalf("ExecuteRequest error: %v", err)
	}
	if gotMethod != "get" {
		t.Errorf("got method %q", gotMethod)
	}
	id, _ := gotParams.AsObject().Get("id")
	if id.AsNumber() != 5 {
		t.Errorf("got id %v, want 5", id)
	}
	if res.Result.AsString() != "ok" {
		t.Errorf("got result %v", res.Result)
	}
}

func TestExecuteRequestSurfacesDispatchErrorCodeForRetry(t *testing.T) {
	step := &flowtypes.Step{Name: "b", Request: &flowtypes.RequestStep{Method: "get"}}
	_, err := ExecuteRequest(context.Background(), step, newExec(nil), func(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error) {
		return flowtypes.Null, codedErr{code: "NETWORK_ERROR"}
	})
	if !ferrors.HasCode(err, ferrors.CodeRequest) {
		t.Errorf("got %v, want wrapped in RequestError", err)
	}
	if !ferrors.HasCode(err, "NETWORK_ERROR") {
		t.Errorf("got %v, want the original NETWORK_ERROR code still visible for retry classification", err)
	}
	if !errors.As(err, new(*ferrors.Error)) {
		t.Errorf("got %v, want *ferrors.Error", err)
	}
}
