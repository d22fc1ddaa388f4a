// Package builtins implements the default dispatch table a request step
// calls into (spec §4.9, §6: "dispatch(method, params) -> result"),
// grounded on the teacher's pkg/stdlib registry pattern but rebuilt
// against flowtypes.Value and namespaced methods ("http.get",
// "json.encode", ...) instead of bare function names, since a request
// step names its RPC with a single `method` string rather than calling
// an expression-language function.
package builtins

import (
	"context"
	"fmt"

	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/stepexec"
)

// Func is one registered method's implementation. params is whatever
// the request step's (already reference-resolved) `params` value
// evaluated to -- normally a KindMap of named arguments.
type Func func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error)

// Registry holds the engine's built-in request methods and exposes a
// stepexec.Dispatch bound to them.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry builds a Registry with every built-in namespace
// registered: http, json, base64, hash, text, math, list, map, time,
// uuid, sys, util.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.registerHTTP()
	r.registerJSON()
	r.registerBase64()
	r.registerHash()
	r.registerText()
	r.registerMath()
	r.registerList()
	r.registerMap()
	r.registerTime()
	r.registerUUID()
	r.registerSys()
	r.registerUtil()
	return r
}

// Register adds or replaces one method, letting a caller extend the
// default registry with its own RPCs before building a Dispatch.
func (r *Registry) Register(method string, fn Func) {
	r.funcs[method] = fn
}

// Dispatch adapts the registry to stepexec.Dispatch.
func (r *Registry) Dispatch(ctx context.Context, method string, params flowtypes.Value) (flowtypes.Value, error) {
	fn, ok := r.funcs[method]
	if !ok {
		return flowtypes.Null, fmt.Errorf("unknown method %q", method)
	}
	return fn(ctx, params)
}

var _ stepexec.Dispatch = (*Registry)(nil).Dispatch

// arg fetches a named field out of a KindMap params value. ok is false
// when params is not a map or the key is absent.
func arg(params flowtypes.Value, name string) (flowtypes.Value, bool) {
	if params.Kind() != flowtypes.KindMap {
		return flowtypes.Null, false
	}
	return params.AsObject().Get(name)
}

// stringArg fetches a required string field.
func stringArg(params flowtypes.Value, name string) (string, error) {
	v, ok := arg(params, name)
	if !ok || v.Kind() != flowtypes.KindString {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return v.AsString(), nil
}

// optStringArg fetches an optional string field, returning def when
// absent.
func optStringArg(params flowtypes.Value, name, def string) string {
	v, ok := arg(params, name)
	if !ok || v.Kind() != flowtypes.KindString {
		return def
	}
	return v.AsString()
}
