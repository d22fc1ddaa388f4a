package flowtypes

import "sync"

// StepResult is stored once a step completes (spec §3): addressable by
// step name from later expressions via ${stepName...}.
type StepResult struct {
	Result   Value
	Type     StepKind
	Metadata Value
}

// Logger is the minimal injected logging capability the engine depends
// on (spec §1: "an injected capability with level methods and
// nesting"). pkg/flowlog provides the concrete implementation; core
// packages only depend on this interface so they never import a
// specific logging library.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	// With returns a nested logger that prepends kv to every message it
	// logs, matching the "nesting" requirement.
	With(kv ...interface{}) Logger
}

// ExecutionContext is the per-run mutable state shared by every step
// executor during one flow execution (spec §3). The step-results map
// and the runtime context are intentionally unsynchronized: §5 commits
// the engine to a single-threaded cooperative execution model where at
// most one step makes forward progress at a time, so no step executor
// needs to take a lock to read or write either map.
type ExecutionContext struct {
	StepResults map[string]*StepResult
	Runtime     map[string]interface{}
	// Metadata is the run's own identity — flow name, run ID, start
	// time — addressable from expressions as `${metadata...}`, kept
	// separate from Runtime (which holds the flow's declared `context`
	// plus loop/transform bindings) per spec §3's reserved-roots
	// invariant: "context", "metadata" and loop variables are distinct
	// non-step scope roots.
	Metadata map[string]interface{}
	Logger   Logger

	// mu guards StepResults/Runtime only against the narrow exception to
	// the single-threaded model: the API layer (pkg/api) or a test
	// harness inspecting a run concurrently with its own goroutine.
	mu sync.RWMutex
}

// NewExecutionContext creates a fresh context from a flow's declared
// context, deep-cloned per spec §3 so mutation by a run never reaches
// the immutable Flow value.
func NewExecutionContext(flowContext map[string]interface{}, metadata map[string]interface{}, logger Logger) *ExecutionContext {
	runtime := make(map[string]interface{}, len(flowContext))
	for k, v := range flowContext {
		runtime[k] = FromGo(v).Clone().ToGo()
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &ExecutionContext{
		StepResults: make(map[string]*StepResult),
		Runtime:     runtime,
		Metadata:    metadata,
		Logger:      logger,
	}
}

// SetResult records a step's result exactly once (spec invariant:
// "A step's result is written exactly once, only after successful
// completion").
func (ec *ExecutionContext) SetResult(stepName string, result *StepResult) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.StepResults[stepName] = result
}

// GetResult looks up a previously stored step result.
func (ec *ExecutionContext) GetResult(stepName string) (*StepResult, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	r, ok := ec.StepResults[stepName]
	return r, ok
}

// SetRuntime sets a key in the shared runtime context (spec §3: the
// loop executor augments runtime context with the loop variable within
// iteration scope; transform executors store "as" intermediates here
// too).
func (ec *ExecutionContext) SetRuntime(key string, value interface{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.Runtime[key] = value
}

// DeleteRuntime removes a key, used by the loop executor to retract its
// loop-variable binding when an iteration ends (§5: "must not write
// other keys"; §9: "iteration-local names never leak outward").
func (ec *ExecutionContext) DeleteRuntime(key string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	delete(ec.Runtime, key)
}

// GetRuntime reads a key from the shared runtime context.
func (ec *ExecutionContext) GetRuntime(key string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.Runtime[key]
	return v, ok
}

// RuntimeSnapshot returns a shallow copy of the runtime context map,
// used by the reference resolver so callers see a stable view without
// holding the lock across an evaluation.
func (ec *ExecutionContext) RuntimeSnapshot() map[string]interface{} {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]interface{}, len(ec.Runtime))
	for k, v := range ec.Runtime {
		out[k] = v
	}
	return out
}
