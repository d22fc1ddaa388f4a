// Package executor implements the Flow Executor (spec §4.10): the
// top-level orchestrator that validates a flow, asks the Dependency
// Resolver for a plan, then runs each step in order honoring timeouts,
// retries, cancellation and pause/resume, emitting the event stream
// (spec §6) as it goes. It owns cancellation composition and dispatches
// each step to its pkg/stepexec executor (spec §5).
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowlayer/engine/pkg/depgraph"
	"github.com/flowlayer/engine/pkg/events"
	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/retry"
	"github.com/flowlayer/engine/pkg/stepexec"
	"github.com/flowlayer/engine/pkg/timeouts"
)

// Options configures one Executor. Dispatch is the only required field;
// everything else has a workable zero value (noop logger/tracer, no
// DEPENDENCY_RESOLVED event).
type Options struct {
	// Dispatch is the injected RPC capability request steps call into
	// (spec §1, §6).
	Dispatch stepexec.Dispatch
	// Logger is the injected logging capability (spec §1). Defaults to
	// a logger that discards everything.
	Logger flowtypes.Logger
	// EmitDependencyResolved gates the DEPENDENCY_RESOLVED event (spec
	// §6, SPEC_FULL.md §4: "emitted once ... before the first
	// STEP_START").
	EmitDependencyResolved bool
	// Tracer is used to open one span per run and one per step (spec
	// SPEC_FULL.md §3's otel wiring). Defaults to a no-op tracer so the
	// core never requires a collector.
	Tracer trace.Tracer
	// Metadata seeds the run's `${metadata...}` scope beyond the
	// built-in flowName/runId/startTime fields.
	Metadata map[string]interface{}
}

// Executor runs one Flow to completion. It is not safe to call Execute
// more than once concurrently on the same Executor, but a single
// Executor instance may be Execute'd multiple times sequentially — spec
// §4.10: "never caches step results across runs; each execute call
// starts from empty results." The Event Bus is closed when the first
// Execute returns, so a later Execute runs without publishing events.
type Executor struct {
	flow     *flowtypes.Flow
	dispatch stepexec.Dispatch
	logger   flowtypes.Logger
	bus      *events.Bus
	tracer   trace.Tracer
	emitPlan bool
	metadata map[string]interface{}

	mu          sync.Mutex
	cond        *sync.Cond
	paused      bool
	stopped     bool // set by a Stop step with endWorkflow=true
	externalAbort bool
	abortReason string
}

// New builds an Executor for flow. The returned Executor owns its own
// Event Bus; subscribe with Events() before calling Execute to observe
// every event from FLOW_START onward.
func New(flow *flowtypes.Flow, opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/flowlayer/engine/pkg/executor")
	}
	e := &Executor{
		flow:     flow,
		dispatch: opts.Dispatch,
		logger:   opts.Logger,
		bus:      events.NewBus(),
		tracer:   opts.Tracer,
		emitPlan: opts.EmitDependencyResolved,
		metadata: opts.Metadata,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Events returns a channel of every event this run emits, from
// FLOW_START to the terminal FLOW_COMPLETE. Subscribe before calling
// Execute; events published before a subscription exists are not
// buffered for it (spec §5: "single-producer channel").
func (e *Executor) Events() <-chan events.Event { return e.bus.Subscribe() }

// Pause suspends step dispatch before the next step starts (spec
// §4.10's pause gate, SPEC_FULL.md §4's sync.Cond-backed latch).
func (e *Executor) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume releases a paused run.
func (e *Executor) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Abort cancels the run with an external reason (spec §5: cancellation
// reason "external"). Safe to call from a different goroutine than the
// one running Execute.
func (e *Executor) Abort(reason string) {
	e.mu.Lock()
	e.externalAbort = true
	e.abortReason = reason
	e.mu.Unlock()
	e.cond.Broadcast()
}

func (e *Executor) markStopped() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// abortState reports whether the run has been cancelled internally
// (stop step or Abort call) and why.
func (e *Executor) abortState() (aborted bool, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.externalAbort {
		return true, e.abortReason
	}
	if e.stopped {
		return true, "stop"
	}
	return false, ""
}

// waitWhilePaused blocks the caller while paused, waking on Resume,
// Abort, or ctx cancellation — whichever comes first.
func (e *Executor) waitWhilePaused(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.cond.Broadcast()
		case <-done:
		}
	}()
	defer close(done)

	e.mu.Lock()
	defer e.mu.Unlock()
	for e.paused && !e.externalAbort && !e.stopped && ctx.Err() == nil {
		e.cond.Wait()
	}
	return ctx.Err()
}

// Execute validates the flow, plans it, and runs every step to
// completion or failure (spec §4.10). It resolves on normal completion
// and returns the mapped error on failure or abort; FLOW_COMPLETE is
// always emitted exactly once with the terminal status.
func (e *Executor) Execute(ctx context.Context) error {
	defer e.bus.Close()
	start := time.Now()
	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()

	runCtx, span := e.tracer.Start(ctx, "flow.execute", trace.WithAttributes(
		attribute.String("flow.name", e.flow.Name),
	))
	defer span.End()

	if err := flowtypes.ValidateFlow(e.flow); err != nil {
		verr := ferrors.NewValidationError(err.Error())
		span.RecordError(verr)
		span.SetStatus(codes.Error, verr.Error())
		e.bus.Publish(events.NewFlowError(verr))
		e.bus.Publish(events.NewFlowComplete(events.StatusError, time.Since(start)))
		return verr
	}

	plan, err := depgraph.Plan(e.flow)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.bus.Publish(events.NewFlowError(err))
		e.bus.Publish(events.NewFlowComplete(events.StatusError, time.Since(start)))
		return err
	}

	globalTimeout, err := timeouts.ResolveGlobal(e.flow)
	if err != nil {
		e.bus.Publish(events.NewFlowError(err))
		e.bus.Publish(events.NewFlowComplete(events.StatusError, time.Since(start)))
		return err
	}
	runCtx, cancel := context.WithTimeout(runCtx, globalTimeout)
	defer cancel()

	runID := uuid.NewString()
	metadata := map[string]interface{}{
		"flowName":  e.flow.Name,
		"runId":     runID,
		"startTime": start.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range e.metadata {
		metadata[k] = v
	}

	exec := flowtypes.NewExecutionContext(e.flow.Context, metadata, e.logger.With("flow", e.flow.Name, "run", runID))

	e.bus.Publish(events.NewFlowStart(e.flow.Name))
	e.logger.Info("flow started", "flow", e.flow.Name, "run", runID, "steps", len(plan))

	if e.emitPlan {
		order := make([]string, len(plan))
		for i, s := range plan {
			order[i] = s.Name
		}
		e.bus.Publish(events.NewDependencyResolved(order))
	}

	var runErr error
	for i, step := range plan {
		if aborted, reason := e.abortState(); aborted {
			e.skipRemaining(plan[i:], reason)
			runErr = e.finishAborted(reason, start)
			break
		}
		pauseErr := e.waitWhilePaused(runCtx)
		if aborted, reason := e.abortState(); aborted {
			e.skipRemaining(plan[i:], reason)
			runErr = e.finishAborted(reason, start)
			break
		}
		if pauseErr != nil {
			e.skipRemaining(plan[i:], "timeout")
			runErr = e.finishTimeoutOrCancel(runCtx, start, globalTimeout)
			break
		}

		result, stepErr := e.runTopLevelStep(runCtx, step, exec)
		if stepErr != nil {
			exec.Logger.Error("step failed", "step", step.Name, "error", stepErr)
			e.bus.Publish(events.NewStepError(step.Name, stepErr))

			if continueOnFailure(step, e.flow) {
				continue
			}
			e.skipRemaining(plan[i+1:], "flow error")
			e.bus.Publish(events.NewFlowError(stepErr))
			e.bus.Publish(events.NewFlowComplete(events.StatusError, time.Since(start)))
			span.RecordError(stepErr)
			span.SetStatus(codes.Error, stepErr.Error())
			return stepErr
		}

		exec.SetResult(step.Name, &result)
		e.bus.Publish(events.NewStepComplete(step.Name, result.Result))

		if step.Kind() == flowtypes.KindStop && step.Stop.EndWorkflow {
			e.markStopped()
			e.skipRemaining(plan[i+1:], "stop")
			runErr = e.finishAborted("stop", start)
			break
		}
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return runErr
	}

	e.bus.Publish(events.NewFlowComplete(events.StatusComplete, time.Since(start)))
	e.logger.Info("flow complete", "flow", e.flow.Name, "run", runID, "durationMs", time.Since(start).Milliseconds())
	return nil
}

// skipRemaining emits STEP_SKIP for every plan entry that will not run
// because the flow ended early (stop step, abort, or an unrecovered
// step error without continueOnFailure).
func (e *Executor) skipRemaining(remaining []*flowtypes.Step, reason string) {
	for _, s := range remaining {
		e.bus.Publish(events.NewStepSkip(s.Name, reason))
	}
}

func (e *Executor) finishAborted(reason string, start time.Time) error {
	e.bus.Publish(events.NewFlowAborted(reason))
	e.bus.Publish(events.NewFlowComplete(events.StatusAborted, time.Since(start)))
	return ferrors.NewAbortedError(reason)
}

// finishTimeoutOrCancel distinguishes a global-timeout cancellation
// (spec §4.10 step 4: "translate to TimeoutError") from any other
// caller-supplied cancellation.
func (e *Executor) finishTimeoutOrCancel(ctx context.Context, start time.Time, globalTimeout time.Duration) error {
	elapsed := time.Since(start)
	var err error
	if ctx.Err() == context.DeadlineExceeded {
		err = ferrors.NewTimeoutError(globalTimeout.Milliseconds(), elapsed.Milliseconds(), e.flow.Name, "")
		e.bus.Publish(events.NewFlowAborted("timeout"))
	} else {
		err = ferrors.NewAbortedError("external")
		e.bus.Publish(events.NewFlowAborted("external"))
	}
	e.bus.Publish(events.NewFlowComplete(events.StatusAborted, elapsed))
	return err
}

func continueOnFailure(step *flowtypes.Step, flow *flowtypes.Flow) bool {
	if step.Policies != nil {
		return step.Policies.ContinueOnFailure
	}
	if flow.Policies != nil {
		return flow.Policies.ContinueOnFailure
	}
	return false
}

func retryPolicyFor(step *flowtypes.Step, flow *flowtypes.Flow) *flowtypes.RetryPolicy {
	if step.Policies != nil && step.Policies.Retry != nil {
		return step.Policies.Retry
	}
	if flow.Policies != nil {
		if p, ok := flow.Policies.Step[step.Kind().String()]; ok && p != nil && p.Retry != nil {
			return p.Retry
		}
		if flow.Policies.Retry != nil {
			return flow.Policies.Retry
		}
		if flow.Policies.Global != nil && flow.Policies.Global.Retry != nil {
			return flow.Policies.Global.Retry
		}
	}
	return nil
}

// runTopLevelStep wraps one plan entry in START/ABORTED events, the
// Retry Engine, and a timeout race (spec §4.10 step 3), then delegates
// to runStep for the actual step-kind dispatch. Nested steps (a
// condition's then/else, a loop's body) go through runStep directly via
// stepexec's RunStep callback — they get the same dispatch-by-kind logic
// but not a second layer of top-level retry/timeout wrapping, since
// their owning step already bounds them.
func (e *Executor) runTopLevelStep(ctx context.Context, step *flowtypes.Step, exec *flowtypes.ExecutionContext) (flowtypes.StepResult, error) {
	e.bus.Publish(events.NewStepStart(step.Name, step.Kind().String()))

	stepTimeout, err := timeouts.Resolve(step, e.flow)
	if err != nil {
		return flowtypes.StepResult{}, err
	}
	policy := retryPolicyFor(step, e.flow)

	result, err := retry.Do(ctx, policy, func(ctx context.Context) (flowtypes.StepResult, error) {
		return retry.WithTimeout(ctx, stepTimeout, step.Name, "", func(ctx context.Context) (flowtypes.StepResult, error) {
			return e.runStep(ctx, step, exec)
		})
	})

	if err != nil {
		if ctx.Err() == context.Canceled {
			e.bus.Publish(events.NewStepAborted(step.Name, "cancelled"))
		}
		return flowtypes.StepResult{}, err
	}
	return result, nil
}

// runStep dispatches a single step (of any kind) to its pkg/stepexec
// executor, opening a per-step span. It is handed to condition/loop
// executors as their stepexec.RunStep callback so a nested body step
// runs through exactly this dispatch.
func (e *Executor) runStep(ctx context.Context, step *flowtypes.Step, exec *flowtypes.ExecutionContext) (flowtypes.StepResult, error) {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("step.%s", step.Kind()), trace.WithAttributes(
		attribute.String("step.name", step.Name),
		attribute.String("step.kind", step.Kind().String()),
	))
	defer span.End()

	var result flowtypes.StepResult
	var err error

	switch step.Kind() {
	case flowtypes.KindRequest:
		result, err = stepexec.ExecuteRequest(ctx, step, exec, e.dispatch)
	case flowtypes.KindTransform:
		result, err = stepexec.ExecuteTransform(ctx, step, exec)
	case flowtypes.KindCondition:
		result, err = stepexec.ExecuteCondition(ctx, step, exec, e.runStep, func(skipped *flowtypes.Step, reason string) {
			e.bus.Publish(events.NewStepSkip(skipped.Name, reason))
		})
	case flowtypes.KindLoop:
		result, err = stepexec.ExecuteLoop(ctx, step, exec, e.runStep, func(iteration, total int) {
			e.bus.Publish(events.NewStepProgress(step.Name, iteration, total))
		})
	case flowtypes.KindStop:
		result = stepexec.ExecuteStop(step)
	default:
		err = ferrors.NewValidationError(fmt.Sprintf("step %q has no recognised kind", step.Name))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, ferrors.WithStep(err, step.Name)
}

// noopLogger is the Executor's default Logger when none is injected.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})       {}
func (noopLogger) Info(string, ...interface{})        {}
func (noopLogger) Warn(string, ...interface{})        {}
func (noopLogger) Error(string, ...interface{})       {}
func (noopLogger) With(...interface{}) flowtypes.Logger { return noopLogger{} }
