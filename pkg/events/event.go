// Package events implements the Flow Executor's event stream (spec §6):
// an in-process, single-producer/multi-subscriber bus of typed Events
// describing flow and step lifecycle transitions, consumed by the API's
// SSE handler and by tests asserting on emission order.
package events

import (
	"time"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Type names one of the spec's eleven event kinds (§6).
type Type string

const (
	FlowStart          Type = "FLOW_START"
	FlowComplete       Type = "FLOW_COMPLETE"
	FlowError          Type = "FLOW_ERROR"
	FlowAborted        Type = "FLOW_ABORTED"
	StepStart          Type = "STEP_START"
	StepComplete       Type = "STEP_COMPLETE"
	StepError          Type = "STEP_ERROR"
	StepSkip           Type = "STEP_SKIP"
	StepAborted        Type = "STEP_ABORTED"
	StepProgress       Type = "STEP_PROGRESS"
	DependencyResolved Type = "DEPENDENCY_RESOLVED"
)

// Status is FLOW_COMPLETE's terminal status (spec §6).
type Status string

const (
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	StatusAborted  Status = "aborted"
	StatusPaused   Status = "paused"
)

// Event is the union of every field any event kind might carry; a given
// Type only populates the fields its row of the spec §6 table names.
type Event struct {
	Type      Type
	Timestamp time.Time

	FlowName string
	Status   Status
	Duration time.Duration
	Err      error
	Reason   string
	Order    []string

	StepName string
	StepKind string
	Result   flowtypes.Value

	Iteration int
	Total     int
	Percent   float64
}

func newEvent(t Type) Event { return Event{Type: t, Timestamp: time.Now()} }

// NewFlowStart builds FLOW_START{name, timestamp}.
func NewFlowStart(flowName string) Event {
	e := newEvent(FlowStart)
	e.FlowName = flowName
	return e
}

// NewFlowComplete builds FLOW_COMPLETE{status, durationMs}, always
// emitted exactly once per run with the terminal status (spec §6).
func NewFlowComplete(status Status, duration time.Duration) Event {
	e := newEvent(FlowComplete)
	e.Status = status
	e.Duration = duration
	return e
}

// NewFlowError builds FLOW_ERROR{error}.
func NewFlowError(err error) Event {
	e := newEvent(FlowError)
	e.Err = err
	return e
}

// NewFlowAborted builds FLOW_ABORTED{reason}.
func NewFlowAborted(reason string) Event {
	e := newEvent(FlowAborted)
	e.Reason = reason
	return e
}

// NewStepStart builds STEP_START{stepName, kind}.
func NewStepStart(stepName, kind string) Event {
	e := newEvent(StepStart)
	e.StepName = stepName
	e.StepKind = kind
	return e
}

// NewStepComplete builds STEP_COMPLETE{stepName, result}.
func NewStepComplete(stepName string, result flowtypes.Value) Event {
	e := newEvent(StepComplete)
	e.StepName = stepName
	e.Result = result
	return e
}

// NewStepError builds STEP_ERROR{stepName, error}.
func NewStepError(stepName string, err error) Event {
	e := newEvent(StepError)
	e.StepName = stepName
	e.Err = err
	return e
}

// NewStepSkip builds STEP_SKIP{stepName, reason}.
func NewStepSkip(stepName, reason string) Event {
	e := newEvent(StepSkip)
	e.StepName = stepName
	e.Reason = reason
	return e
}

// NewStepAborted builds STEP_ABORTED{stepName, reason}.
func NewStepAborted(stepName, reason string) Event {
	e := newEvent(StepAborted)
	e.StepName = stepName
	e.Reason = reason
	return e
}

// NewStepProgress builds STEP_PROGRESS{stepName, iteration, total, percent}.
func NewStepProgress(stepName string, iteration, total int) Event {
	e := newEvent(StepProgress)
	e.StepName = stepName
	e.Iteration = iteration
	e.Total = total
	if total > 0 {
		e.Percent = float64(iteration) / float64(total) * 100
	}
	return e
}

// NewDependencyResolved builds DEPENDENCY_RESOLVED{order}.
func NewDependencyResolved(order []string) Event {
	e := newEvent(DependencyResolved)
	e.Order = order
	return e
}
