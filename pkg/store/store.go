// Package store provides in-memory storage for flow documents and their
// runs, grounded on the teacher's workflow/execution store but reshaped
// for this engine's domain (no GCP resource names, no long-running
// callback endpoints -- pause/resume is a direct Executor call, not a
// webhook).
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/flowlayer/engine/pkg/events"
	"github.com/flowlayer/engine/pkg/executor"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// RunState is a run's lifecycle state.
type RunState string

const (
	RunActive    RunState = "ACTIVE"
	RunSucceeded RunState = "SUCCEEDED"
	RunFailed    RunState = "FAILED"
	RunCancelled RunState = "CANCELLED"
)

// FlowRecord is a stored flow document, keyed by name.
type FlowRecord struct {
	Name        string
	Description string
	Revision    int
	Source      []byte // the raw YAML/JSON document it was decoded from
	Flow        *flowtypes.Flow
	CreateTime  time.Time
	UpdateTime  time.Time
}

// RunRecord is a stored run of one FlowRecord.
type RunRecord struct {
	Name       string
	FlowName   string
	State      RunState
	Result     flowtypes.Value
	Err        error
	StartTime  time.Time
	EndTime    time.Time
	Executor   *executor.Executor
	cancel     func()
}

// Store is thread-safe in-memory storage for flows and their runs.
type Store struct {
	mu        sync.RWMutex
	flows     map[string]*FlowRecord
	runs      map[string]*RunRecord
	runCounter int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		flows: make(map[string]*FlowRecord),
		runs:  make(map[string]*RunRecord),
	}
}

// PutFlow inserts or updates a flow document under name, incrementing
// its revision on update.
func (s *Store) PutFlow(name string, flow *flowtypes.Flow, source []byte, description string) *FlowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.flows[name]; ok {
		existing.Flow = flow
		existing.Source = source
		existing.Revision++
		existing.UpdateTime = now
		if description != "" {
			existing.Description = description
		}
		return existing
	}
	rec := &FlowRecord{
		Name:        name,
		Description: description,
		Revision:    1,
		Source:      source,
		Flow:        flow,
		CreateTime:  now,
		UpdateTime:  now,
	}
	s.flows[name] = rec
	return rec
}

// GetFlow retrieves a stored flow by name.
func (s *Store) GetFlow(name string) (*FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.flows[name]
	if !ok {
		return nil, fmt.Errorf("flow %q not found", name)
	}
	return rec, nil
}

// ListFlows returns every stored flow.
func (s *Store) ListFlows() []*FlowRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FlowRecord, 0, len(s.flows))
	for _, rec := range s.flows {
		out = append(out, rec)
	}
	return out
}

// DeleteFlow removes a stored flow.
func (s *Store) DeleteFlow(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[name]; !ok {
		return fmt.Errorf("flow %q not found", name)
	}
	delete(s.flows, name)
	return nil
}

// NewRun registers a new active run of flowName, owned by exec, and
// returns its record. cancel is called by CancelRun.
func (s *Store) NewRun(flowName string, exec *executor.Executor, cancel func()) *RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runCounter++
	name := fmt.Sprintf("%s/runs/run-%d", flowName, s.runCounter)
	rec := &RunRecord{
		Name:      name,
		FlowName:  flowName,
		State:     RunActive,
		StartTime: time.Now(),
		Executor:  exec,
		cancel:    cancel,
	}
	s.runs[name] = rec
	return rec
}

// GetRun retrieves a run record by name.
func (s *Store) GetRun(name string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[name]
	if !ok {
		return nil, fmt.Errorf("run %q not found", name)
	}
	return rec, nil
}

// ListRuns returns every run recorded for flowName.
func (s *Store) ListRuns(flowName string) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RunRecord
	for _, rec := range s.runs {
		if rec.FlowName == flowName {
			out = append(out, rec)
		}
	}
	return out
}

// FinishRun records a run's terminal outcome, mapping the caller-supplied
// FLOW_COMPLETE status onto the run state: complete becomes SUCCEEDED,
// aborted becomes CANCELLED, anything else FAILED (spec §5, §6).
func (s *Store) FinishRun(name string, status events.Status, result flowtypes.Value, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[name]
	if !ok {
		return fmt.Errorf("run %q not found", name)
	}
	rec.EndTime = time.Now()
	rec.Result = result
	rec.Err = runErr
	switch status {
	case events.StatusComplete:
		rec.State = RunSucceeded
	case events.StatusAborted:
		rec.State = RunCancelled
	default:
		rec.State = RunFailed
	}
	return nil
}

// CancelRun invokes the run's cancel function, if it has one; the
// run's state is not checked.
func (s *Store) CancelRun(name string) error {
	s.mu.RLock()
	rec, ok := s.runs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run %q not found", name)
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	return nil
}
