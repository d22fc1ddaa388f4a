// Package flowdoc decodes a flow document — YAML or JSON, as an
// in-memory structure per spec §6 — into the pkg/flowtypes data model.
// Decoding is purely structural: `${...}` string values are left
// unparsed here and only interpreted lazily by the expression subsystem
// at evaluation time (spec §4.3), matching the teacher's own
// parse-now/evaluate-later split between pkg/parser and pkg/runtime.
package flowdoc

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/timeouts"
)

// MaxSourceSize bounds a flow document's size, mirroring the teacher's
// own guard against pathological inputs (pkg/parser.MaxSourceSize).
const MaxSourceSize = 256 * 1024

// docFlow mirrors Flow's wire shape. Every field also gets a json tag
// so the same struct decodes both YAML (gopkg.in/yaml.v3) and JSON
// (encoding/json) documents, per spec §6: "accepted as an in-memory
// structure or JSON/YAML".
type docFlow struct {
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description" json:"description"`
	Context     map[string]interface{} `yaml:"context" json:"context"`
	Steps       []docStep              `yaml:"steps" json:"steps"`
	Timeouts    *docTimeouts           `yaml:"timeouts" json:"timeouts"`
	Policies    *docPolicies           `yaml:"policies" json:"policies"`
}

type docStep struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Timeout     *int         `yaml:"timeout" json:"timeout"`
	Policies    *docPolicies `yaml:"policies" json:"policies"`

	Request   *docRequest   `yaml:"request" json:"request"`
	Transform *docTransform `yaml:"transform" json:"transform"`
	Condition *docCondition `yaml:"condition" json:"condition"`
	Loop      *docLoop      `yaml:"loop" json:"loop"`
	Stop      *docStop      `yaml:"stop" json:"stop"`
}

type docRequest struct {
	Method string      `yaml:"method" json:"method"`
	Params interface{} `yaml:"params" json:"params"`
}

type docOperation struct {
	Type    string      `yaml:"type" json:"type"`
	Using   string      `yaml:"using" json:"using"`
	As      string      `yaml:"as" json:"as"`
	Initial interface{} `yaml:"initial" json:"initial"`
}

type docTransform struct {
	Input      interface{}    `yaml:"input" json:"input"`
	Operations []docOperation `yaml:"operations" json:"operations"`
}

type docCondition struct {
	If   string   `yaml:"if" json:"if"`
	Then *docStep `yaml:"then" json:"then"`
	Else *docStep `yaml:"else" json:"else"`
}

type docLoop struct {
	Over          string     `yaml:"over" json:"over"`
	As            string     `yaml:"as" json:"as"`
	Condition     string     `yaml:"condition" json:"condition"`
	MaxIterations int        `yaml:"maxIterations" json:"maxIterations"`
	Step          *docStep   `yaml:"step" json:"step"`
	Steps         []docStep  `yaml:"steps" json:"steps"`
}

type docStop struct {
	EndWorkflow bool `yaml:"endWorkflow" json:"endWorkflow"`
}

type docTimeouts struct {
	Global     *int `yaml:"global" json:"global"`
	Request    *int `yaml:"request" json:"request"`
	Transform  *int `yaml:"transform" json:"transform"`
	Condition  *int `yaml:"condition" json:"condition"`
	Loop       *int `yaml:"loop" json:"loop"`
	Expression *int `yaml:"expression" json:"expression"`
}

type docTimeoutPolicy struct {
	Timeout float64 `yaml:"timeout" json:"timeout"`
}

type docBackoff struct {
	Strategy   string  `yaml:"strategy" json:"strategy"`
	Initial    int     `yaml:"initial" json:"initial"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	MaxDelay   int     `yaml:"maxDelay" json:"maxDelay"`
}

type docRetryPolicy struct {
	MaxAttempts     int         `yaml:"maxAttempts" json:"maxAttempts"`
	Backoff         *docBackoff `yaml:"backoff" json:"backoff"`
	RetryDelay      int         `yaml:"retryDelay" json:"retryDelay"`
	RetryableErrors []string    `yaml:"retryableErrors" json:"retryableErrors"`
}

type docPolicies struct {
	Timeout           *docTimeoutPolicy      `yaml:"timeout" json:"timeout"`
	Retry             *docRetryPolicy        `yaml:"retry" json:"retry"`
	ContinueOnFailure bool                   `yaml:"continueOnFailure" json:"continueOnFailure"`
	Step              map[string]*docPolicies `yaml:"step" json:"step"`
	Global            *docPolicies           `yaml:"global" json:"global"`
}

// DecodeYAML parses a YAML flow document into the flowtypes data model.
func DecodeYAML(data []byte) (*flowtypes.Flow, error) {
	if len(data) > MaxSourceSize {
		return nil, fmt.Errorf("flow document exceeds maximum size of %d bytes", MaxSourceSize)
	}
	var d docFlow
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing flow yaml: %w", err)
	}
	return build(&d)
}

// DecodeJSON parses a JSON flow document into the flowtypes data model.
func DecodeJSON(data []byte) (*flowtypes.Flow, error) {
	if len(data) > MaxSourceSize {
		return nil, fmt.Errorf("flow document exceeds maximum size of %d bytes", MaxSourceSize)
	}
	var d docFlow
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing flow json: %w", err)
	}
	return build(&d)
}

func build(d *docFlow) (*flowtypes.Flow, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("flow document has no name")
	}
	flow := &flowtypes.Flow{
		Name:        d.Name,
		Description: d.Description,
		Context:     d.Context,
		Timeouts:    buildTimeouts(d.Timeouts),
		Policies:    buildPolicies(d.Policies),
	}
	steps := make([]*flowtypes.Step, 0, len(d.Steps))
	for i := range d.Steps {
		s, err := buildStep(&d.Steps[i])
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	flow.Steps = steps
	return flow, nil
}

func buildStep(d *docStep) (*flowtypes.Step, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("step is missing a name")
	}
	s := &flowtypes.Step{
		Name:        d.Name,
		Description: d.Description,
		Timeout:     roundedTimeout(d.Timeout),
		Policies:    buildPolicies(d.Policies),
	}

	switch {
	case d.Request != nil:
		s.Request = &flowtypes.RequestStep{Method: d.Request.Method, Params: d.Request.Params}
	case d.Transform != nil:
		ops := make([]flowtypes.TransformOperation, 0, len(d.Transform.Operations))
		for _, op := range d.Transform.Operations {
			ops = append(ops, flowtypes.TransformOperation{
				Type:    flowtypes.TransformOpType(op.Type),
				Using:   op.Using,
				As:      op.As,
				Initial: op.Initial,
			})
		}
		s.Transform = &flowtypes.TransformStep{Input: d.Transform.Input, Operations: ops}
	case d.Condition != nil:
		cs := &flowtypes.ConditionStep{If: d.Condition.If}
		if d.Condition.Then != nil {
			then, err := buildStep(d.Condition.Then)
			if err != nil {
				return nil, err
			}
			cs.Then = then
		}
		if d.Condition.Else != nil {
			els, err := buildStep(d.Condition.Else)
			if err != nil {
				return nil, err
			}
			cs.Else = els
		}
		s.Condition = cs
	case d.Loop != nil:
		ls := &flowtypes.LoopStep{
			Over:          d.Loop.Over,
			As:            d.Loop.As,
			Condition:     d.Loop.Condition,
			MaxIterations: d.Loop.MaxIterations,
		}
		if d.Loop.Step != nil {
			body, err := buildStep(d.Loop.Step)
			if err != nil {
				return nil, err
			}
			ls.Step = body
		}
		for i := range d.Loop.Steps {
			body, err := buildStep(&d.Loop.Steps[i])
			if err != nil {
				return nil, err
			}
			ls.Steps = append(ls.Steps, body)
		}
		s.Loop = ls
	case d.Stop != nil:
		s.Stop = &flowtypes.StopStep{EndWorkflow: d.Stop.EndWorkflow}
	default:
		return nil, fmt.Errorf("step %q has no recognised variant (request/transform/condition/loop/stop)", d.Name)
	}
	return s, nil
}

func roundedTimeout(ms *int) *int {
	return ms
}

func buildTimeouts(d *docTimeouts) *flowtypes.TimeoutsConfig {
	if d == nil {
		return nil
	}
	return &flowtypes.TimeoutsConfig{
		Global:     d.Global,
		Request:    d.Request,
		Transform:  d.Transform,
		Condition:  d.Condition,
		Loop:       d.Loop,
		Expression: d.Expression,
	}
}

func buildPolicies(d *docPolicies) *flowtypes.Policies {
	if d == nil {
		return nil
	}
	p := &flowtypes.Policies{ContinueOnFailure: d.ContinueOnFailure}
	if d.Timeout != nil {
		p.Timeout = &flowtypes.TimeoutPolicy{Timeout: timeouts.RoundMS(d.Timeout.Timeout)}
	}
	if d.Retry != nil {
		rp := &flowtypes.RetryPolicy{
			MaxAttempts:     d.Retry.MaxAttempts,
			RetryDelayMS:    d.Retry.RetryDelay,
			RetryableErrors: d.Retry.RetryableErrors,
		}
		if d.Retry.Backoff != nil {
			rp.Backoff = &flowtypes.BackoffPolicy{
				Strategy:   flowtypes.BackoffStrategy(d.Retry.Backoff.Strategy),
				InitialMS:  d.Retry.Backoff.Initial,
				Multiplier: d.Retry.Backoff.Multiplier,
				MaxDelayMS: d.Retry.Backoff.MaxDelay,
			}
		}
		p.Retry = rp
	}
	if len(d.Step) > 0 {
		p.Step = make(map[string]*flowtypes.Policies, len(d.Step))
		for k, v := range d.Step {
			p.Step[k] = buildPolicies(v)
		}
	}
	if d.Global != nil {
		p.Global = buildPolicies(d.Global)
	}
	return p
}
