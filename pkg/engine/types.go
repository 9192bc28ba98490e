package engine

import (
	"time"
)

// DeletionStep is one planned removal.
type DeletionStep struct {
	// Class is the policy class of the instance.
	Class string `json:"class" yaml:"class"`

	// Instance is the instance key.
	Instance string `json:"instance" yaml:"instance"`

	// Partition is the resolved partition.
	Partition string `json:"partition" yaml:"partition"`

	// Path is the remote path of the instance. Empty for device groups.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Order is the stage the step belongs to.
	Order int `json:"order" yaml:"order"`

	// Mode is independent or transactional.
	Mode StepMode `json:"mode" yaml:"mode"`

	// Group is the transaction group for transactional steps.
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// Action is the remote operation that removes the instance.
	Action Action `json:"action" yaml:"action"`
}

// Target returns the path, or the instance name for cluster operations.
func (s DeletionStep) Target() string {
	if s.Action == ActionDeviceGroup {
		return s.Instance
	}
	return s.Path
}

// Stage groups the steps that share an order value.
type Stage struct {
	Order int            `json:"order" yaml:"order"`
	Steps []DeletionStep `json:"steps" yaml:"steps"`
}

// SkippedStep records an instance that was dropped while planning.
type SkippedStep struct {
	Class    string `json:"class" yaml:"class"`
	Instance string `json:"instance" yaml:"instance"`
	Reason   string `json:"reason" yaml:"reason"`
}

// Skip reasons.
const (
	SkipReasonProtected = "protected"
	SkipReasonGuard     = "denied by guard"
)

// Plan is an ordered set of deletion stages for one partition.
type Plan struct {
	// ID is the unique identifier of the plan.
	ID string `json:"id" yaml:"id"`

	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Partition is the declaration partition the plan was built for.
	Partition string `json:"partition" yaml:"partition"`

	// ClassTableVersion is the class table revision used.
	ClassTableVersion string `json:"class_table_version" yaml:"class_table_version"`

	// Stages are ordered by ascending Order.
	Stages []Stage `json:"stages" yaml:"stages"`

	// Skipped lists instances that were dropped while planning.
	Skipped []SkippedStep `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Steps returns every step in execution order.
func (p *Plan) Steps() []DeletionStep {
	if p == nil {
		return nil
	}
	var out []DeletionStep
	for _, stage := range p.Stages {
		out = append(out, stage.Steps...)
	}
	return out
}

// IsEmpty reports whether the plan has no steps.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Stages) == 0
}

// PlanSummary provides counts for a plan.
type PlanSummary struct {
	Stages       int `json:"stages" yaml:"stages"`
	Steps        int `json:"steps" yaml:"steps"`
	Transactions int `json:"transactions" yaml:"transactions"`
	DeviceGroups int `json:"device_groups" yaml:"device_groups"`
	Skipped      int `json:"skipped" yaml:"skipped"`
}

// Summary counts the plan's stages, steps and remote submissions.
func (p *Plan) Summary() PlanSummary {
	if p == nil {
		return PlanSummary{}
	}
	s := PlanSummary{Stages: len(p.Stages), Skipped: len(p.Skipped)}
	for _, stage := range p.Stages {
		groups := make(map[string]struct{})
		for _, step := range stage.Steps {
			s.Steps++
			switch {
			case step.Action == ActionDeviceGroup:
				s.DeviceGroups++
			case step.Mode == ModeTransactional:
				groups[step.Group] = struct{}{}
			}
		}
		s.Transactions += len(groups)
	}
	return s
}

// TransactionOp is one operation inside an atomic remote transaction.
type TransactionOp struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// StepOutcome is the settled result of one step.
type StepOutcome struct {
	Step     DeletionStep  `json:"step"`
	Status   StepStatus    `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// PassResult is the aggregated result of one reconciliation pass.
type PassResult struct {
	// ID is the unique identifier of the pass.
	ID string `json:"id"`

	// PlanID is the plan executed by the pass.
	PlanID string `json:"plan_id"`

	// Status is the final pass status.
	Status PassStatus `json:"status"`

	// StartedAt is when execution started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the pass settled.
	CompletedAt time.Time `json:"completed_at"`

	// Outcomes holds one entry per planned step.
	Outcomes []StepOutcome `json:"outcomes"`

	// FailedOrder is the order of the stage that failed, if any.
	FailedOrder int `json:"failed_order,omitempty"`

	// Err is the first failing step's error, exactly as returned by the remote client.
	Err error `json:"-"`
}

// ErrorMessage returns the failure message, or an empty string.
func (r *PassResult) ErrorMessage() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Duration returns how long the pass ran.
func (r *PassResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Count returns how many outcomes have the given status.
func (r *PassResult) Count(status StepStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
