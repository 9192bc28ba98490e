package policy

import (
	"time"

	"github.com/netonboard/netonboard/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is logged but does not block the step.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the step.
	SeverityError Severity = "error"

	// SeverityCritical blocks the step.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity vetoes a step.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. It must define a "deny" set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the binary.
	Builtin bool `json:"builtin,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was loaded.
	CreatedAt time.Time `json:"created_at"`
}

// Violation is a single deny result.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Input is the document policies are evaluated against.
type Input struct {
	Step    StepInput    `json:"step"`
	Context InputContext `json:"context"`
}

// StepInput is the planned step under evaluation.
type StepInput struct {
	Class     string `json:"class"`
	Instance  string `json:"instance"`
	Partition string `json:"partition"`
	Path      string `json:"path"`
	Order     int    `json:"order"`
	Mode      string `json:"mode"`
	Action    string `json:"action"`
}

// InputContext carries evaluation metadata.
type InputContext struct {
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func newInput(step engine.DeletionStep) *Input {
	return &Input{
		Step: StepInput{
			Class:     step.Class,
			Instance:  step.Instance,
			Partition: step.Partition,
			Path:      step.Path,
			Order:     step.Order,
			Mode:      string(step.Mode),
			Action:    string(step.Action),
		},
		Context: InputContext{
			Operation: "delete",
			Timestamp: time.Now(),
		},
	}
}
