package engine

import (
	"encoding/json"
	"fmt"
)

// PassStatus represents the state of one reconciliation pass.
type PassStatus string

const (
	// PassStatusPlanning indicates candidates are being enumerated and ordered.
	PassStatusPlanning PassStatus = "planning"

	// PassStatusExecuting indicates stages are being executed.
	PassStatusExecuting PassStatus = "executing"

	// PassStatusSucceeded indicates every planned step succeeded.
	PassStatusSucceeded PassStatus = "succeeded"

	// PassStatusFailed indicates the pass stopped on a failure.
	PassStatusFailed PassStatus = "failed"
)

// IsTerminal returns true if the pass has settled.
func (s PassStatus) IsTerminal() bool {
	return s == PassStatusSucceeded || s == PassStatusFailed
}

// Validate checks if the pass status is valid.
func (s PassStatus) Validate() error {
	switch s {
	case PassStatusPlanning, PassStatusExecuting, PassStatusSucceeded, PassStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid pass status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s PassStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PassStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := PassStatus(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}

// StepStatus represents the outcome of one deletion step.
type StepStatus string

const (
	// StepStatusSucceeded indicates the remote call succeeded.
	StepStatusSucceeded StepStatus = "succeeded"

	// StepStatusFailed indicates the remote call returned an error.
	StepStatusFailed StepStatus = "failed"

	// StepStatusNotAttempted indicates the step belonged to a stage after a failed one.
	StepStatusNotAttempted StepStatus = "not_attempted"
)

// Validate checks if the step status is valid.
func (s StepStatus) Validate() error {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusNotAttempted:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// StepMode describes how a step is submitted within its stage.
type StepMode string

const (
	// ModeIndependent steps run concurrently with their siblings.
	ModeIndependent StepMode = "independent"

	// ModeTransactional steps are submitted together with the rest of their group.
	ModeTransactional StepMode = "transactional"
)
