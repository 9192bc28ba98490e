package engine

import (
	"sync"
	"time"
)

// resultAggregator collects step outcomes from concurrent workers. Outcomes
// are stored at the step's position in the plan, so the final slice keeps
// plan order no matter how calls complete.
type resultAggregator struct {
	mu       sync.Mutex
	outcomes []StepOutcome
	offsets  []int
}

func newResultAggregator(plan *Plan) *resultAggregator {
	a := &resultAggregator{offsets: make([]int, len(plan.Stages))}
	total := 0
	for i, stage := range plan.Stages {
		a.offsets[i] = total
		total += len(stage.Steps)
	}

	a.outcomes = make([]StepOutcome, 0, total)
	for _, stage := range plan.Stages {
		for _, step := range stage.Steps {
			a.outcomes = append(a.outcomes, StepOutcome{Step: step, Status: StepStatusNotAttempted})
		}
	}
	return a
}

// record stores the settled outcome of step idx of stage.
func (a *resultAggregator) record(stage, idx int, err error, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o := &a.outcomes[a.offsets[stage]+idx]
	o.Duration = d
	if err != nil {
		o.Status = StepStatusFailed
		o.Error = err.Error()
		return
	}
	o.Status = StepStatusSucceeded
}

// snapshot returns a copy of the collected outcomes.
func (a *resultAggregator) snapshot() []StepOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]StepOutcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}
