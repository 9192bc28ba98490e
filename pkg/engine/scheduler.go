package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/netonboard/netonboard/pkg/telemetry"
)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Client performs the remote removals.
	Client RemoteClient

	// MaxParallel bounds concurrent calls within a stage. Zero means unbounded.
	MaxParallel int

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Scheduler executes deletion plans stage by stage.
// Every call launched for a stage is awaited before the stage's result is
// inspected, and a failed stage stops the pass.
type Scheduler struct {
	client      RemoteClient
	maxParallel int
	logger      *telemetry.Logger
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{
		client:      cfg.Client,
		maxParallel: cfg.MaxParallel,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
	}
	if s.logger == nil {
		s.logger = telemetry.NopLogger()
	}
	return s
}

// Execute runs plan against the remote system. The returned error is the
// first failing step's error exactly as the client returned it; the result
// is populated in both cases.
func (s *Scheduler) Execute(ctx context.Context, plan *Plan) (*PassResult, error) {
	if plan == nil {
		return nil, NewPermanentError("plan is nil", nil).WithCode(ErrCodeValidation)
	}
	if s.client == nil {
		return nil, NewPermanentError("remote client is nil", nil).WithCode(ErrCodeValidation)
	}

	result := &PassResult{
		ID:        uuid.New().String(),
		PlanID:    plan.ID,
		Status:    PassStatusExecuting,
		StartedAt: time.Now(),
	}
	logger := s.logger.WithPassID(result.ID)
	agg := newResultAggregator(plan)

	ctx, span := s.tracer.StartPassSpan(ctx, result.ID)
	defer span.End()
	s.metrics.RecordPassStarted()

	summary := plan.Summary()
	logger.WithFields(map[string]interface{}{
		"plan_id": plan.ID,
		"stages":  summary.Stages,
		"steps":   summary.Steps,
		"skipped": summary.Skipped,
	}).Info("executing deletion plan")

	for i, stage := range plan.Stages {
		if err := s.executeStage(ctx, logger, agg, i, stage); err != nil {
			result.Err = err
			result.FailedOrder = stage.Order
			break
		}
	}

	result.Outcomes = agg.snapshot()
	result.CompletedAt = time.Now()
	result.Status = PassStatusSucceeded
	if result.Err != nil {
		result.Status = PassStatusFailed
		telemetry.RecordError(span, result.Err)
		s.metrics.RecordError(string(ClassifyError(result.Err)), "DELETE_FAILED")
		logger.WithError(result.Err).
			WithField("order", result.FailedOrder).
			Error("deletion pass failed")
	} else {
		telemetry.RecordSuccess(span)
		logger.WithField("duration", result.Duration().String()).Info("deletion pass succeeded")
	}
	s.metrics.RecordPassCompleted(string(result.Status), result.Duration())

	return result, result.Err
}

// executeStage issues every step of a stage and waits for all of them.
// Independent steps fan out; transactional steps are batched per group.
func (s *Scheduler) executeStage(ctx context.Context, logger *telemetry.Logger, agg *resultAggregator, stageIdx int, stage Stage) error {
	ctx, span := s.tracer.StartStageSpan(ctx, stage.Order, len(stage.Steps))
	defer span.End()

	logger.WithField("order", stage.Order).Debugf("executing stage with %d steps", len(stage.Steps))

	// The group has no derived context: a failing sibling must not cancel
	// calls that are already in flight.
	var g errgroup.Group
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}

	var groupOrder []string
	groups := make(map[string][]int)

	// Calls are issued in plan order and then run concurrently. Each call
	// waits for its predecessor to be issued before it starts.
	var prev <-chan struct{}
	launch := func(call func(ctx context.Context) error) {
		wait := prev
		issued := make(chan struct{})
		prev = issued
		g.Go(func() error {
			if wait != nil {
				<-wait
			}
			release := sync.OnceFunc(func() { close(issued) })
			defer release()
			return call(NotifyOnIssue(ctx, release))
		})
	}

	for idx, step := range stage.Steps {
		if step.Mode == ModeTransactional {
			if _, seen := groups[step.Group]; !seen {
				groupOrder = append(groupOrder, step.Group)
			}
			groups[step.Group] = append(groups[step.Group], idx)
			continue
		}

		launch(func(ctx context.Context) error {
			return s.runStep(ctx, logger, agg, stageIdx, idx, step)
		})
	}

	for _, name := range groupOrder {
		indices := groups[name]
		launch(func(ctx context.Context) error {
			return s.runTransaction(ctx, logger, agg, stageIdx, stage, name, indices)
		})
	}

	err := g.Wait()
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

func (s *Scheduler) runStep(ctx context.Context, logger *telemetry.Logger, agg *resultAggregator, stageIdx, idx int, step DeletionStep) error {
	start := time.Now()

	var err error
	switch step.Action {
	case ActionDeviceGroup:
		err = s.client.DeleteDeviceGroup(ctx, step.Instance)
	default:
		err = s.client.Delete(ctx, step.Path)
	}

	d := time.Since(start)
	agg.record(stageIdx, idx, err, d)
	s.observe(logger, step, err, d)
	return err
}

func (s *Scheduler) runTransaction(ctx context.Context, logger *telemetry.Logger, agg *resultAggregator, stageIdx int, stage Stage, group string, indices []int) error {
	ops := make([]TransactionOp, 0, len(indices))
	for _, idx := range indices {
		ops = append(ops, TransactionOp{Method: "delete", Path: stage.Steps[idx].Path})
	}

	logger.WithField("group", group).Debugf("submitting transaction with %d operations", len(ops))

	start := time.Now()
	err := s.client.Transaction(ctx, ops)
	d := time.Since(start)

	for _, idx := range indices {
		agg.record(stageIdx, idx, err, d)
		s.observe(logger, stage.Steps[idx], err, d)
	}
	return err
}

func (s *Scheduler) observe(logger *telemetry.Logger, step DeletionStep, err error, d time.Duration) {
	status := StepStatusSucceeded
	l := logger.WithClass(step.Class).WithField("target", step.Target())
	if err != nil {
		status = StepStatusFailed
		l.WithError(err).Warn("deletion failed")
	} else {
		l.Debug("deleted")
	}
	s.metrics.RecordStep(step.Class, string(status), d)
}

type issueKey struct{}

// NotifyOnIssue returns a context whose Issued call runs fn.
func NotifyOnIssue(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, issueKey{}, fn)
}

// Issued reports that the remote call carrying ctx has been sent. Clients
// call it once the request is on the wire so the scheduler can issue the
// next sibling while this one is still in flight. A client that never calls
// it gets its siblings issued one after another as each call returns.
func Issued(ctx context.Context) {
	if fn, ok := ctx.Value(issueKey{}).(func()); ok {
		fn()
	}
}
