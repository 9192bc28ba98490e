package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netonboard/netonboard/pkg/telemetry"
)

// DeleteHandler prunes configuration objects named in a deletion declaration.
// It is run once per onboarding pass, after creation and modification
// handlers have converged everything else.
type DeleteHandler struct {
	declaration   Declaration
	client        RemoteClient
	snapshot      Declaration
	stateProvider StateProvider
	classes       *ClassTable
	partition     string
	maxParallel   int
	guard         Guard
	recorder      Recorder
	logger        *telemetry.Logger
	metrics       *telemetry.Metrics
	tracer        *telemetry.Tracer

	lastResult *PassResult
}

// Option configures a DeleteHandler.
type Option func(*DeleteHandler)

// WithCurrentState supplies the current-state snapshot directly.
func WithCurrentState(snapshot Declaration) Option {
	return func(h *DeleteHandler) { h.snapshot = snapshot }
}

// WithStateProvider loads the snapshot from a provider when no snapshot is supplied.
func WithStateProvider(p StateProvider) Option {
	return func(h *DeleteHandler) { h.stateProvider = p }
}

// WithClassTable replaces the built-in class table.
func WithClassTable(t *ClassTable) Option {
	return func(h *DeleteHandler) { h.classes = t }
}

// WithPartition selects the declaration partition. Defaults to Common.
func WithPartition(partition string) Option {
	return func(h *DeleteHandler) { h.partition = partition }
}

// WithMaxParallel bounds concurrent calls within a stage.
func WithMaxParallel(n int) Option {
	return func(h *DeleteHandler) { h.maxParallel = n }
}

// WithGuard installs a deletion guard.
func WithGuard(g Guard) Option {
	return func(h *DeleteHandler) { h.guard = g }
}

// WithRecorder persists every settled pass.
func WithRecorder(r Recorder) Option {
	return func(h *DeleteHandler) { h.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(h *DeleteHandler) { h.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *DeleteHandler) { h.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(h *DeleteHandler) { h.tracer = t }
}

// NewDeleteHandler creates a handler for one declaration.
func NewDeleteHandler(declaration Declaration, client RemoteClient, opts ...Option) *DeleteHandler {
	h := &DeleteHandler{
		declaration: declaration,
		client:      client,
		classes:     DefaultClasses(),
		partition:   DefaultPartition,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = telemetry.NopLogger()
	}
	h.logger = h.logger.NewComponentLogger("delete-handler")
	return h
}

// Process runs one reconciliation pass and returns the first failure verbatim.
func (h *DeleteHandler) Process(ctx context.Context) error {
	_, err := h.Reconcile(ctx)
	return err
}

// Plan builds the deletion plan without calling any delete endpoint.
// Remote enumeration still lists collections.
func (h *DeleteHandler) Plan(ctx context.Context) (*Plan, error) {
	if h.client == nil {
		return nil, NewPermanentError("remote client is nil", nil).WithCode(ErrCodeValidation)
	}

	snapshot, err := h.currentState(ctx)
	if err != nil {
		return nil, err
	}

	planner := NewPlanner(PlannerConfig{
		Classes:   h.classes,
		Lister:    h.client,
		Guard:     h.guard,
		Partition: h.partition,
		Logger:    h.logger,
	})

	plan, err := planner.BuildPlan(ctx, h.declaration, snapshot)
	if err != nil {
		return nil, err
	}

	s := plan.Summary()
	h.logger.WithFields(map[string]interface{}{
		"plan_id":      plan.ID,
		"stages":       s.Stages,
		"steps":        s.Steps,
		"transactions": s.Transactions,
		"skipped":      s.Skipped,
	}).Info("deletion plan built")

	return plan, nil
}

// Reconcile plans and executes one pass and returns its aggregated result.
// A planning failure returns a nil result.
func (h *DeleteHandler) Reconcile(ctx context.Context) (*PassResult, error) {
	plan, err := h.Plan(ctx)
	if err != nil {
		code := ErrCodeEnumeration
		var engErr *EngineError
		if errors.As(err, &engErr) && engErr.Code != "" {
			code = engErr.Code
		}
		h.metrics.RecordError(string(ClassifyError(err)), code)
		return nil, err
	}

	scheduler := NewScheduler(SchedulerConfig{
		Client:      h.client,
		MaxParallel: h.maxParallel,
		Logger:      h.logger,
		Metrics:     h.metrics,
		Tracer:      h.tracer,
	})

	result, execErr := scheduler.Execute(ctx, plan)
	h.lastResult = result

	if h.recorder != nil && result != nil {
		// A recording failure does not change the pass outcome.
		if err := h.recorder.RecordPass(ctx, plan, result); err != nil {
			h.logger.WithPassID(result.ID).WithError(err).Warn("failed to record pass")
		}
	}

	return result, execErr
}

// LastResult returns the result of the most recent pass, if any.
func (h *DeleteHandler) LastResult() *PassResult {
	return h.lastResult
}

func (h *DeleteHandler) currentState(ctx context.Context) (Declaration, error) {
	if h.snapshot != nil || h.stateProvider == nil {
		return h.snapshot, nil
	}

	start := time.Now()
	snapshot, err := h.stateProvider.CurrentState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current state: %w", err)
	}
	h.logger.WithField("duration", time.Since(start).String()).Debug("loaded current state")
	return snapshot, nil
}
