package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/netonboard/netonboard/pkg/telemetry"
)

// PlannerConfig configures a Planner.
type PlannerConfig struct {
	// Classes is the class table. Defaults to DefaultClasses().
	Classes *ClassTable

	// Lister is used by remote enumerators.
	Lister Lister

	// Guard optionally vetoes steps.
	Guard Guard

	// Partition is the declaration partition to plan. Defaults to Common.
	Partition string

	// Logger receives planning logs.
	Logger *telemetry.Logger
}

// Planner turns a declaration into an ordered deletion plan.
type Planner struct {
	classes   *ClassTable
	lister    Lister
	guard     Guard
	partition string
	logger    *telemetry.Logger
}

// NewPlanner creates a planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	p := &Planner{
		classes:   cfg.Classes,
		lister:    cfg.Lister,
		guard:     cfg.Guard,
		partition: cfg.Partition,
		logger:    cfg.Logger,
	}
	if p.classes == nil {
		p.classes = DefaultClasses()
	}
	if p.partition == "" {
		p.partition = DefaultPartition
	}
	if p.logger == nil {
		p.logger = telemetry.NopLogger()
	}
	return p
}

// BuildPlan computes the deletion plan for decl. The snapshot may be nil.
// Classes are visited in table order so enumeration queries are issued in a
// stable sequence. Enumeration and guard errors fail planning.
func (p *Planner) BuildPlan(ctx context.Context, decl, snapshot Declaration) (*Plan, error) {
	plan := &Plan{
		ID:                uuid.New().String(),
		CreatedAt:         time.Now(),
		Partition:         p.partition,
		ClassTableVersion: ClassTableVersion,
	}

	section := decl[p.partition]
	if len(section) == 0 {
		return plan, nil
	}

	for _, class := range section.Classes() {
		if !p.classes.IsDeletable(class) {
			p.logger.WithClass(class).Debug("class never produces deletions")
		}
	}

	stages := make(map[int][]DeletionStep)
	for _, policy := range p.classes.Classes() {
		if policy.Derived {
			continue
		}
		declared := section[policy.Class]
		if declared.Len() == 0 {
			continue
		}

		candidates, err := p.candidates(ctx, policy, declared)
		if err != nil {
			return nil, err
		}

		for _, c := range candidates {
			cp := policy
			if c.Class != policy.Class {
				var ok bool
				if cp, ok = p.classes.Lookup(c.Class); !ok {
					p.logger.WithClass(c.Class).Warn("enumerated class has no policy")
					continue
				}
			}

			if cp.IsProtected(c.Name) {
				plan.Skipped = append(plan.Skipped, SkippedStep{Class: cp.Class, Instance: c.Name, Reason: SkipReasonProtected})
				continue
			}

			step := p.resolve(cp, c, snapshot)

			if p.guard != nil {
				allowed, reason, err := p.guard.Allow(ctx, step)
				if err != nil {
					return nil, NewPermanentError("deletion guard failed", err).
						WithClass(cp.Class).
						WithOperation("plan").
						WithCode(ErrCodeGuard)
				}
				if !allowed {
					if reason == "" {
						reason = SkipReasonGuard
					}
					plan.Skipped = append(plan.Skipped, SkippedStep{Class: cp.Class, Instance: c.Name, Reason: reason})
					continue
				}
			}

			stages[step.Order] = append(stages[step.Order], step)
		}
	}

	orders := make([]int, 0, len(stages))
	for order := range stages {
		orders = append(orders, order)
	}
	sort.Ints(orders)

	for _, order := range orders {
		plan.Stages = append(plan.Stages, Stage{Order: order, Steps: stages[order]})
	}

	return plan, nil
}

// candidates returns the instances of a class that are eligible for deletion.
func (p *Planner) candidates(ctx context.Context, policy ClassPolicy, declared *Instances) ([]Candidate, error) {
	if !policy.RemoteEnumeration() {
		names := declared.Names()
		out := make([]Candidate, 0, len(names))
		for _, name := range names {
			out = append(out, Candidate{Class: policy.Class, Name: name, Partition: p.partition})
		}
		return out, nil
	}

	if p.lister == nil {
		return nil, NewPermanentError("remote enumeration requires a client", nil).
			WithClass(policy.Class).
			WithCode(ErrCodeValidation)
	}

	out, err := policy.Enumerator.Enumerate(ctx, p.lister, p.partition, declared)
	if err != nil {
		p.logger.WithClass(policy.Class).WithError(err).Error("remote enumeration failed")
		return nil, err
	}
	return out, nil
}

// resolve builds the step for a candidate.
func (p *Planner) resolve(policy ClassPolicy, c Candidate, snapshot Declaration) DeletionStep {
	partition := c.Partition
	if partition == "" {
		partition = p.partition
	}

	if policy.LocalOnlyAware {
		if body, ok := snapshot.Instances(p.partition, policy.Class).Body(c.Name); ok && isLocalOnly(body) {
			partition = LocalOnlyPartition
		}
	}

	step := DeletionStep{
		Class:     policy.Class,
		Instance:  c.Name,
		Partition: partition,
		Order:     policy.Order,
		Mode:      ModeIndependent,
		Action:    policy.Action,
	}
	if policy.Action != ActionDeviceGroup {
		step.Path = policy.Path(partition, c.Name)
	}
	if policy.TransactionGroup != "" {
		step.Mode = ModeTransactional
		step.Group = policy.TransactionGroup
	}
	return step
}
