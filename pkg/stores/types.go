package stores

import (
	"context"
	"database/sql"
	"time"

	"github.com/netonboard/netonboard/pkg/engine"
)

// Pass is a recorded reconciliation pass.
type Pass struct {
	ID          string            `json:"id" yaml:"id"`
	PlanID      string            `json:"plan_id" yaml:"plan_id"`
	Partition   string            `json:"partition" yaml:"partition"`
	Status      engine.PassStatus `json:"status" yaml:"status"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time         `json:"completed_at" yaml:"completed_at"`
	Error       *string           `json:"error,omitempty" yaml:"error,omitempty"`
	FailedOrder *int              `json:"failed_order,omitempty" yaml:"failed_order,omitempty"`
	StepCount   int               `json:"step_count" yaml:"step_count"`
	Plan        string            `json:"-" yaml:"-"` // JSON blob
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
}

// Duration returns how long the pass ran.
func (p *Pass) Duration() time.Duration {
	return p.CompletedAt.Sub(p.StartedAt)
}

// StepRecord is the recorded outcome of one planned step.
type StepRecord struct {
	ID         int64             `json:"id" yaml:"id"`
	PassID     string            `json:"pass_id" yaml:"pass_id"`
	Position   int               `json:"position" yaml:"position"`
	StageOrder int               `json:"stage_order" yaml:"stage_order"`
	Class      string            `json:"class" yaml:"class"`
	Instance   string            `json:"instance" yaml:"instance"`
	Target     string            `json:"target" yaml:"target"`
	Action     string            `json:"action" yaml:"action"`
	Status     engine.StepStatus `json:"status" yaml:"status"`
	Error      *string           `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS int64             `json:"duration_ms" yaml:"duration_ms"`
}

// Snapshot is a stored copy of the device configuration.
type Snapshot struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"` // JSON blob
	Hash      string    `json:"hash"`    // SHA256 of content
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g. "handlers.applied", "snapshot.saved"
	Actor     string    `json:"actor"`               // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // device or pass ID
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	engine.Recorder

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Pass operations
	GetPass(ctx context.Context, id string) (*Pass, error)
	ListPasses(ctx context.Context, status *engine.PassStatus, limit, offset int) ([]*Pass, error)
	ListSteps(ctx context.Context, passID string) ([]*StepRecord, error)
	DeletePassesBefore(ctx context.Context, before time.Time) (int64, error)

	// Snapshot operations
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
	ListSnapshots(ctx context.Context, limit, offset int) ([]*Snapshot, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
