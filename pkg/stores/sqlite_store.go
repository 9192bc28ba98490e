package stores

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/netonboard/netonboard/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string        `yaml:"path" env:"NETONBOARD_STORE_PATH" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"NETONBOARD_STORE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"NETONBOARD_STORE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"NETONBOARD_STORE_CONN_MAX_LIFETIME"`
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 8
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens its own database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate&_time_format=sqlite", s.cfg.Path)
	if s.cfg.Path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// RecordPass stores a settled pass, its plan and one row per step outcome in
// a single transaction.
func (s *SQLiteStore) RecordPass(ctx context.Context, plan *engine.Plan, result *engine.PassResult) error {
	if result == nil {
		return fmt.Errorf("pass result is nil")
	}

	planJSON := []byte("{}")
	partition := engine.DefaultPartition
	if plan != nil {
		data, err := json.Marshal(plan)
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		planJSON = data
		partition = plan.Partition
	}

	var errMsg *string
	if msg := result.ErrorMessage(); msg != "" {
		errMsg = &msg
	}
	var failedOrder *int
	if result.Status == engine.PassStatusFailed {
		order := result.FailedOrder
		failedOrder = &order
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes (id, plan_id, partition, status, started_at, completed_at, error, failed_order, step_count, plan, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.PlanID,
		partition,
		string(result.Status),
		result.StartedAt.UTC(),
		result.CompletedAt.UTC(),
		errMsg,
		failedOrder,
		len(result.Outcomes),
		string(planJSON),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pass_steps (pass_id, position, stage_order, class, instance, target, action, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range result.Outcomes {
		var stepErr *string
		if o.Error != "" {
			msg := o.Error
			stepErr = &msg
		}
		_, err := stmt.ExecContext(ctx,
			result.ID,
			i,
			o.Step.Order,
			o.Step.Class,
			o.Step.Instance,
			o.Step.Target(),
			string(o.Step.Action),
			string(o.Status),
			stepErr,
			o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to record step %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const passColumns = `id, plan_id, partition, status, started_at, completed_at, error, failed_order, step_count, plan, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPass(row scanner) (*Pass, error) {
	p := &Pass{}
	var status string
	var failedOrder sql.NullInt64
	err := row.Scan(
		&p.ID,
		&p.PlanID,
		&p.Partition,
		&status,
		&p.StartedAt,
		&p.CompletedAt,
		&p.Error,
		&failedOrder,
		&p.StepCount,
		&p.Plan,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = engine.PassStatus(status)
	if failedOrder.Valid {
		order := int(failedOrder.Int64)
		p.FailedOrder = &order
	}
	return p, nil
}

// GetPass retrieves a pass by ID
func (s *SQLiteStore) GetPass(ctx context.Context, id string) (*Pass, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ?`, id)

	p, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pass %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pass: %w", err)
	}
	return p, nil
}

// DecodePlan returns the plan the pass executed.
func (p *Pass) DecodePlan() (*engine.Plan, error) {
	var plan engine.Plan
	if err := json.Unmarshal([]byte(p.Plan), &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan of pass %s: %w", p.ID, err)
	}
	return &plan, nil
}

// ListPasses lists passes, newest first, optionally filtered by status.
func (s *SQLiteStore) ListPasses(ctx context.Context, status *engine.PassStatus, limit, offset int) ([]*Pass, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+passColumns+`
		FROM passes
		WHERE (? IS NULL OR status = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, filter, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	defer rows.Close()

	passes := []*Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		passes = append(passes, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passes: %w", err)
	}

	return passes, nil
}

// ListSteps returns the step outcomes of a pass in plan order.
func (s *SQLiteStore) ListSteps(ctx context.Context, passID string) ([]*StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pass_id, position, stage_order, class, instance, target, action, status, error, duration_ms
		FROM pass_steps
		WHERE pass_id = ?
		ORDER BY position ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*StepRecord{}
	for rows.Next() {
		step := &StepRecord{}
		var status string
		err := rows.Scan(
			&step.ID,
			&step.PassID,
			&step.Position,
			&step.StageOrder,
			&step.Class,
			&step.Instance,
			&step.Target,
			&step.Action,
			&status,
			&step.Error,
			&step.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Status = engine.StepStatus(status)
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

// DeletePassesBefore removes passes that started before the given time,
// together with their steps.
func (s *SQLiteStore) DeletePassesBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM passes WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete passes: %w", err)
	}
	return result.RowsAffected()
}

// SaveSnapshot stores a snapshot. The content must be a JSON object.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	if !json.Valid([]byte(snapshot.Content)) {
		return fmt.Errorf("snapshot content is not valid JSON")
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	sum := sha256.Sum256([]byte(snapshot.Content))
	snapshot.Hash = hex.EncodeToString(sum[:])

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (source, content, hash, created_at)
		VALUES (?, ?, ?, ?)
	`, snapshot.Source, snapshot.Content, snapshot.Hash, snapshot.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot ID: %w", err)
	}
	snapshot.ID = id
	return nil
}

// LatestSnapshot returns the most recently stored snapshot.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, content, hash, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&snap.ID, &snap.Source, &snap.Content, &snap.Hash, &snap.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots lists snapshots without their content, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit, offset int) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, hash, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		snap := &Snapshot{}
		if err := rows.Scan(&snap.ID, &snap.Source, &snap.Hash, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO audit (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
