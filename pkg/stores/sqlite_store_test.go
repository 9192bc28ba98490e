package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/netonboard/netonboard/pkg/engine"
)

// setupTestStore creates a file-backed SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), Config{
		Path: filepath.Join(t.TempDir(), "netonboard.db"),
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func samplePass(id string, started time.Time, status engine.PassStatus) (*engine.Plan, *engine.PassResult) {
	plan := &engine.Plan{
		ID:        "plan-" + id,
		CreatedAt: started,
		Partition: engine.DefaultPartition,
		Stages: []engine.Stage{
			{Order: 10, Steps: []engine.DeletionStep{
				{Class: "Route", Instance: "r1", Partition: "Common", Path: "/tm/net/route/~Common~r1", Order: 10, Mode: engine.ModeIndependent, Action: engine.ActionDelete},
			}},
			{Order: 20, Steps: []engine.DeletionStep{
				{Class: "DeviceGroup", Instance: "dg1", Partition: "Common", Order: 20, Mode: engine.ModeIndependent, Action: engine.ActionDeviceGroup},
			}},
		},
	}

	result := &engine.PassResult{
		ID:          id,
		PlanID:      plan.ID,
		Status:      status,
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
		Outcomes: []engine.StepOutcome{
			{Step: plan.Stages[0].Steps[0], Status: engine.StepStatusSucceeded, Duration: 150 * time.Millisecond},
			{Step: plan.Stages[1].Steps[0], Status: engine.StepStatusSucceeded, Duration: 300 * time.Millisecond},
		},
	}
	if status == engine.PassStatusFailed {
		result.Outcomes[1].Status = engine.StepStatusFailed
		result.Outcomes[1].Error = "device group is in use"
		result.FailedOrder = 20
		result.Err = errors.New("device group is in use")
	}
	return plan, result
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	// Migrating twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHealthCheckUninitialized(t *testing.T) {
	store, _ := NewSQLiteStore(Config{Path: ":memory:"})
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for uninitialized store")
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Fatal("expected migrate error for uninitialized store")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"passes", "pass_steps", "snapshots", "audit"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestRecordPass(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	plan, result := samplePass("pass-001", started, engine.PassStatusFailed)
	if err := store.RecordPass(ctx, plan, result); err != nil {
		t.Fatalf("failed to record pass: %v", err)
	}

	got, err := store.GetPass(ctx, "pass-001")
	if err != nil {
		t.Fatalf("failed to get pass: %v", err)
	}

	if got.PlanID != plan.ID {
		t.Errorf("expected PlanID %s, got %s", plan.ID, got.PlanID)
	}
	if got.Status != engine.PassStatusFailed {
		t.Errorf("expected Status %s, got %s", engine.PassStatusFailed, got.Status)
	}
	if got.Error == nil || *got.Error != "device group is in use" {
		t.Errorf("unexpected Error %v", got.Error)
	}
	if got.FailedOrder == nil || *got.FailedOrder != 20 {
		t.Errorf("unexpected FailedOrder %v", got.FailedOrder)
	}
	if got.StepCount != 2 {
		t.Errorf("expected StepCount 2, got %d", got.StepCount)
	}
	if got.Duration() != 2*time.Second {
		t.Errorf("expected Duration 2s, got %s", got.Duration())
	}

	decoded, err := got.DecodePlan()
	if err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}
	if decoded.ID != plan.ID || len(decoded.Stages) != 2 {
		t.Errorf("unexpected decoded plan %+v", decoded)
	}

	steps, err := store.ListSteps(ctx, "pass-001")
	if err != nil {
		t.Fatalf("failed to list steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Target != "/tm/net/route/~Common~r1" || steps[0].Status != engine.StepStatusSucceeded {
		t.Errorf("unexpected first step %+v", steps[0])
	}
	if steps[0].DurationMS != 150 {
		t.Errorf("expected DurationMS 150, got %d", steps[0].DurationMS)
	}
	if steps[1].Target != "dg1" || steps[1].Action != string(engine.ActionDeviceGroup) {
		t.Errorf("unexpected second step %+v", steps[1])
	}
	if steps[1].Error == nil || *steps[1].Error != "device group is in use" {
		t.Errorf("unexpected step error %v", steps[1].Error)
	}
}

func TestRecordPassSucceeded(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan, result := samplePass("pass-ok", time.Now(), engine.PassStatusSucceeded)
	if err := store.RecordPass(ctx, plan, result); err != nil {
		t.Fatalf("failed to record pass: %v", err)
	}

	got, err := store.GetPass(ctx, "pass-ok")
	if err != nil {
		t.Fatalf("failed to get pass: %v", err)
	}
	if got.Error != nil {
		t.Errorf("expected nil Error, got %v", *got.Error)
	}
	if got.FailedOrder != nil {
		t.Errorf("expected nil FailedOrder, got %v", *got.FailedOrder)
	}
}

func TestRecordPassDuplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan, result := samplePass("pass-dup", time.Now(), engine.PassStatusSucceeded)
	if err := store.RecordPass(ctx, plan, result); err != nil {
		t.Fatalf("failed to record pass: %v", err)
	}
	if err := store.RecordPass(ctx, plan, result); err == nil {
		t.Fatal("expected error recording the same pass twice")
	}

	// The failed insert must not leave extra step rows behind.
	steps, err := store.ListSteps(ctx, "pass-dup")
	if err != nil {
		t.Fatalf("failed to list steps: %v", err)
	}
	if len(steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(steps))
	}
}

func TestRecordPassNilResult(t *testing.T) {
	store := setupTestStore(t)
	if err := store.RecordPass(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestGetPassNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetPass(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPasses(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, status := range []engine.PassStatus{engine.PassStatusSucceeded, engine.PassStatusFailed, engine.PassStatusSucceeded} {
		id := []string{"p1", "p2", "p3"}[i]
		plan, result := samplePass(id, base.Add(time.Duration(i)*time.Hour), status)
		if err := store.RecordPass(ctx, plan, result); err != nil {
			t.Fatalf("failed to record pass %s: %v", id, err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		passes, err := store.ListPasses(ctx, nil, 10, 0)
		if err != nil {
			t.Fatalf("failed to list passes: %v", err)
		}
		if len(passes) != 3 {
			t.Fatalf("expected 3 passes, got %d", len(passes))
		}
		if passes[0].ID != "p3" || passes[2].ID != "p1" {
			t.Errorf("unexpected order: %s, %s, %s", passes[0].ID, passes[1].ID, passes[2].ID)
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		failed := engine.PassStatusFailed
		passes, err := store.ListPasses(ctx, &failed, 10, 0)
		if err != nil {
			t.Fatalf("failed to list passes: %v", err)
		}
		if len(passes) != 1 || passes[0].ID != "p2" {
			t.Errorf("expected only p2, got %d passes", len(passes))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		passes, err := store.ListPasses(ctx, nil, 1, 1)
		if err != nil {
			t.Fatalf("failed to list passes: %v", err)
		}
		if len(passes) != 1 || passes[0].ID != "p2" {
			t.Errorf("expected p2 on the second page")
		}
	})
}

func TestDeletePassesBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old, oldResult := samplePass("old", base, engine.PassStatusSucceeded)
	recent, recentResult := samplePass("recent", base.Add(48*time.Hour), engine.PassStatusSucceeded)
	if err := store.RecordPass(ctx, old, oldResult); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordPass(ctx, recent, recentResult); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeletePassesBefore(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("failed to delete passes: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted pass, got %d", n)
	}

	steps, err := store.ListSteps(ctx, "old")
	if err != nil {
		t.Fatalf("failed to list steps: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("expected steps to cascade, got %d", len(steps))
	}
	if _, err := store.GetPass(ctx, "recent"); err != nil {
		t.Errorf("recent pass was deleted: %v", err)
	}
}

func TestSnapshots(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.LatestSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	first := &Snapshot{Source: "file:a.json", Content: `{"Common":{}}`, CreatedAt: time.Now().Add(-time.Minute)}
	second := &Snapshot{Source: "file:b.json", Content: `{"Common":{"Route":{"r1":{}}}}`}
	for _, s := range []*Snapshot{first, second} {
		if err := store.SaveSnapshot(ctx, s); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}
		if s.ID == 0 || len(s.Hash) != 64 {
			t.Errorf("snapshot not populated: id=%d hash=%q", s.ID, s.Hash)
		}
	}

	latest, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("failed to get latest snapshot: %v", err)
	}
	if latest.ID != second.ID || latest.Content != second.Content {
		t.Errorf("expected the second snapshot, got %+v", latest)
	}

	list, err := store.ListSnapshots(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(list))
	}
	if list[0].Content != "" {
		t.Error("listed snapshots should not carry content")
	}

	if err := store.SaveSnapshot(ctx, &Snapshot{Source: "bad", Content: "{"}); err == nil {
		t.Error("expected error for invalid JSON content")
	}
}

func TestAuditEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	target := "bigip1.example.com"
	entries := []*AuditEntry{
		{Action: "handlers.applied", Actor: "alice", TargetID: &target},
		{Action: "snapshot.saved", Actor: "alice"},
		{Action: "handlers.applied", Actor: "bob"},
	}
	for _, e := range entries {
		if err := store.CreateAuditEntry(ctx, e); err != nil {
			t.Fatalf("failed to create audit entry: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected ID to be set")
		}
	}

	action := "handlers.applied"
	got, err := store.ListAuditEntries(ctx, &action, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}

	actor := "alice"
	got, err = store.ListAuditEntries(ctx, &action, &actor, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(got) != 1 || got[0].TargetID == nil || *got[0].TargetID != target {
		t.Errorf("unexpected filtered entries %+v", got)
	}
}

func TestStoreAsRecorder(t *testing.T) {
	var _ engine.Recorder = setupTestStore(t)
}
