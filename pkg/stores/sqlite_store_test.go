package stores

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func createRun(t *testing.T, store *SQLiteStore, id string) *Run {
	t.Helper()
	run := &Run{ID: id, Scenario: "checkout", Metadata: `{"browser":"chromium"}`}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "journal.db"),
	})
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

	// Migrating twice is a no-op.
	for i := 0; i < 2; i++ {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migration %d failed: %v", i+1, err)
		}
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

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	tables := []string{"runs", "events", "soft_failures"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := createRun(t, store, "run-001")

	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if retrieved.Scenario != "checkout" {
		t.Errorf("expected Scenario checkout, got %s", retrieved.Scenario)
	}
	if retrieved.Status != RunStatusRunning {
		t.Errorf("expected Status %s, got %s", RunStatusRunning, retrieved.Status)
	}
	if retrieved.CompletedAt != nil {
		t.Errorf("expected CompletedAt unset, got %v", retrieved.CompletedAt)
	}

	errMsg := "toHaveText failed"
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}
	if updated.Status != RunStatusFailed {
		t.Errorf("expected Status %s, got %s", RunStatusFailed, updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	if _, err := store.GetRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted run, got %v", err)
	}
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusPassed, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound updating deleted run, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &Run{ID: id, Scenario: "s", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("unexpected page: %v", runIDs(runs))
	}

	runs, err = store.ListRuns(ctx, 2, 2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-a" {
		t.Errorf("unexpected second page: %v", runIDs(runs))
	}
}

func runIDs(runs []*Run) []string {
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}

// TestEventOperations tests event append and filtering
func TestEventOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := createRun(t, store, "run-events")

	details := `{"locator":"getByRole(\"button\")"}`
	events := []*Event{
		{EventID: "e1", RunID: &run.ID, Type: "step.started", Category: "action", Operation: "click", Level: EventLevelInfo, Message: "Click"},
		{EventID: "e2", RunID: &run.ID, Type: "trace", Category: "action", Operation: "click", Level: EventLevelInfo, Message: "Element located", Details: &details},
		{EventID: "e3", RunID: &run.ID, Type: "step.failed", Category: "action", Operation: "click", Level: EventLevelError, Message: "Click"},
		{EventID: "e4", RunID: &run.ID, Type: "step.completed", Category: "wait", Operation: "url", Level: EventLevelInfo, Message: "Wait"},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID to be set")
		}
	}

	all, err := store.GetEvents(ctx, EventQuery{RunID: &run.ID})
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	for i, e := range all {
		if e.EventID != events[i].EventID {
			t.Errorf("event %d = %s, want %s", i, e.EventID, events[i].EventID)
		}
	}
	if all[1].Details == nil || *all[1].Details != details {
		t.Errorf("details not preserved: %v", all[1].Details)
	}

	level := EventLevelError
	errs, err := store.GetEvents(ctx, EventQuery{Level: &level})
	if err != nil {
		t.Fatalf("failed to get error events: %v", err)
	}
	if len(errs) != 1 || errs[0].EventID != "e3" {
		t.Errorf("level filter returned %d events", len(errs))
	}

	category := "action"
	typ := "trace"
	traced, err := store.GetEvents(ctx, EventQuery{Category: &category, Type: &typ})
	if err != nil {
		t.Fatalf("failed to get trace events: %v", err)
	}
	if len(traced) != 1 || traced[0].EventID != "e2" {
		t.Errorf("category and type filter returned %d events", len(traced))
	}

	page, err := store.GetEvents(ctx, EventQuery{RunID: &run.ID, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("failed to page events: %v", err)
	}
	if len(page) != 2 || page[0].EventID != "e2" {
		t.Errorf("paging returned %d events", len(page))
	}
}

func TestSoftFailures(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := createRun(t, store, "run-soft")

	for _, pred := range []string{"toHaveText", "toBeVisible"} {
		f := &SoftFailure{RunID: run.ID, Predicate: pred, Target: "getByTestId(\"total\")", Message: pred + " failed", Expected: "42", Actual: "41"}
		if err := store.RecordSoftFailure(ctx, f); err != nil {
			t.Fatalf("failed to record soft failure: %v", err)
		}
	}

	list, err := store.ListSoftFailures(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list soft failures: %v", err)
	}
	if len(list) != 2 || list[0].Predicate != "toHaveText" || list[1].Predicate != "toBeVisible" {
		t.Fatalf("unexpected soft failures: %+v", list)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.SoftFailures != 2 {
		t.Errorf("expected SoftFailures 2, got %d", got.SoftFailures)
	}

	err = store.RecordSoftFailure(ctx, &SoftFailure{RunID: "missing", Predicate: "toBe", Message: "x"})
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if list, _ := store.ListSoftFailures(ctx, "missing"); len(list) != 0 {
		t.Errorf("failed insert was not rolled back: %d rows", len(list))
	}
}

func TestTransactions(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	query := `
		INSERT INTO runs (id, scenario, status, started_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	if _, err := tx.ExecContext(ctx, query, "run-tx", "s", RunStatusRunning, now, "{}", now, now); err != nil {
		_ = store.RollbackTx(tx)
		t.Fatalf("failed to insert run in transaction: %v", err)
	}
	if err := store.RollbackTx(tx); err != nil {
		t.Fatalf("failed to rollback transaction: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-tx"); err == nil {
		t.Error("expected error when getting rolled back run")
	}

	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin second transaction: %v", err)
	}
	if _, err := tx.ExecContext(ctx, query, "run-tx", "s", RunStatusRunning, now, "{}", now, now); err != nil {
		_ = store.RollbackTx(tx)
		t.Fatalf("failed to insert run in second transaction: %v", err)
	}
	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-tx"); err != nil {
		t.Fatalf("failed to get committed run: %v", err)
	}
}

// TestCascadeDelete tests foreign key cascading
func TestCascadeDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	run := createRun(t, store, "run-cascade")

	if err := store.AppendEvent(ctx, &Event{EventID: "e", RunID: &run.ID, Type: "trace", Level: EventLevelInfo, Message: "m"}); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	if err := store.RecordSoftFailure(ctx, &SoftFailure{RunID: run.ID, Predicate: "toBe", Message: "m"}); err != nil {
		t.Fatalf("failed to record soft failure: %v", err)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	events, err := store.GetEvents(ctx, EventQuery{RunID: &run.ID})
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events after cascade delete, got %d", len(events))
	}
	soft, err := store.ListSoftFailures(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to list soft failures: %v", err)
	}
	if len(soft) != 0 {
		t.Errorf("expected 0 soft failures after cascade delete, got %d", len(soft))
	}
}

func TestEventRequiresKnownRun(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	missing := "nope"
	err := store.AppendEvent(context.Background(), &Event{EventID: "e", RunID: &missing, Type: "trace", Level: EventLevelInfo, Message: "m"})
	if err == nil || !strings.Contains(err.Error(), "failed to append event") {
		t.Errorf("expected foreign key failure, got %v", err)
	}
}
