package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/pagecore/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_RecordSoftFailure records a soft assertion failure
// against a running scenario.
func ExampleSQLiteStore_RecordSoftFailure() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.Run{ID: "run-001", Scenario: "checkout"}
	if err := store.CreateRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	err := store.RecordSoftFailure(ctx, &stores.SoftFailure{
		RunID:     run.ID,
		Predicate: "toHaveText",
		Target:    `getByTestId("total")`,
		Message:   "toHaveText failed",
		Expected:  `"$42.00"`,
		Actual:    `"$41.00"`,
	})
	if err != nil {
		log.Fatal(err)
	}
	_ = store.UpdateRunStatus(ctx, run.ID, stores.RunStatusSoftFailed, nil)

	got, _ := store.GetRun(ctx, run.ID)
	fmt.Println(got.Status, got.SoftFailures)
	// Output: soft_failed 1
}

// ExampleSQLiteStore_GetEvents reads back a run's trace in order.
func ExampleSQLiteStore_GetEvents() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.Run{ID: "run-002", Scenario: "login"}
	_ = store.CreateRun(ctx, run)

	for _, msg := range []string{"Locate button", "Element located", "Click"} {
		_ = store.AppendEvent(ctx, &stores.Event{
			RunID:   &run.ID,
			Type:    "trace",
			Level:   stores.EventLevelInfo,
			Message: msg,
		})
	}

	events, _ := store.GetEvents(ctx, stores.EventQuery{RunID: &run.ID, Limit: 2})
	for _, e := range events {
		fmt.Println(e.Message)
	}
	// Output:
	// Locate button
	// Element located
}
