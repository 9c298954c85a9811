package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the status of a scenario run
type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusPassed     RunStatus = "passed"
	RunStatusSoftFailed RunStatus = "soft_failed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	return s != RunStatusRunning
}

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents one execution of a scenario
type Run struct {
	ID           string     `json:"id"`
	Scenario     string     `json:"scenario"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        *string    `json:"error,omitempty"`
	SoftFailures int        `json:"soft_failures"`
	Metadata     string     `json:"metadata"` // JSON blob
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Event is an append-only trace entry
type Event struct {
	ID        int64      `json:"id"`
	EventID   string     `json:"event_id"`
	RunID     *string    `json:"run_id,omitempty"`
	Type      string     `json:"type"`
	Category  string     `json:"category,omitempty"`
	Operation string     `json:"operation,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// EventQuery filters GetEvents. Nil fields match everything.
type EventQuery struct {
	RunID    *string
	Type     *string
	Category *string
	Level    *EventLevel
	Limit    int
	Offset   int
}

// SoftFailure is a soft assertion mismatch recorded while its run went on
type SoftFailure struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Predicate string    `json:"predicate"`
	Target    string    `json:"target"`
	Message   string    `json:"message"`
	Expected  string    `json:"expected"`
	Actual    string    `json:"actual"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the journal
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, q EventQuery) ([]*Event, error)

	// Soft failure operations
	RecordSoftFailure(ctx context.Context, f *SoftFailure) error
	ListSoftFailures(ctx context.Context, runID string) ([]*SoftFailure, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
