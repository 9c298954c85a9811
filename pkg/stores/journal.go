package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openfroyo/pagecore/pkg/telemetry"
)

// Journal is the persistent destination of a run's trace. It subscribes to
// an EventPublisher and writes runs, events and soft failures to a Store.
type Journal struct {
	store   Store
	logger  *telemetry.Logger
	timeout time.Duration
}

// NewJournal returns a journal over store. Write errors are logged to
// logger and never reach the publisher.
func NewJournal(store Store, logger *telemetry.Logger) *Journal {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &Journal{
		store:   store,
		logger:  logger.NewComponentLogger("journal"),
		timeout: 5 * time.Second,
	}
}

// Attach subscribes the journal to events. Events without a run ID are
// not journaled.
func (j *Journal) Attach(events *telemetry.EventPublisher) {
	events.Subscribe(j.Record, func(ev telemetry.Event) bool { return ev.RunID != "" })
}

// Record writes one event. Run lifecycle events also create or close the
// run row, and soft failures get their own row.
func (j *Journal) Record(ev telemetry.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	l := j.logger.WithFields(map[string]interface{}{
		"event_type": ev.Type,
		"run_id":     ev.RunID,
	})
	if err := j.record(ctx, ev); err != nil {
		l.WithError(err).Warn("Journal write failed")
		return
	}
	l.Trace("Event journaled")
}

func (j *Journal) record(ctx context.Context, ev telemetry.Event) error {
	switch ev.Type {
	case telemetry.EventTypeRunStarted:
		scenario, _ := ev.Data["scenario"].(string)
		if scenario == "" {
			j.logger.Warnf("Run %s started without a scenario name", ev.RunID)
		}
		run := &Run{ID: ev.RunID, Scenario: scenario, Status: RunStatusRunning, StartedAt: ev.Timestamp.UTC()}
		if err := j.store.CreateRun(ctx, run); err != nil {
			return err
		}
	case telemetry.EventTypeRunCompleted:
		status := RunStatusPassed
		if s, ok := ev.Data["status"].(string); ok && s != "" {
			status = RunStatus(s)
		}
		if err := j.store.UpdateRunStatus(ctx, ev.RunID, status, nil); err != nil {
			return err
		}
	case telemetry.EventTypeRunFailed:
		reason, _ := ev.Data["reason"].(string)
		if err := j.store.UpdateRunStatus(ctx, ev.RunID, RunStatusFailed, &reason); err != nil {
			return err
		}
	case telemetry.EventTypeSoftFailure:
		f := &SoftFailure{
			RunID:     ev.RunID,
			Predicate: ev.Operation,
			Target:    stringField(ev.Data, "target"),
			Message:   ev.Message,
			Expected:  stringField(ev.Data, "expected"),
			Actual:    stringField(ev.Data, "actual"),
			Timestamp: ev.Timestamp.UTC(),
		}
		if err := j.store.RecordSoftFailure(ctx, f); err != nil {
			return err
		}
	}

	runID := ev.RunID
	entry := &Event{
		EventID:   ev.ID,
		RunID:     &runID,
		Type:      ev.Type,
		Category:  ev.Category,
		Operation: ev.Operation,
		Level:     EventLevel(ev.Level),
		Message:   ev.Message,
		Timestamp: ev.Timestamp.UTC(),
	}
	if len(ev.Data) > 0 {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		details := string(data)
		entry.Details = &details
	}
	return j.store.AppendEvent(ctx, entry)
}

func stringField(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
