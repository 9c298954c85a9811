package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one entry of a run's trace, as delivered to subscribers such as
// the journal store.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated scenario run, if any.
	RunID string `json:"run_id,omitempty"`

	// Category and Operation name the engine step the event belongs to.
	Category  string `json:"category,omitempty"`
	Operation string `json:"operation,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeRunStarted    = "run.started"
	EventTypeRunCompleted  = "run.completed"
	EventTypeRunFailed     = "run.failed"
	EventTypeStepStarted   = "step.started"
	EventTypeStepCompleted = "step.completed"
	EventTypeStepFailed    = "step.failed"
	EventTypeTrace         = "trace"
	EventTypeSoftFailure   = "assertion.soft_failed"
	EventTypeError         = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers. Subscribers see events in
// publish order, one at a time.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan queued
	subscribers []subscriberEntry
	filters     []EventFilter
	subMu       sync.RWMutex
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// queued is a buffered event, or a flush marker when ack is set.
type queued struct {
	event Event
	ack   chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan queued, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if len(cfg.ExcludeTypes) > 0 {
		ep.AddFilter(ExcludeTypes(cfg.ExcludeTypes...))
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// ExcludeTypes returns a filter that drops events of the given types.
func ExcludeTypes(types ...string) EventFilter {
	drop := make(map[string]bool, len(types))
	for _, t := range types {
		drop[t] = true
	}
	return func(ev Event) bool { return !drop[ev.Type] }
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.subMu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.subMu.RUnlock()
			return nil
		}
	}
	ep.subMu.RUnlock()

	ep.mu.RLock()
	if ep.closed {
		ep.mu.RUnlock()
		return fmt.Errorf("event publisher stopped")
	}

	if !ep.config.EnableAsync {
		ep.mu.RUnlock()
		ep.deliver(event)
		return nil
	}

	defer ep.mu.RUnlock()
	select {
	case ep.buffer <- queued{event: event}:
		return nil
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, scenario string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		Source:  "scenario",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s of %s started", runID, scenario),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"scenario": scenario,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		Source:  "scenario",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s completed with status: %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		Source:  "scenario",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber. filter may be nil.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.subMu.Lock()
	defer ep.subMu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.subMu.Lock()
	defer ep.subMu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents delivers buffered events in batches until shutdown, then
// drains what is left.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliver(event)
		}
		batch = batch[:0]
	}
	take := func(q queued) {
		if q.ack != nil {
			flush()
			close(q.ack)
			return
		}
		batch = append(batch, q.event)
		if len(batch) >= ep.config.MaxBatchSize || len(ep.buffer) == 0 {
			flush()
		}
	}

	for {
		select {
		case q := <-ep.buffer:
			take(q)

		case <-ep.ctx.Done():
			for {
				select {
				case q := <-ep.buffer:
					take(q)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliver hands an event to every matching subscriber in registration order.
func (ep *EventPublisher) deliver(event Event) {
	ep.subMu.RLock()
	subscribers := ep.subscribers
	ep.subMu.RUnlock()

	for _, entry := range subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Flush blocks until every event published before the call has been
// delivered.
func (ep *EventPublisher) Flush(ctx context.Context) error {
	if !ep.config.Enabled || !ep.config.EnableAsync {
		return nil
	}
	ack := make(chan struct{})
	ep.mu.RLock()
	if ep.closed {
		ep.mu.RUnlock()
		return nil
	}
	select {
	case ep.buffer <- queued{ack: ack}:
		ep.mu.RUnlock()
	case <-ctx.Done():
		ep.mu.RUnlock()
		return fmt.Errorf("event flush: %w", ctx.Err())
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event flush: %w", ctx.Err())
	}
}

// Shutdown stops accepting events, delivers those already buffered and
// waits for delivery to finish.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil
	}
	ep.closed = true
	ep.mu.Unlock()
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}
