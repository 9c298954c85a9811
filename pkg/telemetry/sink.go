package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/pagecore/pkg/engine"
)

// Sink is the engine's TraceSink. Every line goes to the logger and, as an
// Event, to the publisher; every step is a span and a metric sample.
type Sink struct {
	logger  *Logger
	tracer  *Tracer
	metrics *Metrics
	events  *EventPublisher
	runID   string
}

var _ engine.TraceSink = (*Sink)(nil)

// stepState tracks an open step through its context.
type stepState struct {
	step  engine.Step
	timer *Timer
	span  trace.Span
	soft  bool
}

type stepStateKey struct{}

// NewSink builds a sink for one run. Nil components fall back to disabled
// ones, and a nil logger to the default stderr logger.
func NewSink(logger *Logger, tracer *Tracer, metrics *Metrics, events *EventPublisher, runID string) *Sink {
	if logger == nil {
		logger = FromContext(context.Background())
	}
	if tracer == nil {
		tracer, _ = NewTracer(TracingConfig{}, "pagecore", "", "")
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	if events == nil {
		events = &EventPublisher{}
	}
	if runID != "" {
		logger = logger.WithRunID(runID)
	}
	return &Sink{
		logger:  logger.NewComponentLogger("engine"),
		tracer:  tracer,
		metrics: metrics,
		events:  events,
		runID:   runID,
	}
}

// Info logs an informational line.
func (s *Sink) Info(ctx context.Context, msg string, fields engine.Fields) {
	s.line(ctx, EventLevelInfo, msg, fields)
}

// Error logs a failure line. Lines carrying an error class are counted, and
// recorded soft failures mark the enclosing step.
func (s *Sink) Error(ctx context.Context, msg string, fields engine.Fields) {
	if class, ok := fields["class"].(string); ok {
		code, _ := fields["code"].(string)
		s.metrics.RecordError(class, code)
		if class == string(engine.ErrorClassAssertionRecorded) {
			if st := stepFrom(ctx); st != nil {
				st.soft = true
			}
			s.metrics.RecordSoftFailure()
			s.publish(ctx, EventTypeSoftFailure, EventLevelError, msg, fields)
		}
	}
	s.line(ctx, EventLevelError, msg, fields)
}

func (s *Sink) line(ctx context.Context, level, msg string, fields engine.Fields) {
	l := s.logger
	if st := stepFrom(ctx); st != nil {
		l = l.WithStep(st.step.Category, st.step.Operation)
	}
	if id := TraceID(ctx); id != "" {
		l = l.WithFields(map[string]interface{}{"trace_id": id, "span_id": SpanID(ctx)})
	}
	if len(fields) > 0 {
		l = l.WithFields(map[string]interface{}(fields))
	}
	if level == EventLevelError {
		l.Error(msg)
	} else {
		l.Info(msg)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		AddEvent(span, msg, attribute.String("level", level))
	}
	if level == EventLevelInfo || fields["class"] != string(engine.ErrorClassAssertionRecorded) {
		s.publish(ctx, EventTypeTrace, level, msg, fields)
	}
}

// Step opens a span named "<category>.<operation>". Closing it records the
// step metric, the assertion outcome for assert steps and a step event.
func (s *Sink) Step(ctx context.Context, step engine.Step) (context.Context, func(error)) {
	ctx, span := s.tracer.StartStepSpan(ctx, step.Category, step.Operation, step.Title)
	if target, ok := step.Fields["target"].(string); ok {
		span.SetAttributes(AttrTarget.String(target))
	}
	st := &stepState{step: step, timer: NewTimer(), span: span}
	ctx = context.WithValue(ctx, stepStateKey{}, st)

	s.logger.WithStep(step.Category, step.Operation).Debug(step.Title)
	s.publish(ctx, EventTypeStepStarted, EventLevelInfo, step.Title, step.Fields)

	return ctx, func(err error) {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case st.soft:
			status = "soft_failed"
		}
		duration := st.timer.Duration()
		s.metrics.RecordStep(step.Category, step.Operation, status, duration)

		if step.Category == "assert" {
			mode, _ := step.Fields["mode"].(string)
			outcome := "passed"
			switch {
			case err != nil:
				outcome = "failed"
			case st.soft:
				outcome = "soft_failed"
			}
			s.metrics.RecordAssertion(step.Operation, mode, outcome)
		}

		data := engine.Fields{"status": status, "duration": duration.Seconds()}
		if err != nil {
			RecordError(span, err)
			if class := engine.ClassOf(err); class != "" {
				span.SetAttributes(AttrErrorClass.String(string(class)))
				data["class"] = string(class)
			}
			data["error"] = err.Error()
			s.publish(ctx, EventTypeStepFailed, EventLevelError, step.Title, data)
		} else {
			RecordSuccess(span)
			s.publish(ctx, EventTypeStepCompleted, EventLevelInfo, step.Title, data)
		}
		span.End()
	}
}

func (s *Sink) publish(ctx context.Context, typ, level, msg string, fields engine.Fields) {
	ev := Event{
		Type:    typ,
		Source:  "engine",
		RunID:   s.runID,
		Message: msg,
		Level:   level,
	}
	if st := stepFrom(ctx); st != nil {
		ev.Category, ev.Operation = st.step.Category, st.step.Operation
	}
	if len(fields) > 0 {
		ev.Data = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			ev.Data[k] = v
		}
	}
	if err := s.events.Publish(ev); err != nil {
		s.logger.WithError(err).Warn(fmt.Sprintf("Trace event %q dropped", typ))
	}
}

func stepFrom(ctx context.Context) *stepState {
	st, _ := ctx.Value(stepStateKey{}).(*stepState)
	return st
}
