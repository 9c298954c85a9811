package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry combines logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context,
// or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown delivers pending events, flushes spans and closes the log file.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
		t.Metrics.Shutdown(ctx),
		t.Logger.Close(),
	)
}

// Flush forces pending events and spans out.
func (t *Telemetry) Flush(ctx context.Context) error {
	return errors.Join(t.Events.Flush(ctx), t.Tracer.ForceFlush(ctx))
}

// NewSink returns a trace sink for one scenario run.
func (t *Telemetry) NewSink(runID string) *Sink {
	return NewSink(t.Logger, t.Tracer, t.Metrics, t.Events, runID)
}

// runState is what EndRunContext needs from WithRunContext.
type runState struct {
	span  trace.Span
	timer *Timer
}

type runStateKey struct{}

// WithRunContext opens the root span of a scenario run, scopes the context
// logger to it and records the start.
func WithRunContext(ctx context.Context, runID, scenario string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartRunSpan(ctx, runID, scenario)
	logger := tel.Logger.WithRunID(runID).WithScenario(scenario)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordRunStarted()
	if err := tel.Events.PublishRunStarted(runID, scenario); err != nil {
		logger.WithError(err).Warn("Run start event dropped")
	}

	return context.WithValue(spanCtx, runStateKey{}, &runState{span: span, timer: NewTimer()})
}

// EndRunContext completes a run opened by WithRunContext.
func EndRunContext(ctx context.Context, runID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}
	state, ok := ctx.Value(runStateKey{}).(*runState)
	if !ok {
		return
	}

	if err != nil {
		RecordError(state.span, err)
	} else {
		RecordSuccess(state.span)
	}
	state.span.End()

	duration := state.timer.Duration()
	tel.Metrics.RecordRunCompleted(status, duration)

	var perr error
	if err != nil {
		perr = tel.Events.PublishRunFailed(runID, err.Error())
	} else {
		perr = tel.Events.PublishRunCompleted(runID, status, duration)
	}
	if perr != nil {
		FromContext(ctx).WithError(perr).Warn("Run end event dropped")
	}
}
