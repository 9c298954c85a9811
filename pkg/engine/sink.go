package engine

import "context"

// Fields are structured key/value pairs attached to a trace line.
type Fields map[string]interface{}

// Step names a trace scope. Category is one of resolve, action, assert or
// wait; Operation is the strategy, verb, predicate or wait kind.
type Step struct {
	Category  string
	Operation string
	Title     string
	Fields    Fields
}

// TraceSink receives the engine's trace. Implementations must be safe for use
// by one scenario at a time; separate scenarios get separate sinks.
type TraceSink interface {
	Info(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, fields Fields)

	// Step opens a named trace scope. The returned func closes it with the
	// operation's outcome.
	Step(ctx context.Context, step Step) (context.Context, func(err error))
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Info(context.Context, string, Fields)  {}
func (NopSink) Error(context.Context, string, Fields) {}

func (NopSink) Step(ctx context.Context, _ Step) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// SoftRecorder collects soft assertion failures. The scenario runner reports
// them at scenario end.
type SoftRecorder interface {
	RecordSoftFailure(ctx context.Context, failure *EngineError)
}
