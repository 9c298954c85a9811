package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// Core is the element-resolution and dispatch layer. It holds no page state;
// every operation takes the page explicitly. A Core is safe to share between
// goroutines as long as each page is driven by one goroutine at a time.
type Core struct {
	sink        TraceSink
	soft        SoftRecorder
	validate    *validator.Validate
	defaults    Defaults
	snapshotDir string
	now         func() time.Time
}

// Option configures a Core.
type Option func(*Core)

// WithSoftRecorder sets the collector that receives soft assertion failures.
// Without one, soft failures are only traced.
func WithSoftRecorder(r SoftRecorder) Option {
	return func(c *Core) {
		c.soft = r
	}
}

// WithDefaults overrides the default timeouts.
func WithDefaults(d Defaults) Option {
	return func(c *Core) {
		c.defaults = d
	}
}

// WithSnapshotDir sets where toMatchSnapshot keeps its baselines.
func WithSnapshotDir(dir string) Option {
	return func(c *Core) {
		c.snapshotDir = dir
	}
}

// New creates a Core that traces to sink. A nil sink discards the trace.
func New(sink TraceSink, opts ...Option) *Core {
	if sink == nil {
		sink = NopSink{}
	}
	c := &Core{
		sink:        sink,
		validate:    validator.New(),
		defaults:    DefaultDefaults(),
		snapshotDir: "__snapshots__",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sink returns the trace sink the core writes to.
func (c *Core) Sink() TraceSink {
	return c.sink
}

// Defaults returns the timeouts in effect.
func (c *Core) Defaults() Defaults {
	return c.defaults
}

// describe renders a locator for the trace, tolerating nil.
func describe(l browser.Locator) string {
	if l == nil {
		return "<page>"
	}
	return l.Describe()
}

// step opens a trace scope and returns the scoped context with its close func.
func (c *Core) step(ctx context.Context, category, operation, title string, fields Fields) (context.Context, func(error)) {
	return c.sink.Step(ctx, Step{
		Category:  category,
		Operation: operation,
		Title:     title,
		Fields:    fields,
	})
}

// fail logs err with its full context and returns it unchanged.
func (c *Core) fail(ctx context.Context, err *EngineError, fields Fields) *EngineError {
	out := Fields{
		"class":     string(err.Class),
		"operation": err.Operation,
		"target":    err.Target,
	}
	if err.Code != "" {
		out["code"] = err.Code
	}
	if err.Err != nil {
		out["cause"] = err.Err.Error()
	}
	for k, v := range err.Details {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	c.sink.Error(ctx, err.Message, out)
	return err
}

// validateStruct runs the validator over an option record and reports the
// first violation in a readable form.
func (c *Core) validateStruct(v interface{}) error {
	if err := c.validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid option %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}
