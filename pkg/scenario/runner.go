package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/pagecore/pkg/browser"
	"github.com/openfroyo/pagecore/pkg/config"
	"github.com/openfroyo/pagecore/pkg/engine"
	"github.com/openfroyo/pagecore/pkg/telemetry"
)

// Runner executes scenarios. Each run gets its own core, trace sink and
// soft failure collector, so a Runner may run scenarios concurrently on
// different pages.
type Runner struct {
	cfg *config.Config
	tel *telemetry.Telemetry
}

// NewRunner returns a runner. A nil cfg uses config.Default(); a nil tel
// runs without a trace.
func NewRunner(cfg *config.Config, tel *telemetry.Telemetry) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Runner{cfg: cfg, tel: tel}
}

// Run executes sc against page. Steps run in order; the first hard failure
// stops the run and is returned. Soft failures never stop a run and are
// listed in the report.
func (r *Runner) Run(ctx context.Context, page browser.Page, sc *Scenario) (*Report, error) {
	runID := uuid.NewString()
	report := &Report{
		RunID:     runID,
		Scenario:  sc.Name,
		Total:     len(sc.Steps),
		StartedAt: time.Now(),
	}

	var sink engine.TraceSink = engine.NopSink{}
	logger := telemetry.FromContext(ctx)
	if r.tel != nil {
		ctx = r.tel.WithContext(ctx)
		sink = r.tel.NewSink(runID)
		logger = r.tel.Logger
	}
	ctx = telemetry.WithRunContext(ctx, runID, sc.Name)
	logger = logger.WithRunID(runID).WithScenario(sc.Name)

	soft := NewSoftCollector()
	opts := append(r.cfg.EngineOptions(), engine.WithSoftRecorder(soft))
	x := &execution{
		core: engine.New(sink, opts...),
		page: page,
		cfg:  r.cfg,
		vars: make(map[string]interface{}),
	}

	logger.WithField("steps", len(sc.Steps)).Info("Scenario started")

	var hard error
	if sc.URL != "" {
		if _, err := x.core.Perform(ctx, x.page, engine.ActionRequest{
			Verb:  engine.VerbNavigate,
			Value: x.absolute(sc.URL),
			Options: engine.ActionOptions{Navigate: engine.NavigateOptions{
				NavigateOptions: browser.NavigateOptions{Timeout: r.cfg.Timeouts.Navigation},
			}},
		}); err != nil {
			hard = err
			report.Failure = &StepFailure{Index: -1, Title: "open " + sc.URL, Err: err}
		}
	}

	for i := range sc.Steps {
		if hard != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			hard = err
			break
		}
		st := &sc.Steps[i]
		if err := x.run(ctx, st); err != nil {
			hard = err
			report.Failure = &StepFailure{Index: i, Title: st.Describe(), Err: err}
			break
		}
		report.Executed++
	}

	report.SoftFailures = soft.Failures()
	report.Status = status(report.Failure, len(report.SoftFailures), hard != nil && ctx.Err() != nil)
	report.Duration = time.Since(report.StartedAt)

	telemetry.EndRunContext(ctx, runID, string(report.Status), hard)

	fields := map[string]interface{}{
		"status":        string(report.Status),
		"executed":      report.Executed,
		"soft_failures": len(report.SoftFailures),
		"duration_ms":   report.Duration.Milliseconds(),
	}
	if hard != nil {
		logger.WithFields(fields).WithError(hard).Error("Scenario failed")
		return report, fmt.Errorf("scenario %q: %w", sc.Name, hard)
	}
	logger.WithFields(fields).Info("Scenario finished")
	return report, nil
}
