// Package telemetry provides the observability stack behind the engine's
// trace sink.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and event publishing.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - a transient console writer plus an optional
//     append-only JSON file, joined with zerolog.MultiLevelWriter
//  2. Distributed Tracing - one span per engine step, named
//     "<category>.<operation>", under a "scenario.run" root span
//  3. Metrics Collection - step, assertion, soft failure and error counters
//  4. Event Publishing - ordered delivery of trace events to subscribers
//     such as the journal store
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = telemetry.WithRunContext(tel.WithContext(ctx), runID, "checkout")
//	core := engine.New(tel.NewSink(runID))
//	...
//	telemetry.EndRunContext(ctx, runID, "passed", nil)
//
// # Sink
//
// Sink implements engine.TraceSink. Info and Error lines are logged with
// the step category and operation, the trace and span IDs and the engine's
// fields. Error lines carrying an error class increment
// errors_by_class_total; a recorded soft failure also marks its step as
// soft_failed, which is how assertions_total tells soft failures apart from
// passes.
//
// # Metrics
//
//	pagecore_steps_total{category,operation,status}
//	pagecore_step_duration_seconds{category,operation}
//	pagecore_assertions_total{predicate,mode,outcome}
//	pagecore_soft_failures_total
//	pagecore_errors_by_class_total{class}
//	pagecore_errors_by_code_total{code}
//	pagecore_runs_started_total, pagecore_runs_completed_total{status}
//	pagecore_active_runs
//
// Metrics are served over HTTP when MetricsConfig.ListenAddress is set.
package telemetry
