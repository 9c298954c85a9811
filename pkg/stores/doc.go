// Package stores provides the run journal: a SQLite store (WAL mode,
// embedded migrations) holding scenario runs, their trace events and the
// soft assertion failures recorded while they ran.
//
// A Journal subscribes to the telemetry event publisher and turns
// run.started, run.completed, run.failed and assertion.soft_failed events
// into run and soft failure rows; every event is appended to the events
// table in delivery order.
package stores
