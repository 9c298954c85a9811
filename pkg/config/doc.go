// Package config loads pagecore run configurations.
//
// A configuration selects the browser, the engine's default timeouts, the
// snapshot baseline directory, the SQLite journal and the telemetry stack.
// It is read from YAML, or evaluated from CUE when the file ends in .cue:
//
//	browser: {
//	    engine:   "firefox"
//	    headless: true
//	}
//	timeouts: {
//	    action: "10s"
//	    assert: "3s"
//	}
//	journal: {
//	    enabled: true
//	    path:    "runs.db"
//	}
//
// Values left out keep the defaults from Default. Every configuration is
// checked with validator struct tags; CUE input is additionally unified
// with the built-in #Config schema, so unknown keys and out-of-range values
// are reported with file positions.
//
// The SchemaRegistry also carries the #Scenario schema used to check
// scenario documents before they run, and Watcher re-triggers a run when
// the files it watches change.
package config
