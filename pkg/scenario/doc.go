// Package scenario loads YAML scenarios and runs them through the engine.
//
// A scenario is a name, an optional start URL and an ordered list of steps.
// Each step is exactly one of an action, an assertion, a wait or a calendar
// pick:
//
//	name: login
//	url: /login
//	steps:
//	  - action: fill
//	    target: {strategy: label, value: Email}
//	    value: ada@example.com
//	  - action: click
//	    target: {strategy: role, value: button, options: {name: Continue}}
//	  - assert: toHaveText
//	    target: {strategy: testId, value: greeting}
//	    expected: Hello ada@example.com
//	    mode: soft
//
// Documents are checked against the built-in CUE scenario schema before
// they are decoded. Options are written flat and routed to the typed option
// record of the verb, predicate or lookup they belong to.
//
// Runner executes steps in order and stops at the first hard failure. Soft
// assertion failures are collected and returned in the Report.
package scenario
