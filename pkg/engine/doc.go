// Package engine resolves element lookups into lazy handles and dispatches
// interactions, assertions and waits against a browser page.
//
// # Overview
//
// Every entry point takes the page explicitly and reports through an injected
// TraceSink, so two scenarios can run side by side with separate traces:
//
//  1. Resolve - turn a strategy and selector into a Handle
//  2. Apply - narrow or compose a Handle with a combinator
//  3. Perform - run an interaction verb against a Handle or the page
//  4. Assert - evaluate a predicate in Hard, HardNegated or Soft mode
//  5. WaitForCondition - suspend until a page or element condition holds
//
// # Strategies and combinators
//
// Strategies form a closed set (Role, Text, Label, Placeholder, AltText,
// Title, TestID, RawSelector). Combinators are a closed enumeration. When a
// combinator carries its own option and the request also carries a generic
// one, the combinator's option wins for every strategy.
//
// # Errors
//
// Failures are returned as *EngineError with one of the classes resolution,
// action, assertion, assertion_recorded or wait_timeout. Soft assertion
// failures are never returned; they are handed to the SoftRecorder.
//
// # Example
//
//	core := engine.New(sink, engine.WithSoftRecorder(collector))
//	save, err := core.Resolve(ctx, page, engine.ResolutionRequest{
//	    Strategy:   engine.Role,
//	    Value:      "button",
//	    Options:    engine.LocateOptions{Role: browser.RoleOptions{Name: "Save"}},
//	    Combinator: engine.First,
//	})
//	if err != nil {
//	    return err
//	}
//	_, err = core.Perform(ctx, page, engine.ActionRequest{Verb: engine.VerbClick, Target: save})
package engine
