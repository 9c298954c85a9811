package engine_test

import (
	"context"
	"fmt"

	"github.com/openfroyo/pagecore/pkg/browser"
	"github.com/openfroyo/pagecore/pkg/browser/fakebrowser"
	"github.com/openfroyo/pagecore/pkg/engine"
)

type softFailures []*engine.EngineError

func (s *softFailures) RecordSoftFailure(_ context.Context, f *engine.EngineError) {
	*s = append(*s, f)
}

// Example_workflow shows a lookup, an interaction and the three assertion
// modes against one page.
func Example_workflow() {
	ctx := context.Background()

	// 1. A login form with two submit buttons
	first := &fakebrowser.Node{Tag: "button", Text: "Sign in"}
	page := fakebrowser.NewPage("https://app.test/login", fakebrowser.El("form",
		&fakebrowser.Node{Tag: "input", Label: "Username"},
		first,
		&fakebrowser.Node{Tag: "button", Text: "Sign in"},
	))

	var soft softFailures
	core := engine.New(engine.NopSink{}, engine.WithSoftRecorder(&soft))

	// 2. Resolve the first submit button
	signIn, err := core.Resolve(ctx, page, engine.ResolutionRequest{
		Strategy:   engine.Role,
		Value:      "button",
		Options:    engine.LocateOptions{Role: browser.RoleOptions{Name: "Sign in"}},
		Combinator: engine.First,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(signIn.Describe())

	// 3. Fill the username and click
	user, _ := core.Resolve(ctx, page, engine.ResolutionRequest{Strategy: engine.Label, Value: "Username"})
	_, _ = core.Perform(ctx, page, engine.ActionRequest{Verb: engine.VerbFill, Target: user, Value: "ada"})
	_, _ = core.Perform(ctx, page, engine.ActionRequest{Verb: engine.VerbClick, Target: signIn})
	fmt.Println("clicked:", first.Did("click"))

	// 4. Assert in each mode
	_, err = core.Assert(ctx, page, engine.AssertionRequest{Predicate: engine.ToHaveValue, Target: user, Expected: "ada"})
	fmt.Println("hard:", err == nil)

	_, err = core.Assert(ctx, page, engine.AssertionRequest{Predicate: engine.ToBeDisabled, Mode: engine.ModeHardNegated, Target: user})
	fmt.Println("negated:", err == nil)

	v, err := core.Assert(ctx, page, engine.AssertionRequest{Predicate: engine.ToHaveTitle, Mode: engine.ModeSoft, Expected: "Dashboard"})
	fmt.Println("soft:", v.Passed, err == nil, len(soft))

	// Output:
	// getByRole("button", name="Sign in").first()
	// clicked: true
	// hard: true
	// negated: true
	// soft: false true 1
}
