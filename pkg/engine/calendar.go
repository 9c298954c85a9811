package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser"
)

// DefaultDaySelector matches a day cell by its exact day number.
const DefaultDaySelector = `td.day:text-is("%d")`

// DefaultLabelLayout is the month label layout, as in "March 2025".
const DefaultLabelLayout = "January 2006"

// CalendarRequest describes a date pick on a month-paged calendar widget.
type CalendarRequest struct {
	// Opener is clicked first when set, to open the widget.
	Opener browser.Locator

	// Label shows the displayed month; Previous and Next page through months.
	Label    browser.Locator
	Previous browser.Locator
	Next     browser.Locator

	Target time.Time

	// LabelLayout is the time layout of Label's text.
	LabelLayout string

	// DaySelector is a raw selector with one %d verb for the day number.
	// Days is the scope it is resolved in; the page when nil.
	DaySelector string
	Days        browser.Scope

	// MaxSteps caps the number of month clicks. Zero falls back to the core
	// default, where zero means no cap and only ctx bounds the loop.
	MaxSteps int

	Click browser.ClickOptions
}

// SelectCalendarDate pages the calendar until its label shows the target
// month, then clicks the target day. The paging direction comes from
// comparing the target with the displayed month; when the label cannot be
// parsed the target is compared with the current month instead.
func (c *Core) SelectCalendarDate(ctx context.Context, page browser.Page, req CalendarRequest) (err error) {
	layout := req.LabelLayout
	if layout == "" {
		layout = DefaultLabelLayout
	}
	want := req.Target.Format(layout)
	ctx, done := c.step(ctx, "wait", "calendar", fmt.Sprintf("Select %d %s on a calendar", req.Target.Day(), want), Fields{
		"target": req.Target.Format("2006-01-02"),
	})
	defer func() { done(err) }()

	if req.Label == nil || req.Previous == nil || req.Next == nil {
		return c.fail(ctx, NewActionError("calendar needs label, previous and next handles", nil).
			WithCode(ErrCodeInvalidOptions).
			WithOperation("calendar"), nil)
	}
	click := req.Click
	click.Timeout = preferDuration(click.Timeout, c.defaults.ActionTimeout)

	if req.Opener != nil {
		if cerr := req.Opener.Click(click); cerr != nil {
			return c.fail(ctx, NewActionError("failed to open the calendar", cerr).
				WithOperation("calendar").
				WithTarget(req.Opener.Describe()), nil)
		}
	}

	maxSteps := req.MaxSteps
	if maxSteps == 0 {
		maxSteps = c.defaults.CalendarMaxSteps
	}
	targetMonth := monthOf(req.Target)

	for steps := 0; ; steps++ {
		if cerr := ctx.Err(); cerr != nil {
			return c.fail(ctx, NewWaitTimeoutError("calendar navigation cancelled", cerr).
				WithOperation("calendar"), Fields{"steps": steps})
		}
		text, terr := req.Label.TextContent()
		if terr != nil {
			return c.fail(ctx, NewActionError("failed to read the calendar label", terr).
				WithOperation("calendar").
				WithTarget(req.Label.Describe()), nil)
		}
		shown := strings.TrimSpace(text)
		if shown == want {
			break
		}
		if maxSteps > 0 && steps >= maxSteps {
			return c.fail(ctx, NewWaitTimeoutError(fmt.Sprintf("calendar did not reach %s within %d steps", want, maxSteps), nil).
				WithCode(ErrCodeIterationLimit).
				WithOperation("calendar"), Fields{"shown": shown})
		}

		reference := monthOf(c.now())
		if parsed, perr := time.Parse(layout, shown); perr == nil {
			reference = monthOf(parsed)
		} else {
			c.sink.Error(ctx, "Calendar label not parsable, paging relative to today", Fields{
				"label": shown,
				"cause": perr.Error(),
			})
		}
		control, dir := req.Next, "next"
		if targetMonth.Before(reference) {
			control, dir = req.Previous, "previous"
		}
		c.sink.Info(ctx, "Paging calendar", Fields{"shown": shown, "target": want, "direction": dir})
		if cerr := control.Click(click); cerr != nil {
			return c.fail(ctx, NewActionError("failed to page the calendar "+dir, cerr).
				WithOperation("calendar").
				WithTarget(control.Describe()), nil)
		}
	}

	selector := req.DaySelector
	if selector == "" {
		selector = DefaultDaySelector
	}
	var scope browser.Scope = page
	if req.Days != nil {
		scope = req.Days
	}
	if scope == nil {
		return c.fail(ctx, NewActionError("no page to pick the day on", nil).WithOperation("calendar"), nil)
	}
	day := scope.Locator(fmt.Sprintf(selector, req.Target.Day()), browser.SelectorOptions{})
	if cerr := day.Click(click); cerr != nil {
		return c.fail(ctx, NewActionError("failed to click the day cell", cerr).
			WithOperation("calendar").
			WithTarget(day.Describe()), nil)
	}
	c.sink.Info(ctx, "Calendar date selected", Fields{"date": req.Target.Format("2006-01-02")})
	return nil
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
