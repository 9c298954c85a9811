package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/openfroyo/pagecore/pkg/browser/fakebrowser"
)

// datePicker builds a month-paged widget showing shown. Paging rewrites the
// label text the way a real widget re-renders it.
type datePicker struct {
	page   *fakebrowser.Page
	label  *fakebrowser.Node
	days   map[int]*fakebrowser.Node
	shown  time.Time
	clicks map[string]int
}

func newDatePicker(shown time.Time) *datePicker {
	d := &datePicker{
		label:  &fakebrowser.Node{Tag: "span", ID: "month", Text: shown.Format(DefaultLabelLayout)},
		days:   make(map[int]*fakebrowser.Node),
		shown:  shown,
		clicks: make(map[string]int),
	}
	page := func(delta int, name string) func(*fakebrowser.Page) error {
		return func(*fakebrowser.Page) error {
			d.clicks[name]++
			d.shown = d.shown.AddDate(0, delta, 0)
			d.label.Text = d.shown.Format(DefaultLabelLayout)
			return nil
		}
	}
	prev := &fakebrowser.Node{Tag: "button", ID: "prev", Text: "<", OnClick: page(-1, "prev")}
	next := &fakebrowser.Node{Tag: "button", ID: "next", Text: ">", OnClick: page(1, "next")}
	row := fakebrowser.El("tr")
	for day := 1; day <= 28; day++ {
		cell := &fakebrowser.Node{Tag: "td", Classes: []string{"day"}, Text: strconv.Itoa(day)}
		d.days[day] = cell
		row.Append(cell)
	}
	d.page = fakebrowser.NewPage("https://app.test/booking", fakebrowser.El("body", prev, d.label, next, fakebrowser.El("table", row)))
	return d
}

func (d *datePicker) request(t *testing.T, core *Core, target time.Time) CalendarRequest {
	return CalendarRequest{
		Label:    locate(t, core, d.page, RawSelector, "#month"),
		Previous: locate(t, core, d.page, RawSelector, "#prev"),
		Next:     locate(t, core, d.page, RawSelector, "#next"),
		Target:   target,
	}
}

func TestSelectCalendarDatePagesInBothDirections(t *testing.T) {
	tests := []struct {
		name   string
		shown  time.Time
		target time.Time
		prev   int
		next   int
	}{
		{"backward", date(2025, time.March, 1), date(2024, time.December, 17), 3, 0},
		{"forward", date(2025, time.March, 1), date(2025, time.June, 2), 0, 3},
		{"same month", date(2025, time.March, 1), date(2025, time.March, 9), 0, 0},
	}
	for _, tt := range tests {
		d := newDatePicker(tt.shown)
		core, _ := newTestCore()

		if err := core.SelectCalendarDate(context.Background(), d.page, d.request(t, core, tt.target)); err != nil {
			t.Fatalf("%s: SelectCalendarDate() error = %v", tt.name, err)
		}
		if d.clicks["prev"] != tt.prev || d.clicks["next"] != tt.next {
			t.Errorf("%s: prev/next clicks = %d/%d, want %d/%d", tt.name, d.clicks["prev"], d.clicks["next"], tt.prev, tt.next)
		}
		if !d.days[tt.target.Day()].Did("click") {
			t.Errorf("%s: day %d was not clicked", tt.name, tt.target.Day())
		}
	}
}

func TestSelectCalendarDateUnparsableLabelPagesFromToday(t *testing.T) {
	d := newDatePicker(date(2025, time.March, 1))
	core, sink := newTestCore()
	core.now = func() time.Time { return date(2025, time.May, 20) }

	// The widget shows an abbreviated label the layout cannot parse, so the
	// direction comes from today's month.
	d.label.Text = "Mar '25"
	req := d.request(t, core, date(2025, time.April, 3))
	req.MaxSteps = 1

	err := core.SelectCalendarDate(context.Background(), d.page, req)
	if d.clicks["prev"] != 1 {
		t.Errorf("prev clicks = %d, want 1 relative to May", d.clicks["prev"])
	}
	if sink.find("error", "not parsable") < 0 {
		t.Error("unparsable label was not logged")
	}
	// After one step the label is well formed again and shows February.
	if !errors.Is(err, &EngineError{Class: ErrorClassWaitTimeout, Code: ErrCodeIterationLimit}) {
		t.Errorf("got %v, want iteration limit", err)
	}
}

func TestSelectCalendarDateIterationLimit(t *testing.T) {
	d := newDatePicker(date(2025, time.March, 1))
	core, _ := newTestCore()
	req := d.request(t, core, date(2027, time.March, 1))
	req.MaxSteps = 5

	err := core.SelectCalendarDate(context.Background(), d.page, req)
	if !errors.Is(err, &EngineError{Class: ErrorClassWaitTimeout, Code: ErrCodeIterationLimit}) {
		t.Fatalf("got %v, want iteration limit", err)
	}
	if d.clicks["next"] != 5 {
		t.Errorf("next clicks = %d, want 5", d.clicks["next"])
	}
}

func TestSelectCalendarDateDefaultStepCap(t *testing.T) {
	d := newDatePicker(date(2025, time.March, 1))
	defaults := DefaultDefaults()
	defaults.CalendarMaxSteps = 2
	core, _ := newTestCore(WithDefaults(defaults))

	err := core.SelectCalendarDate(context.Background(), d.page, d.request(t, core, date(2030, time.January, 1)))
	if !IsWaitTimeout(err) || d.clicks["next"] != 2 {
		t.Errorf("got %v after %d clicks, want iteration limit after 2", err, d.clicks["next"])
	}
}

func TestSelectCalendarDateHonoursCancellation(t *testing.T) {
	d := newDatePicker(date(2025, time.March, 1))
	core, _ := newTestCore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := d.request(t, core, date(2099, time.March, 1))

	// No step cap: only cancellation stops the paging.
	next := d.page.Root.Children[2]
	inner := next.OnClick
	next.OnClick = func(p *fakebrowser.Page) error {
		if d.clicks["next"] == 3 {
			cancel()
		}
		return inner(p)
	}

	err := core.SelectCalendarDate(ctx, d.page, req)
	if !IsWaitTimeout(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want cancelled wait", err)
	}
	if d.clicks["next"] != 4 {
		t.Errorf("next clicks = %d, want 4", d.clicks["next"])
	}
}

func TestSelectCalendarDateNeedsControls(t *testing.T) {
	d := newDatePicker(date(2025, time.March, 1))
	core, _ := newTestCore()
	req := d.request(t, core, date(2025, time.March, 2))
	req.Next = nil

	if err := core.SelectCalendarDate(context.Background(), d.page, req); !IsActionError(err) {
		t.Errorf("got %v, want action error", err)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
