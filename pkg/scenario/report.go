package scenario

import (
	"fmt"
	"io"
	"time"

	"github.com/openfroyo/pagecore/pkg/engine"
	"github.com/openfroyo/pagecore/pkg/stores"
)

// StepFailure is the hard failure that stopped a run.
type StepFailure struct {
	Index int
	Title string
	Err   error
}

// Report is the outcome of one scenario run.
type Report struct {
	RunID    string
	Scenario string
	Status   stores.RunStatus

	// Executed counts the steps that completed; Total is the scenario length.
	Executed int
	Total    int

	Failure      *StepFailure
	SoftFailures []*engine.EngineError

	StartedAt time.Time
	Duration  time.Duration
}

// Passed reports whether the run had neither hard nor soft failures.
func (r *Report) Passed() bool {
	return r.Status == stores.RunStatusPassed
}

func status(failure *StepFailure, soft int, cancelled bool) stores.RunStatus {
	switch {
	case cancelled:
		return stores.RunStatusCancelled
	case failure != nil:
		return stores.RunStatusFailed
	case soft > 0:
		return stores.RunStatusSoftFailed
	}
	return stores.RunStatusPassed
}

// WriteText writes a human readable summary.
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s  %s  (%d/%d steps, %s)\n",
		r.Status, r.Scenario, r.Executed, r.Total, r.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	if r.Failure != nil {
		if _, err := fmt.Fprintf(w, "  step %d %q failed: %v\n", r.Failure.Index+1, r.Failure.Title, r.Failure.Err); err != nil {
			return err
		}
	}
	for i, f := range r.SoftFailures {
		if _, err := fmt.Fprintf(w, "  soft %d: %s\n", i+1, f.Message); err != nil {
			return err
		}
	}
	return nil
}
