package scenario

import (
	"context"
	"sync"

	"github.com/openfroyo/pagecore/pkg/engine"
)

// SoftCollector gathers the soft assertion failures of one run.
type SoftCollector struct {
	mu       sync.Mutex
	failures []*engine.EngineError
}

// NewSoftCollector returns an empty collector.
func NewSoftCollector() *SoftCollector {
	return &SoftCollector{}
}

// RecordSoftFailure implements engine.SoftRecorder.
func (c *SoftCollector) RecordSoftFailure(_ context.Context, failure *engine.EngineError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, failure)
}

// Failures returns the recorded failures in order.
func (c *SoftCollector) Failures() []*engine.EngineError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*engine.EngineError, len(c.failures))
	copy(out, c.failures)
	return out
}

func (c *SoftCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}
