// internal/findings/collector.go
package findings

import (
	"context"
	"slices"
	"sync"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
)

// Collector keeps every finding and error record of a run in memory. It is
// safe for concurrent use. Findings from one method stay in submission order.
type Collector struct {
	mu       sync.Mutex
	findings []schemas.Finding
	errors   []schemas.ErrorRecord
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) AddFinding(f schemas.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, f)
}

func (c *Collector) AddError(rec schemas.ErrorRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, rec)
}

// Findings returns a snapshot of the collected findings.
func (c *Collector) Findings() []schemas.Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.findings)
}

// Errors returns a snapshot of the collected error records.
func (c *Collector) Errors() []schemas.ErrorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.errors)
}

// ChannelSink forwards findings to a channel, typically a Processor's input.
// A send blocks until the channel accepts it or ctx is done, in which case
// the finding is dropped.
type ChannelSink struct {
	ctx context.Context
	out chan<- schemas.Finding
}

func NewChannelSink(ctx context.Context, out chan<- schemas.Finding) *ChannelSink {
	return &ChannelSink{ctx: ctx, out: out}
}

func (s *ChannelSink) AddFinding(f schemas.Finding) {
	select {
	case s.out <- f:
	case <-s.ctx.Done():
	}
}

type tee []core.FindingSink

func (t tee) AddFinding(f schemas.Finding) {
	for _, s := range t {
		s.AddFinding(f)
	}
}

// Tee delivers every finding to each sink in order.
func Tee(sinks ...core.FindingSink) core.FindingSink {
	return tee(sinks)
}
