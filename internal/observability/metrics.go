// File: internal/observability/metrics.go
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xkilldash9x/bugscan/api/schemas"
)

const meterName = "github.com/xkilldash9x/bugscan"

// Metrics records aggregation and dispatch events as OpenTelemetry counters.
// It satisfies core.Metrics. Safe for concurrent use.
type Metrics struct {
	emitted  metric.Int64Counter
	vetoed   metric.Int64Counter
	dropped  metric.Int64Counter
	errors   metric.Int64Counter
	retired  metric.Int64Counter
	analyzed metric.Int64Counter
}

// NewMetrics creates the counters on provider. A nil provider selects the
// global one, which discards everything until an SDK is installed.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.emitted, "bugscan.findings.emitted", "Findings delivered to the sink.", "{finding}"},
		{&m.vetoed, "bugscan.findings.vetoed", "Findings rejected by a checker.", "{finding}"},
		{&m.dropped, "bugscan.candidates.dropped", "Candidates discarded before aggregation.", "{candidate}"},
		{&m.errors, "bugscan.errors", "Error records written to the error sink.", "{record}"},
		{&m.retired, "bugscan.rules.retired", "Rules that retired before the end of a method.", "{rule}"},
		{&m.analyzed, "bugscan.methods.analyzed", "Methods walked by the dispatcher.", "{method}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("creating counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) FindingEmitted(kind schemas.FindingKind) {
	m.emitted.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind.Name),
		attribute.String("category", kind.Category),
	))
}

func (m *Metrics) FindingVetoed(kind schemas.FindingKind) {
	m.vetoed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.Name)))
}

func (m *Metrics) CandidateDropped(reason string) {
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) ErrorRecorded(kind schemas.ErrorKind) {
	m.errors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) RuleRetired(ruleID string) {
	m.retired.Add(context.Background(), 1, metric.WithAttributes(attribute.String("rule", ruleID)))
}

// MethodAnalyzed counts one completed method.
func (m *Metrics) MethodAnalyzed() {
	m.analyzed.Add(context.Background(), 1)
}
