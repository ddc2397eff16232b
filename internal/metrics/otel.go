// Package metrics is the seam the pipeline reports through
// (IncCounter/ObserveHistogram), with both an OpenTelemetry and a
// Prometheus backing implementation, plus an in-memory sink for tests.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the seam every pipeline stage reports timings and counts
// through. Nil-receiver-safe: a nil *OtelMetrics or *Prometheus degrades to
// a no-op rather than panicking callers that didn't wire metrics.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// instrumentKind distinguishes the two entries a name can resolve to in the
// shared instrument cache below.
type instrumentKind uint8

const (
	kindCounter instrumentKind = iota
	kindHistogram
)

type instrumentKey struct {
	kind instrumentKind
	name string
}

// OtelMetrics is a thin adapter over OpenTelemetry metrics that satisfies
// the Metrics interface the query pipeline and ingest engine report through.
// Counters and histograms share one cache keyed by (kind, name) rather than
// two parallel maps, since the OTel SDK guarantees an instrument name is
// only ever requested as one kind in this codebase.
type OtelMetrics struct {
	meter       metric.Meter
	instruments sync.Map // instrumentKey -> metric.Int64Counter | metric.Float64Histogram
}

// NewOtelMetrics constructs an OtelMetrics using the global Meter provider.
func NewOtelMetrics() *OtelMetrics {
	return &OtelMetrics{meter: otel.Meter("ragserver")}
}

func (o *OtelMetrics) IncCounter(name string, labels map[string]string) {
	if o == nil {
		return
	}
	c, ok := o.counter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

func (o *OtelMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	if o == nil {
		return
	}
	h, ok := o.histogram(name)
	if !ok {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

func (o *OtelMetrics) counter(name string) (metric.Int64Counter, bool) {
	key := instrumentKey{kind: kindCounter, name: name}
	if v, ok := o.instruments.Load(key); ok {
		return v.(metric.Int64Counter), true
	}
	ctr, err := o.meter.Int64Counter(name)
	if err != nil {
		return ctr, false
	}
	actual, _ := o.instruments.LoadOrStore(key, ctr)
	return actual.(metric.Int64Counter), true
}

func (o *OtelMetrics) histogram(name string) (metric.Float64Histogram, bool) {
	key := instrumentKey{kind: kindHistogram, name: name}
	if v, ok := o.instruments.Load(key); ok {
		return v.(metric.Float64Histogram), true
	}
	hist, err := o.meter.Float64Histogram(name)
	if err != nil {
		return hist, false
	}
	actual, _ := o.instruments.LoadOrStore(key, hist)
	return actual.(metric.Float64Histogram), true
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, val := range labels {
		out = append(out, attribute.String(k, val))
	}
	return out
}

// Observation is one recorded call into MockMetrics, kept in the order it
// arrived so tests can assert on call sequence, not just final totals.
type Observation struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// MockMetrics is an in-memory metrics sink for tests. It keeps one ordered
// log of observations per instrument name (counters and histograms in
// separate maps) rather than bare totals, so a test can inspect exactly
// what was reported and in what order.
type MockMetrics struct {
	mu         sync.Mutex
	Counters   map[string][]Observation
	Histograms map[string][]Observation
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Counters:   map[string][]Observation{},
		Histograms: map[string][]Observation{},
	}
}

func (m *MockMetrics) IncCounter(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name] = append(m.Counters[name], Observation{Name: name, Value: 1, Labels: clone(labels)})
}

func (m *MockMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], Observation{Name: name, Value: value, Labels: clone(labels)})
}

// CounterTotal sums the recorded increments for name, for tests that only
// care about the final count.
func (m *MockMetrics) CounterTotal(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Counters[name])
}

func clone(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
