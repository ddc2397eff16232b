package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Metrics adapter backed by prometheus/client_golang counter
// and histogram vectors, labeled dynamically by whatever label set the
// caller passes. One vector is cached per metric name; its variable labels
// are the sorted label keys of the first call for that name, and later
// calls' label values are matched to them by position.
type Prometheus struct {
	registry *prometheus.Registry
	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	hists    map[string]*prometheus.HistogramVec
}

func NewPrometheus(registry *prometheus.Registry) *Prometheus {
	return &Prometheus{
		registry: registry,
		counters: make(map[string]*prometheus.CounterVec),
		hists:    make(map[string]*prometheus.HistogramVec),
	}
}

func (p *Prometheus) IncCounter(name string, labels map[string]string) {
	if p == nil {
		return
	}
	keys, vals := labelKeysValues(labels)
	vec := p.counterVec(name, keys)
	vec.WithLabelValues(vals...).Inc()
}

func (p *Prometheus) ObserveHistogram(name string, value float64, labels map[string]string) {
	if p == nil {
		return
	}
	keys, vals := labelKeysValues(labels)
	vec := p.histVec(name, keys)
	vec.WithLabelValues(vals...).Observe(value)
}

func (p *Prometheus) counterVec(name string, keys []string) *prometheus.CounterVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, keys)
	p.registry.MustRegister(vec)
	p.counters[name] = vec
	return vec
}

func (p *Prometheus) histVec(name string, keys []string) *prometheus.HistogramVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.hists[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, keys)
	p.registry.MustRegister(vec)
	p.hists[name] = vec
	return vec
}

func labelKeysValues(labels map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	// stable order so the vector's label schema doesn't depend on map
	// iteration order across calls with the same key set.
	sortStrings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = labels[k]
	}
	return keys, vals
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
