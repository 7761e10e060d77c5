package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
	Gauge   MetricType = "gauge"
)

// Metric is one labelled counter or gauge series.
type Metric struct {
	Name        string            `json:"name"`
	Type        MetricType        `json:"type"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	LastUpdate  time.Time         `json:"last_update"`
}

// TimerMetric summarizes a latency series in milliseconds. Percentiles are
// computed over the most recent window of samples.
type TimerMetric struct {
	Name    string            `json:"name"`
	Labels  map[string]string `json:"labels,omitempty"`
	Count   int64             `json:"count"`
	Sum     float64           `json:"sum_ms"`
	Min     float64           `json:"min_ms"`
	Max     float64           `json:"max_ms"`
	Average float64           `json:"avg_ms"`
	P50     float64           `json:"p50_ms,omitempty"`
	P95     float64           `json:"p95_ms,omitempty"`
	P99     float64           `json:"p99_ms,omitempty"`
}

const (
	timerWindow       = 1024
	minPercentileSize = 10
)

type timerSeries struct {
	summary TimerMetric
	window  [timerWindow]float64
	next    int
	filled  int
}

func (t *timerSeries) observe(ms float64) {
	s := &t.summary
	if s.Count == 0 || ms < s.Min {
		s.Min = ms
	}
	if ms > s.Max {
		s.Max = ms
	}
	s.Count++
	s.Sum += ms

	t.window[t.next] = ms
	t.next = (t.next + 1) % timerWindow
	if t.filled < timerWindow {
		t.filled++
	}
}

func (t *timerSeries) snapshot() TimerMetric {
	out := t.summary
	out.Labels = copyLabels(out.Labels)
	if out.Count > 0 {
		out.Average = out.Sum / float64(out.Count)
	}
	if t.filled >= minPercentileSize {
		sorted := make([]float64, t.filled)
		copy(sorted, t.window[:t.filled])
		sort.Float64s(sorted)
		out.P50 = percentile(sorted, 0.50)
		out.P95 = percentile(sorted, 0.95)
		out.P99 = percentile(sorted, 0.99)
	}
	return out
}

// Registry is an in-process metrics store keyed by name and label set.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	gauges    map[string]*Metric
	timers    map[string]*timerSeries
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		gauges:    make(map[string]*Metric),
		timers:    make(map[string]*timerSeries),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the process-wide registry the package functions write to.
func GetRegistry() *Registry {
	return globalRegistry
}

func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.AddToCounter(name, 1, labels, description)
}

// AddToCounter adds value to the series; negative values are ignored.
func (r *Registry) AddToCounter(name string, value float64, labels map[string]string, description string) {
	if value < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.series(r.counters, Counter, name, labels, description)
	m.Value += value
	m.LastUpdate = time.Now()
}

func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.series(r.gauges, Gauge, name, labels, description)
	m.Value = value
	m.LastUpdate = time.Now()
}

func (r *Registry) RecordTimer(name string, duration time.Duration, labels map[string]string, _ string) {
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := seriesKey(name, labels)
	t, ok := r.timers[key]
	if !ok {
		t = &timerSeries{summary: TimerMetric{Name: name, Labels: copyLabels(labels)}}
		r.timers[key] = t
	}
	t.observe(ms)
}

// series returns the metric for name+labels in m, creating it on first use.
// Callers hold r.mu.
func (r *Registry) series(m map[string]*Metric, typ MetricType, name string, labels map[string]string, description string) *Metric {
	key := seriesKey(name, labels)
	if existing, ok := m[key]; ok {
		return existing
	}
	created := &Metric{Name: name, Type: typ, Labels: copyLabels(labels), Description: description}
	m[key] = created
	return created
}

// CounterValue returns the current value of a counter, or zero.
func (r *Registry) CounterValue(name string, labels map[string]string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.counters[seriesKey(name, labels)]; ok {
		return c.Value
	}
	return 0
}

// TimerCount returns how many samples a timer has recorded.
func (r *Registry) TimerCount(name string, labels map[string]string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.timers[seriesKey(name, labels)]; ok {
		return t.summary.Count
	}
	return 0
}

// Snapshot is a point-in-time copy of the registry, keyed like
// `name{label="value",...}`.
type Snapshot struct {
	Counters  map[string]Metric      `json:"counters"`
	Timers    map[string]TimerMetric `json:"timers"`
	Gauges    map[string]Metric      `json:"gauges"`
	UptimeMs  int64                  `json:"uptime_ms"`
	Timestamp int64                  `json:"timestamp"`
}

func (r *Registry) GetAllMetrics() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Counters:  copySeries(r.counters),
		Gauges:    copySeries(r.gauges),
		Timers:    make(map[string]TimerMetric, len(r.timers)),
		UptimeMs:  time.Since(r.startTime).Milliseconds(),
		Timestamp: time.Now().Unix(),
	}
	for key, t := range r.timers {
		snap.Timers[key] = t.snapshot()
	}
	return snap
}

func copySeries(m map[string]*Metric) map[string]Metric {
	out := make(map[string]Metric, len(m))
	for key, metric := range m {
		c := *metric
		c.Labels = copyLabels(metric.Labels)
		out[key] = c
	}
	return out
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(labels[k])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	dup := make(map[string]string, len(labels))
	for k, v := range labels {
		dup[k] = v
	}
	return dup
}

func IncrementCounter(name string, labels map[string]string, description string) {
	globalRegistry.IncrementCounter(name, labels, description)
}

func AddToCounter(name string, value float64, labels map[string]string, description string) {
	globalRegistry.AddToCounter(name, value, labels, description)
}

func RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	globalRegistry.RecordTimer(name, duration, labels, description)
}

func SetGauge(name string, value float64, labels map[string]string, description string) {
	globalRegistry.SetGauge(name, value, labels, description)
}

func GetAllMetrics() Snapshot {
	return globalRegistry.GetAllMetrics()
}
