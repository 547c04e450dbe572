package api

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// LogEntry is one observed backend request.
type LogEntry struct {
	Method string
	Path   string
	Status int
	At     time.Time
}

// Monitor counts backend requests per endpoint and keeps a bounded log of the
// most recent ones. Paths are recorded as route templates, never with user ids.
type Monitor struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec

	mu      sync.Mutex
	total   uint64
	entries []LogEntry
	limit   int
}

// NewMonitor builds a request monitor with its own registry.
func NewMonitor(logSize int) *Monitor {
	if logSize <= 0 {
		logSize = 50
	}
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kirana_api_requests_total",
		Help: "Backend requests issued, by method and route.",
	}, []string{"method", "route"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kirana_api_request_failures_total",
		Help: "Backend requests that failed or returned an error status.",
	}, []string{"method", "route"})
	registry.MustRegister(requests, failures)
	return &Monitor{
		registry: registry,
		requests: requests,
		failures: failures,
		limit:    logSize,
	}
}

// Observe records one request. A status of zero means the request never got a
// response (transport failure or timeout).
func (m *Monitor) Observe(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route).Inc()
	if status == 0 || status >= 400 {
		m.failures.WithLabelValues(method, route).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.entries = append(m.entries, LogEntry{Method: method, Path: route, Status: status, At: time.Now()})
	if len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
}

// Total reports the number of requests observed since the last reset.
func (m *Monitor) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Log returns a copy of the recent request log.
func (m *Monitor) Log() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Reset clears the request log and counters.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.total = 0
	m.entries = nil
	m.mu.Unlock()
	m.requests.Reset()
	m.failures.Reset()
}

// Summary renders the gathered per-route counters as a readable report.
func (m *Monitor) Summary() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gathering request metrics: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "total requests: %d\n", m.Total())
	for _, family := range families {
		lines := summarizeFamily(family)
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", family.GetName())
		for _, line := range lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String(), nil
}

func summarizeFamily(family *dto.MetricFamily) []string {
	var lines []string
	for _, metric := range family.GetMetric() {
		counter := metric.GetCounter()
		if counter == nil {
			continue
		}
		labels := make([]string, 0, len(metric.GetLabel()))
		for _, pair := range metric.GetLabel() {
			labels = append(labels, fmt.Sprintf("%s=%s", pair.GetName(), pair.GetValue()))
		}
		sort.Strings(labels)
		lines = append(lines, fmt.Sprintf("%s -> %.0f", strings.Join(labels, " "), counter.GetValue()))
	}
	sort.Strings(lines)
	return lines
}
