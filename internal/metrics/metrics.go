package metrics

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestCount    map[string]*uint64    // endpoint:method -> count
	requestDuration map[string]*Histogram // endpoint:method -> duration histogram
	requestErrors   map[string]*uint64    // endpoint:status_class -> count

	// Realtime metrics
	activeConnections int64
	messagesDelivered uint64
	messagesDropped   uint64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	buckets    []float64
	bucketVals []uint64
}

// NewHistogram creates a new histogram with default buckets
func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

// global metrics instance
var defaultMetrics = New()

// Default returns the default metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := normalizeEndpoint(path) + ":" + method

	m.mu.Lock()
	if m.requestCount[key] == nil {
		var zero uint64
		m.requestCount[key] = &zero
	}
	if m.requestDuration[key] == nil {
		m.requestDuration[key] = NewHistogram()
	}
	m.mu.Unlock()

	atomic.AddUint64(m.requestCount[key], 1)

	m.mu.RLock()
	m.requestDuration[key].Observe(duration.Seconds())
	m.mu.RUnlock()

	if statusCode >= 400 {
		errorKey := key + ":" + statusClass(statusCode)
		m.mu.Lock()
		if m.requestErrors[errorKey] == nil {
			var zero uint64
			m.requestErrors[errorKey] = &zero
		}
		m.mu.Unlock()
		atomic.AddUint64(m.requestErrors[errorKey], 1)
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// normalizeEndpoint normalizes an endpoint path for metrics (removes IDs)
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// ConnectionOpened increments the active realtime connection gauge.
func (m *Metrics) ConnectionOpened() {
	atomic.AddInt64(&m.activeConnections, 1)
}

// ConnectionClosed decrements the active realtime connection gauge.
func (m *Metrics) ConnectionClosed() {
	atomic.AddInt64(&m.activeConnections, -1)
}

// ActiveConnections returns the current realtime connection count.
func (m *Metrics) ActiveConnections() int64 {
	return atomic.LoadInt64(&m.activeConnections)
}

// MessageDelivered counts a realtime event pushed to a live connection.
func (m *Metrics) MessageDelivered() {
	atomic.AddUint64(&m.messagesDelivered, 1)
}

// MessageDropped counts a realtime event dropped because the recipient was
// offline or its send buffer was full.
func (m *Metrics) MessageDropped() {
	atomic.AddUint64(&m.messagesDropped, 1)
}

// Snapshot is the JSON shape served by the metrics endpoint.
type Snapshot struct {
	UptimeSeconds     float64                      `json:"uptime_seconds"`
	ActiveConnections int64                        `json:"active_connections"`
	MessagesDelivered uint64                       `json:"messages_delivered"`
	MessagesDropped   uint64                       `json:"messages_dropped"`
	Requests          map[string]uint64            `json:"requests"`
	RequestErrors     map[string]uint64            `json:"request_errors"`
	RequestDurations  map[string]HistogramSnapshot `json:"request_durations"`
}

// HistogramSnapshot is the serializable form of a histogram.
type HistogramSnapshot struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
		ActiveConnections: m.ActiveConnections(),
		MessagesDelivered: atomic.LoadUint64(&m.messagesDelivered),
		MessagesDropped:   atomic.LoadUint64(&m.messagesDropped),
		Requests:          make(map[string]uint64),
		RequestErrors:     make(map[string]uint64),
		RequestDurations:  make(map[string]HistogramSnapshot),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for k, v := range m.requestCount {
		snap.Requests[k] = atomic.LoadUint64(v)
	}
	for k, v := range m.requestErrors {
		snap.RequestErrors[k] = atomic.LoadUint64(v)
	}
	for k, h := range m.requestDuration {
		h.mu.Lock()
		snap.RequestDurations[k] = HistogramSnapshot{Count: h.count, Sum: h.sum}
		h.mu.Unlock()
	}

	return snap
}

// Handler serves the metrics snapshot as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	}
}
