package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	events *prometheus.CounterVec
	loops  prometheus.Histogram
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed leverage events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leverage",
				Subsystem: "events",
				Name:      "total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			loops: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "leverage",
				Subsystem: "events",
				Name:      "loop_iterations",
				Help:      "Borrow/swap iterations completed by a single deposit before the loop stopped.",
				Buckets:   prometheus.LinearBuckets(1, 1, 15),
			}),
		}
		prometheus.MustRegister(eventRegistry.events, eventRegistry.loops)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.events.WithLabelValues(normalized).Inc()
}

// RecordLoop observes how many iterations a completed cycle ran.
func (m *eventMetrics) RecordLoop(iterations int) {
	if m == nil || iterations <= 0 {
		return
	}
	m.loops.Observe(float64(iterations))
}
