package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

// Metrics groups the service's collectors on one registry.
type Metrics struct {
	registry *prometheus.Registry

	placements  *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	removals    prometheus.Counter
	requests    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		placements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signage_timeline_placements_total",
				Help: "Committed item placements, by insert or update",
			},
			[]string{"kind"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signage_timeline_resolutions_total",
				Help: "Existing items changed to make room for a placement, by action",
			},
			[]string{"action"},
		),
		removals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signage_timeline_removals_total",
			Help: "Items removed directly by a caller",
		}),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signage_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
	m.registry.MustRegister(
		m.placements, m.resolutions, m.removals, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TimelineChanged implements timeline.Observer.
func (m *Metrics) TimelineChanged(_ context.Context, ev timeline.Event) {
	switch ev.Kind {
	case timeline.EventPlaced:
		kind := "insert"
		if ev.Update {
			kind = "update"
		}
		m.placements.WithLabelValues(kind).Inc()
		for _, adj := range ev.Plan.Adjusted {
			m.resolutions.WithLabelValues(adj.Action.String()).Inc()
		}
		if n := len(ev.Plan.Removed); n > 0 {
			m.resolutions.WithLabelValues(timeline.ActionRemove.String()).Add(float64(n))
		}
	case timeline.EventRemoved:
		m.removals.Inc()
	}
}

// Middleware records request latency by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
