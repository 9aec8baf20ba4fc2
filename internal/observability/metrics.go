package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and dispatch flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	itemsSentTotal         *prometheus.CounterVec
	itemsFailedTotal       *prometheus.CounterVec
	itemSendDuration       *prometheus.HistogramVec
	dispatchInflight       prometheus.Gauge
	campaignsFinishedTotal prometheus.Counter
	webhookEventsTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wapanel",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wapanel",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		itemsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wapanel",
				Name:      "campaign_items_sent_total",
				Help:      "Total number of campaign items delivered to the provider.",
			},
			[]string{"kind"},
		),
		itemsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wapanel",
				Name:      "campaign_items_failed_total",
				Help:      "Total number of campaign items that ended in failed state.",
			},
			[]string{"kind", "reason"},
		),
		itemSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wapanel",
				Name:      "campaign_item_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by message kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		dispatchInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "wapanel",
				Name:      "dispatch_inflight",
				Help:      "Current number of campaigns being dispatched.",
			},
		),
		campaignsFinishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "wapanel",
				Name:      "campaigns_finished_total",
				Help:      "Total number of campaigns whose dispatch loop completed.",
			},
		),
		webhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wapanel",
				Name:      "webhook_events_total",
				Help:      "Total number of inbound webhook events by outcome.",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.itemsSentTotal,
		m.itemsFailedTotal,
		m.itemSendDuration,
		m.dispatchInflight,
		m.campaignsFinishedTotal,
		m.webhookEventsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncItemSent(kind string) {
	if m == nil {
		return
	}
	m.itemsSentTotal.WithLabelValues(normalizeKind(kind)).Inc()
}

func (m *Metrics) IncItemFailed(kind string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.itemsFailedTotal.WithLabelValues(normalizeKind(kind), reasonLabel).Inc()
}

func (m *Metrics) ObserveItemSendDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.itemSendDuration.WithLabelValues(normalizeKind(kind)).Observe(seconds)
}

func (m *Metrics) IncDispatchInFlight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Inc()
}

func (m *Metrics) DecDispatchInFlight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Dec()
}

func (m *Metrics) IncCampaignFinished() {
	if m == nil {
		return
	}
	m.campaignsFinishedTotal.Inc()
}

func (m *Metrics) IncWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.webhookEventsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeKind(kind string) string {
	normalized := strings.ToLower(strings.TrimSpace(kind))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
