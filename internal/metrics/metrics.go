// Package metrics exposes Prometheus HTTP and domain metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so independent routers in tests do not collide.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	ordersPlaced   prometheus.Counter
	guestMerges    *prometheus.CounterVec
	cartsFolded    prometheus.Counter
	stockRejection prometheus.Counter
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_placed_total",
			Help:      "Orders committed by checkout.",
		}),
		guestMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "guest_cart_merges_total",
			Help:      "Guest cart promotions by outcome.",
		}, []string{"outcome"}),
		cartsFolded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "duplicate_carts_folded_total",
			Help:      "Duplicate carts removed by consolidation.",
		}),
		stockRejection: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_insufficient_stock_total",
			Help:      "Checkouts rejected for insufficient stock.",
		}),
	}
	reg.MustRegister(
		m.requests, m.latency, m.ordersPlaced, m.guestMerges, m.cartsFolded, m.stockRejection,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records one observation per request, labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderPlaced() {
	m.ordersPlaced.Inc()
}

func (m *Metrics) InsufficientStock() {
	m.stockRejection.Inc()
}

func (m *Metrics) GuestMerge(outcome string) {
	m.guestMerges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CartsFolded(n int) {
	m.cartsFolded.Add(float64(n))
}
