// Package metrics holds the Prometheus collectors for the feed service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "livefeed",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livefeed",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "feed",
		Name:      "mutations_total",
		Help:      "Post mutations by action and outcome.",
	}, []string{"action", "outcome"})

	broadcastDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "broadcast",
		Name:      "delivered_total",
		Help:      "Events queued to a subscriber.",
	})

	broadcastDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "broadcast",
		Name:      "dropped_total",
		Help:      "Events dropped because a subscriber buffer was full.",
	})

	subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "livefeed",
		Subsystem: "broadcast",
		Name:      "subscribers",
		Help:      "Currently connected subscribers.",
	})

	assetReleases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "assets",
		Name:      "releases_total",
		Help:      "Asset releases by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight, httpRequests, httpDuration,
		mutations,
		broadcastDelivered, broadcastDropped, subscribers,
		assetReleases,
	)
}

// Handler serves the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordMutation counts a post mutation. outcome is "ok" or an error kind.
func RecordMutation(action, outcome string) {
	mutations.WithLabelValues(action, outcome).Inc()
}

func RecordDelivered() { broadcastDelivered.Inc() }

func RecordDropped() { broadcastDropped.Inc() }

func SetSubscribers(n int) { subscribers.Set(float64(n)) }

func RecordRelease(outcome string) { assetReleases.WithLabelValues(outcome).Inc() }
