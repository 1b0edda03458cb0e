/*
Package metrics declares the Prometheus collectors shared by the client core and the
functions service.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RealtimeChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "appdam_realtime_channels",
		Help: "Current number of live room subscriptions",
	})
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appdam_messages_delivered_total",
		Help: "Total number of messages pushed to room subscribers",
	})
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appdam_messages_sent_total",
		Help: "Total number of messages sent, by type",
	}, []string{"type"})
	FeedEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appdam_feed_events_dropped_total",
		Help: "Total number of change events that could not be decoded",
	})
	GatewayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "appdam_gateway_connections",
		Help: "Current number of websocket connections to the realtime gateway",
	})
	GatewayChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "appdam_gateway_channels",
		Help: "Current number of channels joined through the realtime gateway",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		RealtimeChannels,
		MessagesDelivered,
		MessagesSent,
		FeedEventsDropped,
		GatewayConnections,
		GatewayChannels,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Middleware records request count and latency labelled by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(status)}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
