// Package metrics exposes Astrid's runtime counters as Prometheus metrics,
// mirroring the CounterVec/GaugeVec registration style used elsewhere in
// this codebase for per-operation instrumentation.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Astrid's registered counters and gauges. The dispatcher
// records DispatcherQueueDepth, the scheduler SchedulerEventsTotal, and the
// renderer SilentFramesTotal; MessagesDroppedTotal and
// TransportSendDuration are registered but not recorded by any caller.
type Metrics struct {
	MessagesDroppedTotal  *prometheus.CounterVec
	DispatcherQueueDepth  prometheus.Gauge
	SchedulerEventsTotal  *prometheus.GaugeVec
	SilentFramesTotal     prometheus.Counter
	TransportSendDuration *prometheus.HistogramVec
}

// New constructs and registers Metrics against the default registry.
func New() *Metrics {
	m := &Metrics{
		MessagesDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astrid",
			Name:      "messages_dropped_total",
			Help:      "Control messages dropped, labeled by reason.",
		}, []string{"reason"}),
		DispatcherQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "astrid",
			Name:      "dispatcher_queue_depth",
			Help:      "Number of messages currently held in the dispatcher priority queue.",
		}),
		SchedulerEventsTotal: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "astrid",
			Name:      "scheduler_events",
			Help:      "Number of scheduler events, labeled by list (waiting, playing, nursery).",
		}, []string{"list"}),
		SilentFramesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "astrid",
			Name:      "silent_frames_total",
			Help:      "Output frames emitted silent because a mix could not complete (e.g. ADC lock unavailable).",
		}),
		TransportSendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "astrid",
			Name:      "transport_send_duration_seconds",
			Help:      "Latency of Queue.Send / Queue.SendPlay calls, labeled by queue name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
	}
	return m
}

// Server builds an http.Server for /metrics on addr and shuts it down when
// ctx is cancelled. It does not start listening; the caller runs
// ListenAndServe.
func Server(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}
