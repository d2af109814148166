package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Upstream metrics

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentgate",
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of calls to the voice-agent API.",
		Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate",
		Name:      "upstream_requests_total",
		Help:      "Calls to the voice-agent API, by operation and outcome kind.",
	}, []string{"operation", "outcome"})

	// Bootstrap metrics

	BootstrapsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentgate",
		Name:      "bootstraps_in_flight",
		Help:      "Bootstrap flows currently running.",
	})

	BootstrapOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate",
		Name:      "bootstrap_outcomes_total",
		Help:      "Finished bootstrap flows, by mode and terminal state.",
	}, []string{"mode", "state"})

	BootstrapRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agentgate",
		Name:      "bootstrap_rejected_total",
		Help:      "Submissions ignored because a flow was already in flight.",
	})

	// Session metrics

	SessionsEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agentgate",
		Name:      "sessions_evicted_total",
		Help:      "Idle in-memory browser sessions removed by the reaper.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentgate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentgate",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		UpstreamRequestDuration,
		UpstreamRequestsTotal,
		BootstrapsInFlight,
		BootstrapOutcomesTotal,
		BootstrapRejectedTotal,
		SessionsEvictedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// HealthReporter is the part of health.Checker the metrics server exposes.
type HealthReporter interface {
	LivenessJSON() ([]byte, bool)
	ReadinessJSON(r *http.Request) ([]byte, bool)
}

func NewServer(addr string, health HealthReporter) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			body, ok := health.LivenessJSON()
			writeHealth(w, body, ok)
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			body, ok := health.ReadinessJSON(r)
			writeHealth(w, body, ok)
		})
	}
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, body []byte, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(body)
}
