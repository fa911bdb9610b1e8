package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lottery_engine",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lottery_engine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ticketsSold = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "rounds",
			Name:      "tickets_sold_total",
			Help:      "Total number of tickets sold, bonus tickets included.",
		},
		[]string{"kind", "bonus"},
	)

	roundsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "rounds",
			Name:      "started_total",
			Help:      "Total number of rounds opened.",
		},
		[]string{"kind"},
	)

	drawsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "rounds",
			Name:      "draws_total",
			Help:      "Total number of completed draws.",
		},
		[]string{"kind", "stage"},
	)

	rewardsPaid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "rewards",
			Name:      "paid_total",
			Help:      "Cumulative reward value paid out, in token base units.",
		},
		[]string{"kind", "stage"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ticketsSold,
		roundsStarted,
		drawsCompleted,
		rewardsPaid,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTicketsSold records a batch of sold tickets.
func RecordTicketsSold(kind string, paid, bonus int) {
	if paid > 0 {
		ticketsSold.WithLabelValues(kind, "false").Add(float64(paid))
	}
	if bonus > 0 {
		ticketsSold.WithLabelValues(kind, "true").Add(float64(bonus))
	}
}

// RecordRoundStarted records a newly opened round.
func RecordRoundStarted(kind string) {
	roundsStarted.WithLabelValues(kind).Inc()
}

// RecordDrawCompleted records one completed draw stage.
func RecordDrawCompleted(kind, stage string) {
	drawsCompleted.WithLabelValues(kind, stage).Inc()
}

// RecordRewardPaid accumulates a paid reward.
func RecordRewardPaid(kind, stage string, amount int64) {
	if amount <= 0 {
		return
	}
	rewardsPaid.WithLabelValues(kind, stage).Add(float64(amount))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "v1" || len(parts) < 2 {
		return "/" + parts[0]
	}
	if len(parts) == 2 {
		return "/v1/" + parts[1]
	}
	// Collapse round ids and owners into one series per route shape.
	return "/v1/" + parts[1] + "/" + parts[2]
}
