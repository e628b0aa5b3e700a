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
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "raffle_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "raffle_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	rafflesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "raffles",
			Name:      "created_total",
			Help:      "Total number of raffles created.",
		},
	)

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "raffles",
			Name:      "tickets_sold_total",
			Help:      "Total number of tickets sold across all raffles.",
		},
	)

	seedsInitialized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "raffles",
			Name:      "seeds_initialized_total",
			Help:      "Total number of raffle draw seeds initialized.",
		},
	)

	prizesClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "raffles",
			Name:      "prizes_claimed_total",
			Help:      "Total number of prizes settled to winners.",
		},
	)

	salesPaidOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "raffles",
			Name:      "sales_paid_out_total",
			Help:      "Cumulative sales amounts paid out to contributors.",
		},
	)

	seedSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raffle_layer",
			Subsystem: "scheduler",
			Name:      "seed_sweeps_total",
			Help:      "Total number of scheduler attempts to initialize overdue seeds.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		rafflesCreated,
		ticketsSold,
		seedsInitialized,
		prizesClaimed,
		salesPaidOut,
		seedSweeps,
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

// RecordRaffleCreated counts a successful raffle creation.
func RecordRaffleCreated() {
	rafflesCreated.Inc()
}

// RecordTicketSale counts tickets sold in one purchase batch.
func RecordTicketSale(count uint64) {
	ticketsSold.Add(float64(count))
}

// RecordSeedInitialized counts a seed transition from unset to set.
func RecordSeedInitialized() {
	seedsInitialized.Inc()
}

// RecordPrizeClaim counts a settled prize.
func RecordPrizeClaim() {
	prizesClaimed.Inc()
}

// RecordSalesPayout accumulates the amount paid to a contributor.
func RecordSalesPayout(amount uint64) {
	salesPaidOut.Add(float64(amount))
}

// RecordSeedSweep counts one scheduler attempt to initialize an overdue seed.
func RecordSeedSweep(success bool) {
	result := "false"
	if success {
		result = "true"
	}
	seedSweeps.WithLabelValues(result).Inc()
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
	if parts[0] != "raffles" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/raffles"
	}
	if len(parts) == 2 {
		return "/raffles/:id"
	}
	return "/raffles/:id/" + parts[2]
}
