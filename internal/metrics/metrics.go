package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuestionsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_questions_loaded_total",
			Help: "Random question fetches by outcome",
		},
		[]string{"result"},
	)

	ResponsesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_responses_recorded_total",
			Help: "Submitted responses by grading outcome",
		},
		[]string{"result"},
	)

	ImageDiscoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_image_discoveries_total",
			Help: "Image discovery runs by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	ImageProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_image_probes_total",
			Help: "Individual image candidate existence checks",
		},
		[]string{"strategy", "outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_active_sessions",
			Help: "Sessions currently held by the HTTP service",
		},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			QuestionsLoaded,
			ResponsesRecorded,
			ImageDiscoveries,
			ImageProbes,
			ActiveSessions,
			RequestCounter,
			RequestDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latencies keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}

		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(recorder.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
