package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	// MaxRequests per RateWindow for each client; zero disables limiting.
	MaxRequests int
	RateWindow  time.Duration
	Log         *zap.Logger
}

func NewRouter(api *API, opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", api.HandleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if opts.MaxRequests > 0 {
			r.Use(newRateLimiter(opts.MaxRequests, opts.RateWindow).middleware)
		}

		r.Post("/sessions", api.HandleCreateSession)
		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Get("/", api.HandleGetSession)
			r.Delete("/", api.HandleDeleteSession)
			r.Post("/next", api.HandleNext)
			r.Post("/select", api.HandleSelect)
			r.Post("/submit", api.HandleSubmit)
		})
		r.Get("/images", api.HandleImages)
	})

	return r
}
