package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"recipehub-search/internal/handlers"
	"recipehub-search/internal/metrics"
	"recipehub-search/internal/middleware"
)

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, sessions *handlers.SessionHandler) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 * 1024
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", sessions.Create)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(sessions.Load)

			r.Get("/", sessions.Snapshot)
			r.Delete("/", sessions.Delete)
			r.Get("/history", sessions.History)

			r.Put("/query", sessions.SetQuery)
			r.Put("/filters", sessions.SetFilters)
			r.Post("/submit", sessions.Submit)
			r.Post("/suggestions/select", sessions.SelectSuggestion)
			r.Post("/clear", sessions.Clear)
			r.Post("/more", sessions.LoadMore)

			r.Post("/sentinel", sessions.Sentinel)
			r.Post("/scroll", sessions.Scroll)

			r.Post("/recipes/{recipeID}/{action}", sessions.Toggle)
		})
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
