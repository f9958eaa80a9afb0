package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/config"
	"github.com/unclebandit/spinwin-backend/internal/controller"
	"github.com/unclebandit/spinwin-backend/internal/handler"
	"github.com/unclebandit/spinwin-backend/internal/metrics"
	"github.com/unclebandit/spinwin-backend/internal/middleware"
)

type routerDeps struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Submission *controller.SubmissionController
	Health     *handler.HealthHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	// Probes stay outside the rate limiter
	r.Get("/health", d.Health.Health)
	r.Get("/ready", d.Health.Ready)
	if d.Metrics != nil && d.Config.Metrics.Enabled {
		r.Method(http.MethodGet, d.Config.Metrics.Path, d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if rl := d.Config.RateLimiter; rl.Enabled {
			r.Use(middleware.NewRateLimiter(rl.RequestsPerSecond, rl.BurstSize, d.Logger).Limit)
		}
		r.Post("/submit", d.Submission.Submit)
		r.Post("/submit-offer", d.Submission.SubmitOffer)
		r.Get("/download", d.Submission.Download)
	})

	// Spin-wheel front end
	if dir := d.Config.Server.StaticDir; dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(dir)))
	}

	return r
}
