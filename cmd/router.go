package main

import (
	"net/http"
	"time"

	"SRTrack/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inconshreveable/log15/v3"
)

func SetupRouter(h *api.Handlers, log log15.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health", h.HandleHealthCheck)

	r.Post(api.WebhookPath, h.HandleTelegramWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireCronSecret())
		r.Get("/cron/compliance-check", h.HandleComplianceCheck)
		r.Post("/cron/compliance-check", h.HandleComplianceCheck)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAPIToken())
		r.Get("/attendance", h.HandleListAttendance)
		r.Post("/telegram/set-webhook", h.HandleSetWebhook)
	})

	return r
}

func requestLogger(log log15.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("Request served", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "took", time.Since(start))
		})
	}
}
