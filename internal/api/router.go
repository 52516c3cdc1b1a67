package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"controltower/internal/metrics"
)

// Router mounts every endpoint. Event streams skip the rate limiter since
// they hold one long-lived request each.
func (s *Server) Router() http.Handler {
	metrics.RegisterDefault()
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(s.Log))

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/", s.DashboardHandler)
	r.Handle("/static/*", s.StaticHandler())

	r.Get("/v1/events/stream", s.EventsStreamHandler)
	r.Get("/v1/events/ws", s.EventsWSHandler)

	r.Group(func(r chi.Router) {
		r.Use(NewRateLimiter(s.Cfg.RateRPS, s.Cfg.RateBurst).Middleware)
		r.Get("/v1/admin/debug", s.DebugJSON)
		r.Get("/v1/config", s.ConfigHandler)
		r.Get("/v1/dataset", s.DatasetHandler)
		r.Post("/v1/dataset/reload", s.ReloadHandler)
		r.Get("/v1/orders", s.OrdersHandler)
		r.Get("/v1/kpis", s.KPIsHandler)
		r.Get("/v1/routes/scores", s.RouteScoresHandler)
		r.Get("/v1/routes/lanes", s.LanesHandler)
		r.Get("/v1/warehouses/health", s.WarehouseHealthHandler)
		r.Get("/v1/warehouses/plan", s.WarehousePlanHandler)
		r.Get("/v1/costs", s.CostsHandler)
		r.Get("/v1/feedback", s.FeedbackHandler)
		r.Get("/v1/export/{name}.csv", s.ExportHandler)
	})
	return r
}
