package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"tjhsst/ion-verifier/internal/api"
	"tjhsst/ion-verifier/internal/logging"
	"tjhsst/ion-verifier/internal/metrics"
	"tjhsst/ion-verifier/internal/middleware"
)

// RegisterRoutes builds the chi router for the verification flow.
func RegisterRoutes(handlers *api.VerifyHandlers, metricsReg *metrics.MetricsRegistry, pinger api.Pinger, upSince time.Time) http.Handler {

	// initialize Chi router
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(metricsReg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	logging.Info("Router initialized with metrics and logging middleware")

	r.Get("/", handlers.Index)
	r.Get("/start-verify", handlers.StartVerify)
	r.Get("/callback", handlers.Callback)
	r.Get("/healthCheck", api.HealthCheckHandler(pinger, upSince))

	return r
}
