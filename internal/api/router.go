// Package api wires the admin HTTP endpoints of the ledger daemon.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ndewijer/Disclosure-Ledger/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Disclosure-Ledger/internal/api/middleware"
	"github.com/ndewijer/Disclosure-Ledger/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(systemService *service.SystemService, runService *service.RunService) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/runs", func(r chi.Router) {
			runHandler := handlers.NewRunHandler(runService)
			r.Get("/", runHandler.ListRuns)
			r.With(custommiddleware.APIKeyMiddleware).Post("/", runHandler.TriggerRun)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", runHandler.GetRun)
			})
		})
	})

	return r
}
