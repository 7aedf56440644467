/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/trips/*       Trip lifecycle and imports
  /api/ledger/*      History, verification, batches, migration
  /api/projects/*    Project management
  /api/documents/*   Document metadata and extraction

SECURITY NOTE:
  Identity is a bare X-User-ID header; there is no authentication
  middleware. Run behind a gateway that establishes the header.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// allowedOrigins feeds the CORS middleware; empty means same-origin only.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Trip routes
		r.Route("/trips", func(r chi.Router) {
			r.Get("/", h.ListTrips)
			r.Post("/", h.CreateTrip)
			r.Patch("/{id}", h.AmendTrip)
			r.Delete("/{id}", h.DeleteTrip)
			r.Post("/import", h.ImportTrips)
			r.Post("/import/csv", h.ImportTripsCSV)
		})

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/entries", h.ListEntries)
			r.Get("/verify", h.VerifyLedger)
			r.Get("/batches", h.ListBatches)
			r.Get("/batches/{id}", h.GetBatchEntries)
			r.Post("/migrate", h.Migrate)
		})

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}/documents", h.ListProjectDocuments)
		})

		// Document routes
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.RegisterDocument)
			r.Post("/{id}/extract", h.ExtractDocument)
		})
	})

	return r
}
