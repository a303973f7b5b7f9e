/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/items/*         Stock items, purchases, consumptions, adjustments
  /api/production      Recipe-driven production runs
  /api/recipes/*       Recipe management
  /api/entities/*      Customers/parties and their ledgers
  /api/transactions/*  Ledger transaction edits and deletes
  /api/days/*          Day-close locks
  /api/consistency/*   Checks and holds
  /api/scenarios/*     Demo data loaders

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Stock item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/{id}", h.GetItem)
			r.Post("/{id}/deactivate", h.DeactivateItem)
			r.Get("/{id}/transactions", h.GetItemTransactions)
			r.Post("/{id}/purchases", h.RecordPurchase)
			r.Post("/{id}/consumptions", h.RecordConsumption)
			r.Post("/{id}/adjustments", h.RecordAdjustment)
		})

		// Production routes
		r.Post("/production", h.RecordProduction)

		// Recipe routes
		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", h.ListRecipes)
			r.Post("/", h.CreateRecipe)
			r.Get("/{productID}", h.GetRecipe)
		})

		// Entity / ledger routes
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Post("/", h.CreateEntity)
			r.Get("/{id}", h.GetEntity)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetLedgerTransactions)
			r.Post("/{id}/transactions", h.AppendTransaction)
			r.Post("/{id}/recalculate", h.Recalculate)
		})

		// Ledger transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Day lock routes
		r.Route("/days", func(r chi.Router) {
			r.Get("/", h.ListDayLocks)
			r.Post("/close", h.CloseDay)
			r.Post("/reopen", h.ReopenDay)
		})

		// Consistency routes
		r.Route("/consistency", func(r chi.Router) {
			r.Post("/check", h.RunConsistencyCheck)
			r.Get("/holds", h.ListHolds)
			r.Post("/resolve", h.ResolveHold)
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
