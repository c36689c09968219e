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
  /api/pools/*      Pool, participant, and money-movement operations
  /api/entries/*    Voting and tallies
  /api/rules/*      Rules presets
  /api/scenarios/*  Demo scenarios

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
		// Pool routes
		r.Route("/pools", func(r chi.Router) {
			r.Get("/", h.ListPools)
			r.Post("/", h.CreatePool)
			r.Get("/{id}", h.GetPool)
			r.Put("/{id}/rules", h.UpdateRules)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/entries", h.GetEntries)
			r.Post("/{id}/close", h.ClosePool)

			// Participants
			r.Post("/{id}/participants", h.Invite)
			r.Post("/{id}/participants/{pid}/accept", h.AcceptInvitation)
			r.Delete("/{id}/participants/{pid}", h.RemoveParticipant)

			// Money movement
			r.Post("/{id}/contributions", h.Contribute)
			r.Post("/{id}/withdrawals", h.RequestWithdrawal)
			r.Post("/{id}/expenses", h.RequestExpense)

			// Exit settlement
			r.Get("/{id}/exit/{pid}", h.PreviewExit)
			r.Post("/{id}/exit/{pid}/request", h.RequestExit)
			r.Post("/{id}/exit/{pid}", h.ExecuteExit)
		})

		// Voting routes
		r.Route("/entries", func(r chi.Router) {
			r.Post("/{id}/votes", h.CastVote)
			r.Post("/{id}/tally", h.TallyEntry)
		})

		// Rules presets
		r.Route("/rules", func(r chi.Router) {
			r.Get("/presets", h.ListPresets)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
