package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bluecarbon/internal/handlers/api"
	"bluecarbon/internal/middleware"
)

// Handlers groups everything the route table needs.
type Handlers struct {
	Auth        *middleware.AuthMiddleware
	Mobile      *api.MobileHandler
	Submissions *api.SubmissionHandler
	AI          *api.AIHandler
	Dashboard   *api.DashboardHandler
	Users       *api.UserHandler
	Blockchain  *api.BlockchainHandler
	Probe       *api.ProbeHandler
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(h Handlers) {
	auth := h.Auth

	// Probes and metrics
	s.App.Get("/healthz", h.Probe.Liveness)
	s.App.Get("/readyz", h.Probe.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Android app
	mobile := s.App.Group("/mobile")
	mobile.Post("/submit", auth.RequireAuth, h.Mobile.Submit)
	mobile.Get("/user/:userId/submissions", auth.RequireOwner, h.Mobile.UserSubmissions)
	mobile.Get("/user/:userId/profile", auth.RequireOwner, h.Mobile.Profile)
	mobile.Get("/user/:userId/credits", auth.RequireOwner, h.Mobile.Credits)
	mobile.Put("/user/:userId/profile", auth.RequireOwner, h.Mobile.UpdateProfile)
	mobile.Put("/user/:userId/wallet", auth.RequireOwner, h.Mobile.SetWallet)

	// Review (admin)
	subs := s.App.Group("/submissions", auth.RequireAdmin)
	subs.Get("/", h.Submissions.List)
	subs.Get("/:id", h.Submissions.Get)
	subs.Post("/:id/approve", h.Submissions.Approve)
	subs.Post("/:id/reject", h.Submissions.Reject)

	// AI proxy
	ai := s.App.Group("/ai", auth.RequireAuth)
	ai.Post("/verify", h.AI.Verify)
	ai.Post("/calculate-credits", h.AI.CalculateCredits)
	ai.Get("/health", h.AI.Health)
	ai.Get("/history", auth.RequireAdmin, h.AI.History)

	// Dashboard, cached per URL for a short time
	dash := s.App.Group("/dashboard", auth.RequireAdmin, cache.New(cache.Config{
		Expiration: s.Cfg.DashboardCacheTTL,
		Storage:    s.storage,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.OriginalURL()
		},
	}))
	dash.Get("/stats", h.Dashboard.Stats)
	dash.Get("/chart", h.Dashboard.Chart)
	dash.Get("/map", h.Dashboard.Map)
	dash.Get("/activity", h.Dashboard.Activity)

	// Users (admin)
	users := s.App.Group("/users", auth.RequireAdmin)
	users.Get("/", h.Users.List)
	users.Get("/:id", h.Users.Get)

	// Ledger
	chain := s.App.Group("/blockchain")
	chain.Get("/balance/:address", auth.RequireAuth, h.Blockchain.Balance)
	chain.Post("/transfer", auth.RequireAdmin, h.Blockchain.Transfer)
}
