package api

import (
	"github.com/gofiber/fiber/v3"

	"bluecarbon/internal/dashboard"
)

// DashboardHandler serves the dashboard aggregates.
type DashboardHandler struct {
	dash DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dash DashboardService) *DashboardHandler {
	return &DashboardHandler{dash: dash}
}

// Stats returns the headline counters.
func (h *DashboardHandler) Stats(c fiber.Ctx) error {
	stats, err := h.dash.Stats(c.Context())
	if err != nil {
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch dashboard statistics", err)
	}
	return jsonSuccess(c, stats)
}

// Chart returns monthly submission counts.
func (h *DashboardHandler) Chart(c fiber.Ctx) error {
	points, err := h.dash.Chart(c.Context(), queryInt(c, "period", dashboard.DefaultPeriod))
	if err != nil {
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch chart data", err)
	}
	return jsonSuccess(c, points)
}

// Map returns located submissions.
func (h *DashboardHandler) Map(c fiber.Ctx) error {
	points, err := h.dash.Map(c.Context(), c.Query("status", "all"))
	if err != nil {
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch map data", err)
	}
	return jsonSuccess(c, points)
}

// Activity returns the recent activity feed.
func (h *DashboardHandler) Activity(c fiber.Ctx) error {
	feed, err := h.dash.Activity(c.Context(), queryInt(c, "limit", dashboard.DefaultActivityLimit))
	if err != nil {
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch recent activity", err)
	}
	return jsonSuccess(c, feed)
}
