package api

import (
	"github.com/gofiber/fiber/v3"
)

// UserHandler handles user management operations via JSON API.
type UserHandler struct {
	subs SubmissionService
}

// NewUserHandler creates a new API user handler.
func NewUserHandler(subs SubmissionService) *UserHandler {
	return &UserHandler{subs: subs}
}

// List returns a page of users, optionally filtered by status (admin only).
func (h *UserHandler) List(c fiber.Ctx) error {
	users, page, err := h.subs.Users(c.Context(), c.Query("status"), queryInt(c, "page", 1), queryInt(c, "limit", adminPageLimit), adminPageLimit)
	if err != nil {
		return serviceError(c, err, "", "Failed to fetch users")
	}
	return jsonPage(c, users, page)
}

// Get returns one user (admin only).
func (h *UserHandler) Get(c fiber.Ctx) error {
	user, err := h.subs.User(c.Context(), c.Params("id"))
	if err != nil {
		return serviceError(c, err, "User not found", "Failed to fetch user")
	}
	return jsonSuccess(c, user)
}
