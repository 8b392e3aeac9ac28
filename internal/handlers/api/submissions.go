package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"bluecarbon/internal/models"
)

const adminPageLimit = 10

// SubmissionHandler serves the review endpoints used by the dashboard.
type SubmissionHandler struct {
	subs SubmissionService
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(subs SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{subs: subs}
}

// List returns submissions filtered by status, type and user.
func (h *SubmissionHandler) List(c fiber.Ctx) error {
	filter := models.SubmissionFilter{
		UserID: c.Query("userId"),
		Status: c.Query("status"),
		Type:   c.Query("type"),
	}
	list, page, err := h.subs.List(c.Context(), filter, queryInt(c, "page", 1), queryInt(c, "limit", adminPageLimit), adminPageLimit)
	if err != nil {
		return serviceError(c, err, "", "Failed to fetch submissions")
	}
	return jsonPage(c, list, page)
}

// Get returns a single submission by ID.
func (h *SubmissionHandler) Get(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "Submission not found")
	}

	sub, err := h.subs.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "Submission not found", "Failed to fetch submission")
	}
	return jsonSuccess(c, sub)
}

// Approve issues the submission's credits on chain.
func (h *SubmissionHandler) Approve(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "Submission not found")
	}

	resp, err := h.subs.Approve(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "Submission not found", "Failed to approve submission")
	}
	return jsonSuccess(c, resp)
}

// Reject rejects the submission with an optional reason.
func (h *SubmissionHandler) Reject(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "Submission not found")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := h.subs.Reject(c.Context(), id, body.Reason); err != nil {
		return serviceError(c, err, "Submission not found", "Failed to reject submission")
	}
	return jsonSuccess(c, fiber.Map{"message": "Submission rejected"})
}
