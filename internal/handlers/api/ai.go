package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bluecarbon/internal/metrics"
	"bluecarbon/internal/models"
	"bluecarbon/internal/validation"
	"bluecarbon/internal/verification"
)

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 100
)

// AIHandler proxies the AI verification service.
type AIHandler struct {
	ai     AIService
	events VerificationLog
	logger *zap.Logger
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(ai AIService, events VerificationLog, logger *zap.Logger) *AIHandler {
	return &AIHandler{ai: ai, events: events, logger: logger}
}

// Verify classifies an image. Upstream failures yield a fallback verdict, never an error.
func (h *AIHandler) Verify(c fiber.Ctx) error {
	var body struct {
		ImageURL     string `json:"imageUrl"`
		SubmissionID string `json:"submissionId"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(body.ImageURL) == "" {
		return jsonError(c, fiber.StatusBadRequest, "Image URL is required")
	}
	if ok, msg := validation.ValidateURL(body.ImageURL); !ok {
		return jsonError(c, fiber.StatusBadRequest, msg)
	}

	start := time.Now()
	verdict := h.ai.Verify(c.Context(), body.ImageURL, body.SubmissionID)
	metrics.RecordVerification(verdict, time.Since(start))

	ev := &models.VerificationEvent{
		ImageURL:       body.ImageURL,
		Result:         verdict.Result,
		Confidence:     verdict.Confidence,
		ProcessingTime: verdict.ProcessingTime,
		Fallback:       verdict.Fallback,
		Source:         verdict.Source,
	}
	if id, err := uuid.Parse(body.SubmissionID); err == nil {
		ev.SubmissionID = &id
	}
	if err := h.events.RecordVerificationEvent(c.Context(), ev); err != nil {
		h.logger.Warn("failed to record verification event", zap.Error(err))
	}

	return jsonSuccess(c, verdict)
}

// CalculateCredits estimates credits for a site, falling back to the area formula.
func (h *AIHandler) CalculateCredits(c fiber.Ctx) error {
	var body struct {
		ImageURL     string          `json:"imageUrl"`
		Area         json.RawMessage `json:"area"`
		Type         string          `json:"type"`
		SubmissionID string          `json:"submissionId"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	area, ok := parseArea(body.Area)
	if strings.TrimSpace(body.ImageURL) == "" || !ok || strings.TrimSpace(body.Type) == "" {
		return jsonError(c, fiber.StatusBadRequest, "Image URL, area, and type are required")
	}

	est := h.ai.CalculateCredits(c.Context(), verification.CreditRequest{
		ImageURL:     body.ImageURL,
		Area:         area,
		Type:         body.Type,
		SubmissionID: body.SubmissionID,
	})
	return jsonSuccess(c, est)
}

// parseArea accepts the area as a JSON number or a numeric string.
func parseArea(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n > 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, n > 0
}

// Health reports whether the AI backend answers.
func (h *AIHandler) Health(c fiber.Ctx) error {
	return c.JSON(h.ai.Health(c.Context()))
}

// History returns logged verifications, newest first.
func (h *AIHandler) History(c fiber.Ctx) error {
	limit := queryInt(c, "limit", historyDefaultLimit)
	if limit < 1 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}
	offset := max(queryInt(c, "offset", 0), 0)

	events, total, err := h.events.ListVerificationEvents(c.Context(), limit, offset)
	if err != nil {
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch AI verification history", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}
