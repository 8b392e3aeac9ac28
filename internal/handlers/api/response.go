package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"bluecarbon/internal/models"
	"bluecarbon/internal/submissions"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// jsonCreated returns a 201 response with data wrapped in the standard envelope.
func jsonCreated(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// jsonPage returns one page of a listing.
func jsonPage(c fiber.Ctx, data any, p models.Pagination) error {
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       data,
		"pagination": p,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// jsonErrorDetail is jsonError with the underlying cause in "message".
func jsonErrorDetail(c fiber.Ctx, status int, message string, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"message": err.Error(),
	})
}

// serviceError maps a submissions service error onto a response. fallback is
// the error text for unexpected failures.
func serviceError(c fiber.Ctx, err error, notFound, fallback string) error {
	var verr *submissions.ValidationError
	var lerr *submissions.LedgerError
	switch {
	case errors.As(err, &verr):
		body := fiber.Map{"success": false}
		if len(verr.Missing) > 0 {
			body["error"] = "Missing required fields"
			body["required"] = verr.Missing
		} else {
			body["error"] = "Invalid fields"
		}
		if len(verr.Invalid) > 0 {
			body["invalid"] = verr.Invalid
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	case errors.Is(err, submissions.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, notFound)
	case errors.Is(err, submissions.ErrInvalidState):
		return jsonError(c, fiber.StatusBadRequest, "Submission is not pending")
	case errors.Is(err, submissions.ErrMissingWallet):
		return jsonError(c, fiber.StatusBadRequest, "User wallet address not found")
	case errors.As(err, &lerr):
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to issue credits on blockchain", lerr.Err)
	default:
		return jsonErrorDetail(c, fiber.StatusInternalServerError, fallback, err)
	}
}

// queryInt reads an integer query parameter; missing or malformed values yield def.
func queryInt(c fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
