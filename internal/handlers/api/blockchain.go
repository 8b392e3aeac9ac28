package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"bluecarbon/internal/ledger"
	"bluecarbon/internal/metrics"
)

// BlockchainHandler exposes ledger reads and admin transfers.
type BlockchainHandler struct {
	ledger Ledger
}

// NewBlockchainHandler creates a new blockchain handler. A nil ledger makes
// every endpoint answer 503.
func NewBlockchainHandler(l Ledger) *BlockchainHandler {
	return &BlockchainHandler{ledger: l}
}

// Balance returns the credit balance of an address.
func (h *BlockchainHandler) Balance(c fiber.Ctx) error {
	if h.ledger == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "Blockchain is not configured")
	}
	address := c.Params("address")
	balance, err := h.ledger.Balance(c.Context(), address)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAddress) {
			return jsonError(c, fiber.StatusBadRequest, "Invalid wallet address")
		}
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch balance", err)
	}
	return jsonSuccess(c, fiber.Map{
		"address": address,
		"balance": balance.String(),
	})
}

// Transfer moves credits from the admin wallet to an address.
func (h *BlockchainHandler) Transfer(c fiber.Ctx) error {
	if h.ledger == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "Blockchain is not configured")
	}
	var body struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	start := time.Now()
	receipt, err := h.ledger.Transfer(c.Context(), body.To, body.Amount)
	metrics.ObserveLedger("transferCredits", start, err)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAddress):
			return jsonError(c, fiber.StatusBadRequest, "Invalid wallet address")
		case errors.Is(err, ledger.ErrInvalidAmount):
			return jsonError(c, fiber.StatusBadRequest, "Amount must be positive")
		}
		return jsonErrorDetail(c, fiber.StatusInternalServerError, "Failed to transfer credits", err)
	}
	return jsonSuccess(c, receipt)
}
