package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit status constants
const (
	CreditStatusActive  = "active"
	CreditStatusRetired = "retired"
)

// CarbonCredit is the off-chain record of an issuance. One per approved submission.
type CarbonCredit struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	SubmissionID uuid.UUID `json:"submissionId"`
	Amount       int64     `json:"amount"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	BlockchainTx string    `json:"blockchainTx"`
	CreatedAt    time.Time `json:"createdAt"`
}

// VerificationEvent logs one verification performed against the AI backend.
type VerificationEvent struct {
	ID             uuid.UUID  `json:"id"`
	SubmissionID   *uuid.UUID `json:"submissionId"`
	ImageURL       string     `json:"imageUrl"`
	Result         string     `json:"result"`
	Confidence     float64    `json:"confidence"`
	ProcessingTime float64    `json:"processingTime"`
	Fallback       bool       `json:"fallback"`
	Source         string     `json:"source"`
	CreatedAt      time.Time  `json:"timestamp"`
}
