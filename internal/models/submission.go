package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission status constants
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Ecosystem type constants
const (
	TypeMangrove = "mangrove"
	TypeSeagrass = "seagrass"
	TypeCoral    = "coral"
)

// AI verification result constants
const (
	AIResultPending  = "pending"
	AIResultVerified = "verified"
	AIResultRejected = "rejected"
)

// DefaultRejectionReason is stored when a reviewer rejects without a reason.
const DefaultRejectionReason = "Submission did not meet verification criteria"

// Submission is a restoration claim sent from the mobile app.
type Submission struct {
	ID               uuid.UUID        `json:"id"`
	UserID           string           `json:"userId"`
	Type             string           `json:"type"`
	Location         Location         `json:"location"`
	Area             float64          `json:"area"` // acres
	Description      string           `json:"description"`
	Images           []Image          `json:"images"`
	EstimatedCredits int64            `json:"estimatedCredits"`
	Status           string           `json:"status"`
	DeviceInfo       DeviceInfo       `json:"deviceInfo"`
	AIVerification   AIVerification   `json:"aiVerification"`
	RejectionReason  *string          `json:"rejectionReason,omitempty"`
	BlockchainTx     *LedgerTx        `json:"blockchainTx,omitempty"`
	LocationOnChain  *LocationOnChain `json:"locationOnChain,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Location is the claimed site position.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Image references a processed upload. Owned by exactly one submission.
type Image struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	Thumbnail    string    `json:"thumbnail"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
}

// DeviceInfo describes the client that produced the submission.
type DeviceInfo struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Device   string `json:"device"`
}

// AIVerification is the verdict written by the verification worker.
type AIVerification struct {
	Result         string     `json:"result"`
	Confidence     float64    `json:"confidence"`
	ProcessingTime float64    `json:"processingTime"` // seconds
	Timestamp      *time.Time `json:"timestamp"`
	Fallback       bool       `json:"fallback"`
	Source         string     `json:"source,omitempty"`
}

// LedgerTx is the receipt of a credit issuance.
type LedgerTx struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// LocationOnChain records a best-effort on-chain location write.
type LocationOnChain struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	LatE7       int64  `json:"latE7"`
	LngE7       int64  `json:"lngE7"`
}

// IsPending returns true if the submission awaits review.
func (s *Submission) IsPending() bool {
	return s.Status == StatusPending
}

// IsApproved returns true if credits were issued for the submission.
func (s *Submission) IsApproved() bool {
	return s.Status == StatusApproved
}

// IsVerified returns true once the AI record holds a final verdict.
func (s *Submission) IsVerified() bool {
	return s.AIVerification.Result != "" && s.AIVerification.Result != AIResultPending
}

// CanTransitionTo reports whether the lifecycle allows moving to status.
// Only pending submissions move, and only to approved or rejected.
func (s *Submission) CanTransitionTo(status string) bool {
	if s.Status != StatusPending {
		return false
	}
	return status == StatusApproved || status == StatusRejected
}

// FirstImageURL returns the main URL of the first image, or "".
func (s *Submission) FirstImageURL() string {
	if len(s.Images) == 0 {
		return ""
	}
	return s.Images[0].URL
}

// SubmissionFilter holds optional equality filters for listing.
type SubmissionFilter struct {
	UserID string
	Status string
	Type   string
}
