package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmitResponse is returned by the mobile submit endpoint.
type SubmitResponse struct {
	SubmissionID     uuid.UUID `json:"submissionId"`
	Status           string    `json:"status"`
	EstimatedCredits int64     `json:"estimatedCredits"`
	Message          string    `json:"message"`
}

// ApproveResponse is returned when credits were issued.
type ApproveResponse struct {
	Message         string    `json:"message"`
	TransactionHash string    `json:"transactionHash"`
	CreditsIssued   int64     `json:"creditsIssued"`
	CreditID        uuid.UUID `json:"creditId"`
}

// DashboardStats is the headline dashboard block.
type DashboardStats struct {
	TotalSubmissions    int64 `json:"totalPlantations"`
	ApprovedSubmissions int64 `json:"verifiedSubmissions"`
	CreditsIssued       int64 `json:"creditsIssued"`
	ActiveUsers         int64 `json:"activeUsers"`
}

// ChartPoint is one month of the submissions trend.
type ChartPoint struct {
	Name        string `json:"name"`  // "Jan"
	Month       string `json:"month"` // "2026-01"
	Submissions int64  `json:"submissions"`
	Verified    int64  `json:"verified"`
}

// MapPoint is a submission plotted on the dashboard map.
type MapPoint struct {
	ID       uuid.UUID `json:"id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Verified bool      `json:"verified"`
	Date     string    `json:"date"`
	Credits  int64     `json:"credits"`
	Status   string    `json:"status"`
}

// Activity kinds
const (
	ActivitySubmission     = "submission"
	ActivityCreditIssuance = "credit_issuance"
)

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID        uuid.UUID `json:"id"`
	Icon      string    `json:"icon"`
	Text      string    `json:"text"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// Verdict is the outcome of an AI image verification.
type Verdict struct {
	Result         string         `json:"result"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime float64        `json:"processingTime"`
	Fallback       bool           `json:"fallback"`
	Source         string         `json:"source"`
	Details        map[string]any `json:"details,omitempty"`
}

// CreditEstimate is the outcome of an AI credit calculation.
type CreditEstimate struct {
	Credits        int64          `json:"credits"`
	Confidence     float64        `json:"confidence"`
	Factors        map[string]any `json:"factors"`
	ProcessingTime float64        `json:"processingTime"`
	Fallback       bool           `json:"fallback"`
}
