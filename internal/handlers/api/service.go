package api

import (
	"context"
	"math/big"

	"github.com/google/uuid"

	"bluecarbon/internal/models"
	"bluecarbon/internal/submissions"
	"bluecarbon/internal/verification"
)

// SubmissionService is the submission lifecycle used by the mobile, review
// and user endpoints.
type SubmissionService interface {
	Create(ctx context.Context, req *submissions.CreateRequest) (*models.SubmitResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter, page, limit, defaultLimit int) ([]models.Submission, models.Pagination, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.ApproveResponse, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
	Credits(ctx context.Context, userID string, page, limit, defaultLimit int) ([]models.CarbonCredit, models.Pagination, error)
	UpdateProfile(ctx context.Context, userID, name, email string) (*models.User, error)
	SetWallet(ctx context.Context, userID, address string) error
	User(ctx context.Context, userID string) (*models.User, error)
	Users(ctx context.Context, status string, page, limit, defaultLimit int) ([]models.User, models.Pagination, error)
}

// DashboardService answers the dashboard aggregate queries.
type DashboardService interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
	Chart(ctx context.Context, period int) ([]models.ChartPoint, error)
	Map(ctx context.Context, status string) ([]models.MapPoint, error)
	Activity(ctx context.Context, limit int) ([]models.Activity, error)
}

// AIService verifies images and estimates credits, falling back locally
// when the upstream service fails.
type AIService interface {
	Verify(ctx context.Context, imageURL, submissionID string) models.Verdict
	CalculateCredits(ctx context.Context, req verification.CreditRequest) models.CreditEstimate
	Health(ctx context.Context) verification.Health
}

// VerificationLog stores and lists verification events.
type VerificationLog interface {
	RecordVerificationEvent(ctx context.Context, ev *models.VerificationEvent) error
	ListVerificationEvents(ctx context.Context, limit, offset int) ([]models.VerificationEvent, int64, error)
}

// Ledger is the read and transfer side of the ledger client.
type Ledger interface {
	Balance(ctx context.Context, wallet string) (*big.Int, error)
	Transfer(ctx context.Context, wallet string, amount int64) (*models.LedgerTx, error)
}
