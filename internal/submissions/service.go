// Package submissions accepts restoration claims and runs their review lifecycle.
package submissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bluecarbon/internal/credits"
	"bluecarbon/internal/db"
	"bluecarbon/internal/imaging"
	"bluecarbon/internal/models"
)

// Store is the document store used by the service.
type Store interface {
	CreateSubmission(ctx context.Context, s *models.Submission, verifyAfter time.Duration) error
	GetSubmissionByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, f models.SubmissionFilter, limit, offset int) ([]models.Submission, int64, error)
	SetLocationOnChain(ctx context.Context, id uuid.UUID, loc *models.LocationOnChain) error
	ApproveSubmission(ctx context.Context, id uuid.UUID, issue db.IssueFunc) (*models.Submission, *models.CarbonCredit, error)
	RejectSubmission(ctx context.Context, id uuid.UUID, reason string) error

	EnsureUser(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	SetWalletAddress(ctx context.Context, id, address string) error
	ListUsers(ctx context.Context, status string, limit, offset int) ([]models.User, int64, error)

	ListCreditsByUser(ctx context.Context, userID string, limit, offset int) ([]models.CarbonCredit, int64, error)
	SumActiveCreditsByUser(ctx context.Context, userID string) (int64, error)
}

// ObjectStore persists image bytes.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

// ImageProcessor produces the stored renditions of an upload.
type ImageProcessor interface {
	Process(raw []byte) (*imaging.Result, error)
}

// Ledger issues credits and anchors locations on chain.
type Ledger interface {
	IssueCredits(ctx context.Context, wallet string, amount int64, submissionID uuid.UUID) (*models.LedgerTx, error)
	RecordLocation(ctx context.Context, submissionID uuid.UUID, lat, lng float64) (*models.LocationOnChain, error)
}

// Scheduler is told when a new submission becomes due for verification.
type Scheduler interface {
	Schedule(d time.Duration)
}

// Notifier informs submitters about review decisions.
type Notifier interface {
	NotifySubmissionApproved(sub *models.Submission, owner *models.User, credit *models.CarbonCredit)
	NotifySubmissionRejected(sub *models.Submission, owner *models.User, reason string)
}

// Options configures optional collaborators of the service.
type Options struct {
	// Ledger is nil when no chain is configured; approvals then fail.
	Ledger Ledger
	// RecordLocation anchors new submissions' coordinates on chain.
	RecordLocation bool
	Scheduler      Scheduler
	Notifier       Notifier
	VerifyDelay    time.Duration
}

// Service implements the submission lifecycle.
type Service struct {
	store          Store
	objects        ObjectStore
	images         ImageProcessor
	calculator     *credits.Calculator
	ledger         Ledger
	recordLocation bool
	scheduler      Scheduler
	notifier       Notifier
	verifyDelay    time.Duration
	logger         *zap.Logger
}

// NewService creates the submission service.
func NewService(store Store, objects ObjectStore, images ImageProcessor, calculator *credits.Calculator, logger *zap.Logger, opts Options) *Service {
	if calculator == nil {
		calculator = credits.NewCalculator(nil, 0)
	}
	if opts.VerifyDelay <= 0 {
		opts.VerifyDelay = 2 * time.Second
	}
	return &Service{
		store:          store,
		objects:        objects,
		images:         images,
		calculator:     calculator,
		ledger:         opts.Ledger,
		recordLocation: opts.RecordLocation,
		scheduler:      opts.Scheduler,
		notifier:       opts.Notifier,
		verifyDelay:    opts.VerifyDelay,
		logger:         logger,
	}
}

// LedgerEnabled reports whether approvals can issue credits.
func (s *Service) LedgerEnabled() bool {
	return s.ledger != nil
}
