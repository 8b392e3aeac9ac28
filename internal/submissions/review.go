package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bluecarbon/internal/db"
	"bluecarbon/internal/ledger"
	"bluecarbon/internal/metrics"
	"bluecarbon/internal/models"
)

const approvedMessage = "Submission approved and credits issued"

// Approve issues the estimated credits to the owner's wallet and marks the
// submission approved. Either everything is persisted or nothing is.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*models.ApproveResponse, error) {
	var owner *models.User
	var issued *models.LedgerTx
	issue := func(ctx context.Context, sub *models.Submission, u *models.User) (*models.LedgerTx, error) {
		owner = u
		if !u.HasWallet() {
			return nil, ErrMissingWallet
		}
		if s.ledger == nil {
			return nil, &LedgerError{Err: ledger.ErrNotConfigured}
		}
		start := time.Now()
		receipt, err := s.ledger.IssueCredits(ctx, u.WalletAddress, sub.EstimatedCredits, sub.ID)
		metrics.ObserveLedger("issueCredits", start, err)
		if err != nil {
			return nil, &LedgerError{Err: err}
		}
		issued = receipt
		return receipt, nil
	}

	sub, credit, err := s.store.ApproveSubmission(ctx, id, issue)
	err = translate(err)
	metrics.RecordReview(models.StatusApproved, err)
	if err != nil && issued != nil {
		// The chain has the credits but the database does not; an operator
		// must reconcile before the submission is approved again.
		s.logger.Error("credits issued on chain but approval was not recorded",
			zap.String("submission_id", id.String()),
			zap.String("tx_hash", issued.Hash),
			zap.Uint64("block", issued.BlockNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("credits issued in tx %s but approval was not recorded: %w", issued.Hash, err)
	}
	if err != nil {
		s.logger.Warn("approve failed", zap.String("submission_id", id.String()), zap.Error(err))
		return nil, err
	}

	metrics.RecordCreditsIssued(credit.Amount)
	s.logger.Info("submission approved",
		zap.String("submission_id", sub.ID.String()),
		zap.String("user_id", sub.UserID),
		zap.Int64("credits", credit.Amount),
		zap.String("tx_hash", credit.BlockchainTx),
	)

	if s.notifier != nil && owner != nil {
		s.notifier.NotifySubmissionApproved(sub, owner, credit)
	}

	return &models.ApproveResponse{
		Message:         approvedMessage,
		TransactionHash: credit.BlockchainTx,
		CreditsIssued:   credit.Amount,
		CreditID:        credit.ID,
	}, nil
}

// Reject marks a submission rejected. An empty reason stores the default one.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = models.DefaultRejectionReason
	}

	err := translate(s.store.RejectSubmission(ctx, id, reason))
	metrics.RecordReview(models.StatusRejected, err)
	if err != nil {
		return err
	}
	s.logger.Info("submission rejected", zap.String("submission_id", id.String()), zap.String("reason", reason))

	if s.notifier != nil {
		s.notifyRejected(ctx, id, reason)
	}
	return nil
}

func (s *Service) notifyRejected(ctx context.Context, id uuid.UUID, reason string) {
	sub, err := s.store.GetSubmissionByID(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load rejected submission for notification", zap.Error(err))
		return
	}
	owner, err := s.store.GetUserByID(ctx, sub.UserID)
	if err != nil {
		s.logger.Warn("failed to load submitter for notification", zap.Error(err))
		return
	}
	s.notifier.NotifySubmissionRejected(sub, owner, reason)
}

// translate maps store errors onto the service taxonomy.
func translate(err error) error {
	var lerr *LedgerError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingWallet), errors.As(err, &lerr):
		return err
	case errors.Is(err, db.ErrSubmissionNotFound), errors.Is(err, db.ErrUserNotFound):
		return ErrNotFound
	case errors.Is(err, db.ErrSubmissionNotPending), errors.Is(err, db.ErrSubmissionApproved),
		errors.Is(err, db.ErrDuplicateCredit):
		return ErrInvalidState
	default:
		return &StorageError{Op: "store", Err: err}
	}
}

func notFound(err error) error {
	if errors.Is(err, db.ErrSubmissionNotFound) || errors.Is(err, db.ErrUserNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("store: %w", err)
}
