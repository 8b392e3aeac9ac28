package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bluecarbon/internal/db"
	"bluecarbon/internal/metrics"
	"bluecarbon/internal/models"
)

// VerificationStore leases due submissions and stores verdicts.
type VerificationStore interface {
	ClaimDueVerifications(ctx context.Context, lease time.Duration, limit int) ([]db.VerificationTask, error)
	CompleteVerification(ctx context.Context, id uuid.UUID, v models.Verdict) (bool, error)
	RecordVerificationEvent(ctx context.Context, ev *models.VerificationEvent) error
}

// Verifier produces a verdict for an image. It never fails; upstream errors
// are turned into a fallback verdict.
type Verifier interface {
	Verify(ctx context.Context, imageURL, submissionID string) models.Verdict
}

// VerificationWorker verifies the first image of new submissions in the
// background. Work is leased from the database, so a verdict that was never
// written is retried once its lease expires.
type VerificationWorker struct {
	store       VerificationStore
	verifier    Verifier
	interval    time.Duration
	lease       time.Duration
	batchSize   int
	concurrency int
	wake        chan struct{}
	logger      *zap.Logger
}

// NewVerificationWorker creates a new verification worker.
func NewVerificationWorker(store VerificationStore, verifier Verifier, interval, lease time.Duration, batchSize int, logger *zap.Logger) *VerificationWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &VerificationWorker{
		store:       store,
		verifier:    verifier,
		interval:    interval,
		lease:       lease,
		batchSize:   batchSize,
		concurrency: 4,
		wake:        make(chan struct{}, 1),
		logger:      logger,
	}
}

// Nudge asks the worker to poll now instead of waiting for the next tick.
func (w *VerificationWorker) Nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Schedule nudges the worker once d has elapsed.
func (w *VerificationWorker) Schedule(d time.Duration) {
	time.AfterFunc(d, w.Nudge)
}

// Start begins the background verification loop. It returns when ctx is done.
func (w *VerificationWorker) Start(ctx context.Context) {
	w.logger.Info("verification worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("lease", w.lease),
		zap.Int("batch_size", w.batchSize),
	)

	// Run immediately on start
	w.drain(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("verification worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// drain processes batches until no task is due.
func (w *VerificationWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.RunOnce(ctx)
		if err != nil || n < w.batchSize {
			return
		}
	}
}

// RunOnce leases one batch of due submissions and verifies them. It returns
// the number of tasks leased.
func (w *VerificationWorker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.store.ClaimDueVerifications(ctx, w.lease, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to claim verifications", zap.Error(err))
		}
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	w.logger.Debug("verifying submissions", zap.Int("count", len(tasks)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			w.process(gctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return len(tasks), nil
}

func (w *VerificationWorker) process(ctx context.Context, task db.VerificationTask) {
	log := w.logger.With(
		zap.String("submission_id", task.SubmissionID.String()),
		zap.Int("attempt", task.Attempts),
	)

	start := time.Now()
	verdict := w.verifier.Verify(ctx, task.ImageURL, task.SubmissionID.String())
	if ctx.Err() != nil {
		// Leave the lease to expire; the task is retried later.
		return
	}
	metrics.RecordVerification(verdict, time.Since(start))

	applied, err := w.store.CompleteVerification(ctx, task.SubmissionID, verdict)
	if err != nil {
		log.Error("failed to store verification result", zap.Error(err))
		return
	}
	if !applied {
		log.Debug("verification already completed")
		return
	}

	id := task.SubmissionID
	ev := &models.VerificationEvent{
		SubmissionID:   &id,
		ImageURL:       task.ImageURL,
		Result:         verdict.Result,
		Confidence:     verdict.Confidence,
		ProcessingTime: verdict.ProcessingTime,
		Fallback:       verdict.Fallback,
		Source:         verdict.Source,
	}
	if err := w.store.RecordVerificationEvent(ctx, ev); err != nil {
		log.Warn("failed to record verification event", zap.Error(err))
	}

	log.Info("submission verified",
		zap.String("result", verdict.Result),
		zap.Float64("confidence", verdict.Confidence),
		zap.Bool("fallback", verdict.Fallback),
	)
}
