package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bluecarbon/internal/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// submissionColumns is the standard column list for submission queries.
const submissionColumns = `id, user_id, type, lat, lng, address, area, description, images,
	estimated_credits, status, device_platform, device_version, device_name,
	ai_result, ai_confidence, ai_processing_time, ai_timestamp, ai_fallback, ai_source,
	rejection_reason, tx_hash, tx_block_number, tx_gas_used,
	location_tx_hash, location_block, location_lat_e7, location_lng_e7,
	created_at, updated_at`

// scanSubmission scans a row into a Submission struct.
func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var (
		s         models.Submission
		images    []byte
		txHash    *string
		txBlock   *int64
		txGas     *int64
		locTxHash *string
		locBlock  *int64
		locLatE7  *int64
		locLngE7  *int64
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Type,
		&s.Location.Lat,
		&s.Location.Lng,
		&s.Location.Address,
		&s.Area,
		&s.Description,
		&images,
		&s.EstimatedCredits,
		&s.Status,
		&s.DeviceInfo.Platform,
		&s.DeviceInfo.Version,
		&s.DeviceInfo.Device,
		&s.AIVerification.Result,
		&s.AIVerification.Confidence,
		&s.AIVerification.ProcessingTime,
		&s.AIVerification.Timestamp,
		&s.AIVerification.Fallback,
		&s.AIVerification.Source,
		&s.RejectionReason,
		&txHash,
		&txBlock,
		&txGas,
		&locTxHash,
		&locBlock,
		&locLatE7,
		&locLngE7,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &s.Images); err != nil {
			return nil, fmt.Errorf("failed to decode images: %w", err)
		}
	}
	if s.Images == nil {
		s.Images = []models.Image{}
	}

	if txHash != nil {
		s.BlockchainTx = &models.LedgerTx{
			Hash:        *txHash,
			BlockNumber: uint64(derefInt64(txBlock)),
			GasUsed:     uint64(derefInt64(txGas)),
		}
	}
	if locTxHash != nil {
		s.LocationOnChain = &models.LocationOnChain{
			TxHash:      *locTxHash,
			BlockNumber: uint64(derefInt64(locBlock)),
			LatE7:       derefInt64(locLatE7),
			LngE7:       derefInt64(locLngE7),
		}
	}

	return &s, nil
}

// scanSubmissions scans multiple rows into a slice of Submissions.
func scanSubmissions(rows pgx.Rows) ([]models.Submission, error) {
	defer rows.Close()

	submissions := []models.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *s)
	}

	return submissions, rows.Err()
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// CreateSubmission inserts a new pending submission. When verifyAfter is
// non-zero the record becomes due for AI verification after that delay.
func (d *DB) CreateSubmission(ctx context.Context, s *models.Submission, verifyAfter time.Duration) error {
	if s.Images == nil {
		s.Images = []models.Image{}
	}
	images, err := json.Marshal(s.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	query := `
		INSERT INTO submissions (id, user_id, type, lat, lng, address, area, description, images,
			estimated_credits, status, device_platform, device_version, device_name,
			ai_result, verify_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			CASE WHEN $16::float8 > 0 THEN NOW() + $16::float8 * INTERVAL '1 second' END)
		RETURNING created_at, updated_at
	`

	var delay float64
	if len(s.Images) > 0 {
		delay = verifyAfter.Seconds()
		if delay <= 0 {
			delay = 0.001
		}
	}

	err = d.Pool.QueryRow(ctx, query,
		s.ID,
		s.UserID,
		s.Type,
		s.Location.Lat,
		s.Location.Lng,
		s.Location.Address,
		s.Area,
		s.Description,
		images,
		s.EstimatedCredits,
		models.StatusPending,
		s.DeviceInfo.Platform,
		s.DeviceInfo.Version,
		s.DeviceInfo.Device,
		models.AIResultPending,
		delay,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}

	s.Status = models.StatusPending
	s.AIVerification = models.AIVerification{Result: models.AIResultPending}
	return nil
}

// GetSubmissionByID retrieves a submission by its ID.
func (d *DB) GetSubmissionByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	return scanSubmission(d.Pool.QueryRow(ctx, query, id))
}

// submissionWhere builds the WHERE clause for a filter. Arguments start at $1.
func submissionWhere(f models.SubmissionFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	add("user_id", f.UserID)
	add("status", f.Status)
	add("type", f.Type)

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListSubmissions returns a page of submissions matching the filter, newest
// first, and the total number of matching rows.
func (d *DB) ListSubmissions(ctx context.Context, f models.SubmissionFilter, limit, offset int) ([]models.Submission, int64, error) {
	where, args := submissionWhere(f)

	var total int64
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + submissionColumns + ` FROM submissions` + where +
		` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := d.Pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}

	submissions, err := scanSubmissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

// SetLocationOnChain stores the receipt of an on-chain location write.
func (d *DB) SetLocationOnChain(ctx context.Context, id uuid.UUID, loc *models.LocationOnChain) error {
	query := `
		UPDATE submissions
		SET location_tx_hash = $2, location_block = $3, location_lat_e7 = $4, location_lng_e7 = $5, updated_at = NOW()
		WHERE id = $1
	`
	result, err := d.Pool.Exec(ctx, query, id, loc.TxHash, int64(loc.BlockNumber), loc.LatE7, loc.LngE7)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// RejectSubmission marks a submission rejected with a reason. Rejecting an
// already rejected submission overwrites the reason; approved submissions
// are never reverted.
func (d *DB) RejectSubmission(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE submissions
		SET status = $2, rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $2)
	`
	result, err := d.Pool.Exec(ctx, query, id, models.StatusRejected, reason, models.StatusPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = d.Pool.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSubmissionNotFound
	}
	if err != nil {
		return err
	}
	return ErrSubmissionApproved
}

// IssueFunc performs the ledger issuance for an approval. It runs while the
// submission row is locked; returning an error rolls the approval back.
type IssueFunc func(ctx context.Context, sub *models.Submission, owner *models.User) (*models.LedgerTx, error)

// ApproveSubmission approves a pending submission in one transaction: the
// submission row is locked, issue is called, and the status change, credit
// record and owner totals are written together. Concurrent approvals of the
// same submission serialize on the row lock; the loser sees a non-pending
// status and gets ErrSubmissionNotPending.
func (d *DB) ApproveSubmission(ctx context.Context, id uuid.UUID, issue IssueFunc) (*models.Submission, *models.CarbonCredit, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, err := scanSubmission(tx.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, nil, err
	}
	if !sub.IsPending() {
		return sub, nil, ErrSubmissionNotPending
	}

	owner, err := getUser(ctx, tx, sub.UserID, true)
	if err != nil {
		return sub, nil, err
	}

	receipt, err := issue(ctx, sub, owner)
	if err != nil {
		return sub, nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE submissions
		SET status = $2, tx_hash = $3, tx_block_number = $4, tx_gas_used = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
		RETURNING updated_at
	`, id, models.StatusApproved, receipt.Hash, int64(receipt.BlockNumber), int64(receipt.GasUsed), models.StatusPending,
	).Scan(&sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sub, nil, ErrSubmissionNotPending
	}
	if err != nil {
		return sub, nil, err
	}

	credit := &models.CarbonCredit{
		ID:           uuid.New(),
		UserID:       sub.UserID,
		SubmissionID: sub.ID,
		Amount:       sub.EstimatedCredits,
		Type:         sub.Type,
		Status:       models.CreditStatusActive,
		BlockchainTx: receipt.Hash,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO carbon_credits (id, user_id, submission_id, amount, type, status, blockchain_tx)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, credit.ID, credit.UserID, credit.SubmissionID, credit.Amount, credit.Type, credit.Status, credit.BlockchainTx,
	).Scan(&credit.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sub, nil, ErrDuplicateCredit
		}
		return sub, nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET total_credits = total_credits + $2, verified_submissions = verified_submissions + 1, updated_at = NOW()
		WHERE id = $1
	`, sub.UserID, credit.Amount)
	if err != nil {
		return sub, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return sub, nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	sub.Status = models.StatusApproved
	sub.BlockchainTx = receipt
	return sub, credit, nil
}

// VerificationTask is a submission leased for AI verification.
type VerificationTask struct {
	SubmissionID uuid.UUID
	ImageURL     string
	Attempts     int
}

// ClaimDueVerifications leases up to limit submissions whose AI record is still
// pending and whose verification is due. Leased rows are pushed lease into the
// future so a crashed worker's tasks become due again.
func (d *DB) ClaimDueVerifications(ctx context.Context, lease time.Duration, limit int) ([]VerificationTask, error) {
	query := `
		WITH due AS (
			SELECT id FROM submissions
			WHERE ai_result = $1
			  AND verify_after IS NOT NULL
			  AND verify_after <= NOW()
			  AND jsonb_array_length(images) > 0
			ORDER BY verify_after
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE submissions s
		SET verify_after = NOW() + $3::float8 * INTERVAL '1 second',
			verify_attempts = s.verify_attempts + 1
		FROM due
		WHERE s.id = due.id
		RETURNING s.id, COALESCE(s.images->0->>'url', ''), s.verify_attempts
	`

	rows, err := d.Pool.Query(ctx, query, models.AIResultPending, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []VerificationTask
	for rows.Next() {
		var t VerificationTask
		if err := rows.Scan(&t.SubmissionID, &t.ImageURL, &t.Attempts); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteVerification writes the AI verdict if the record is still pending.
// Returns false when another worker already completed it.
func (d *DB) CompleteVerification(ctx context.Context, id uuid.UUID, v models.Verdict) (bool, error) {
	query := `
		UPDATE submissions
		SET ai_result = $2, ai_confidence = $3, ai_processing_time = $4, ai_timestamp = NOW(),
			ai_fallback = $5, ai_source = $6, verify_after = NULL, updated_at = NOW()
		WHERE id = $1 AND ai_result = $7
	`
	result, err := d.Pool.Exec(ctx, query, id, v.Result, v.Confidence, v.ProcessingTime, v.Fallback, v.Source, models.AIResultPending)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// RecordVerificationEvent appends a verification to the history log.
func (d *DB) RecordVerificationEvent(ctx context.Context, ev *models.VerificationEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	query := `
		INSERT INTO verification_events (id, submission_id, image_url, result, confidence, processing_time, fallback, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return d.Pool.QueryRow(ctx, query,
		ev.ID, ev.SubmissionID, ev.ImageURL, ev.Result, ev.Confidence, ev.ProcessingTime, ev.Fallback, ev.Source,
	).Scan(&ev.CreatedAt)
}

// ListVerificationEvents returns verification history, newest first.
func (d *DB) ListVerificationEvents(ctx context.Context, limit, offset int) ([]models.VerificationEvent, int64, error) {
	var total int64
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM verification_events`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := d.Pool.Query(ctx, `
		SELECT id, submission_id, image_url, result, confidence, processing_time, fallback, source, created_at
		FROM verification_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []models.VerificationEvent{}
	for rows.Next() {
		var ev models.VerificationEvent
		if err := rows.Scan(&ev.ID, &ev.SubmissionID, &ev.ImageURL, &ev.Result, &ev.Confidence,
			&ev.ProcessingTime, &ev.Fallback, &ev.Source, &ev.CreatedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}
