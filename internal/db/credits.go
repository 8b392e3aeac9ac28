package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"bluecarbon/internal/models"
)

const creditColumns = `id, user_id, submission_id, amount, type, status, blockchain_tx, created_at`

func scanCredits(rows pgx.Rows) ([]models.CarbonCredit, error) {
	defer rows.Close()

	credits := []models.CarbonCredit{}
	for rows.Next() {
		var c models.CarbonCredit
		if err := rows.Scan(&c.ID, &c.UserID, &c.SubmissionID, &c.Amount, &c.Type, &c.Status, &c.BlockchainTx, &c.CreatedAt); err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// ListCreditsByUser returns a page of a user's credit records, newest first.
func (d *DB) ListCreditsByUser(ctx context.Context, userID string, limit, offset int) ([]models.CarbonCredit, int64, error) {
	var total int64
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM carbon_credits WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := d.Pool.Query(ctx, `
		SELECT `+creditColumns+` FROM carbon_credits
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	credits, err := scanCredits(rows)
	if err != nil {
		return nil, 0, err
	}
	return credits, total, nil
}

// SumActiveCreditsByUser returns the total amount of a user's active credits.
func (d *DB) SumActiveCreditsByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := d.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM carbon_credits WHERE user_id = $1 AND status = $2`,
		userID, models.CreditStatusActive,
	).Scan(&sum)
	return sum, err
}

// RecentCredits returns the most recent credit issuances.
func (d *DB) RecentCredits(ctx context.Context, limit int) ([]models.CarbonCredit, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+creditColumns+` FROM carbon_credits ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanCredits(rows)
}
