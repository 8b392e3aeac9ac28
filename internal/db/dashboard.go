package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bluecarbon/internal/models"
)

// CountSubmissions counts submissions, optionally restricted to one status.
func (d *DB) CountSubmissions(ctx context.Context, status string) (int64, error) {
	var n int64
	var err error
	if status == "" {
		err = d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n)
	} else {
		err = d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE status = $1`, status).Scan(&n)
	}
	return n, err
}

// SumActiveCredits returns the amount of all active credits issued.
func (d *DB) SumActiveCredits(ctx context.Context) (int64, error) {
	var sum int64
	err := d.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM carbon_credits WHERE status = $1`, models.CreditStatusActive,
	).Scan(&sum)
	return sum, err
}

// CountActiveUsers counts users whose status is active.
func (d *DB) CountActiveUsers(ctx context.Context) (int64, error) {
	var n int64
	err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status = $1`, models.UserStatusActive).Scan(&n)
	return n, err
}

// StatusCounts returns the number of submissions per status.
func (d *DB) StatusCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := d.Pool.Query(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// MonthCount is the number of submissions created in one calendar month.
type MonthCount struct {
	Month       time.Time // first instant of the month, UTC
	Submissions int64
	Approved    int64
}

// MonthlySubmissionCounts groups submissions created at or after since by
// UTC calendar month. Months without submissions are omitted.
func (d *DB) MonthlySubmissionCounts(ctx context.Context, since time.Time) ([]MonthCount, error) {
	query := `
		SELECT date_trunc('month', created_at AT TIME ZONE 'UTC') AS month,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $2)
		FROM submissions
		WHERE created_at >= $1
		GROUP BY month
		ORDER BY month
	`
	rows, err := d.Pool.Query(ctx, query, since, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Month, &mc.Submissions, &mc.Approved); err != nil {
			return nil, err
		}
		mc.Month = time.Date(mc.Month.Year(), mc.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

// MapRow is the subset of a submission plotted on the dashboard map.
type MapRow struct {
	ID               uuid.UUID
	Lat              float64
	Lng              float64
	Address          string
	Type             string
	Status           string
	EstimatedCredits int64
	CreatedAt        time.Time
}

// MapRows returns located submissions, optionally restricted to one status.
// Submissions at exactly (0, 0) are treated as unlocated.
func (d *DB) MapRows(ctx context.Context, status string) ([]MapRow, error) {
	query := `
		SELECT id, lat, lng, address, type, status, estimated_credits, created_at
		FROM submissions
		WHERE NOT (lat = 0 AND lng = 0)
	`
	var args []any
	if status != "" {
		query += ` AND status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []MapRow{}
	for rows.Next() {
		var r MapRow
		if err := rows.Scan(&r.ID, &r.Lat, &r.Lng, &r.Address, &r.Type, &r.Status, &r.EstimatedCredits, &r.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, r)
	}
	return points, rows.Err()
}

// RecentSubmissions returns the newest submissions.
func (d *DB) RecentSubmissions(ctx context.Context, limit int) ([]models.Submission, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanSubmissions(rows)
}
