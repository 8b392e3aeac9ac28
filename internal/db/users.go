package db

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"bluecarbon/internal/models"
)

// userColumns selects a user with the submission count computed on the fly.
const userColumns = `u.id, u.name, u.email, COALESCE(u.wallet_address, ''), u.total_credits,
	(SELECT COUNT(*) FROM submissions s WHERE s.user_id = u.id),
	u.verified_submissions, u.status, u.join_date, u.updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.WalletAddress,
		&u.TotalCredits,
		&u.TotalSubmissions,
		&u.VerifiedSubmissions,
		&u.Status,
		&u.JoinDate,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func getUser(ctx context.Context, q querier, id string, lock bool) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	if lock {
		query += ` FOR UPDATE OF u`
	}
	return scanUser(q.QueryRow(ctx, query, id))
}

// GetUserByID retrieves a user by their id.
func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, d.Pool, id, false)
}

// EnsureUser creates a bare user row for id if none exists.
func (d *DB) EnsureUser(ctx context.Context, id string) error {
	_, err := d.Pool.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

// UpsertUser creates a user or updates their name and email. Empty fields
// leave the stored value untouched.
func (d *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			updated_at = NOW()
		RETURNING name, email, COALESCE(wallet_address, ''), total_credits, verified_submissions, status, join_date, updated_at
	`

	return d.Pool.QueryRow(ctx, query, user.ID, user.Name, user.Email).Scan(
		&user.Name,
		&user.Email,
		&user.WalletAddress,
		&user.TotalCredits,
		&user.VerifiedSubmissions,
		&user.Status,
		&user.JoinDate,
		&user.UpdatedAt,
	)
}

// SetWalletAddress stores the wallet that receives issued credits, creating
// the user if needed.
func (d *DB) SetWalletAddress(ctx context.Context, id, address string) error {
	query := `
		INSERT INTO users (id, wallet_address)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET wallet_address = EXCLUDED.wallet_address, updated_at = NOW()
	`
	_, err := d.Pool.Exec(ctx, query, id, nullIfEmpty(address))
	return err
}

// ListUsers returns a page of users ordered by join date, newest first.
// An empty status lists everyone.
func (d *DB) ListUsers(ctx context.Context, status string, limit, offset int) ([]models.User, int64, error) {
	where := ""
	var args []any
	if status != "" {
		where = ` WHERE u.status = $1`
		args = append(args, status)
	}

	var total int64
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + userColumns + ` FROM users u` + where +
		` ORDER BY u.join_date DESC, u.id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := d.Pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
