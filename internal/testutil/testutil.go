// Package testutil provides test utilities and helpers.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"bluecarbon/internal/db"
)

// TestDB creates a test database connection and returns a cleanup function.
// The test is skipped unless TEST_DATABASE_URL is set.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanupTestData(ctx, database.Pool)
	cleanup := func() {
		cleanupTestData(ctx, database.Pool)
		database.Close()
	}

	return database, cleanup
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, pool *pgxpool.Pool) {
	// Delete in order to respect foreign keys
	pool.Exec(ctx, "DELETE FROM verification_events")
	pool.Exec(ctx, "DELETE FROM carbon_credits")
	pool.Exec(ctx, "DELETE FROM submissions")
	pool.Exec(ctx, "DELETE FROM users")
}

// CreateTestUser creates a contributor with an optional wallet address.
func CreateTestUser(t *testing.T, database *db.DB, id, wallet string) {
	t.Helper()
	ctx := context.Background()

	if err := database.EnsureUser(ctx, id); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	if wallet == "" {
		return
	}
	if err := database.SetWalletAddress(ctx, id, wallet); err != nil {
		t.Fatalf("failed to set test wallet: %v", err)
	}
}

// PNG encodes a w×h gradient image.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 120, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
