// Package dashboard computes the read-only aggregates shown on the admin dashboard.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"bluecarbon/internal/db"
	"bluecarbon/internal/models"
)

const (
	DefaultPeriod        = 12
	MaxPeriod            = 60
	DefaultActivityLimit = 10
	MaxActivityLimit     = 100
	recentCreditsLimit   = 5
)

// Store is the read side of the document store used by the dashboard.
type Store interface {
	CountSubmissions(ctx context.Context, status string) (int64, error)
	SumActiveCredits(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context) (int64, error)
	MonthlySubmissionCounts(ctx context.Context, since time.Time) ([]db.MonthCount, error)
	MapRows(ctx context.Context, status string) ([]db.MapRow, error)
	RecentSubmissions(ctx context.Context, limit int) ([]models.Submission, error)
	RecentCredits(ctx context.Context, limit int) ([]models.CarbonCredit, error)
}

// Service answers dashboard queries.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a dashboard service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Stats returns the headline counters. The four queries run concurrently.
func (s *Service) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalSubmissions, err = s.store.CountSubmissions(ctx, "")
		return err
	})
	g.Go(func() (err error) {
		stats.ApprovedSubmissions, err = s.store.CountSubmissions(ctx, models.StatusApproved)
		return err
	})
	g.Go(func() (err error) {
		stats.CreditsIssued, err = s.store.SumActiveCredits(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveUsers, err = s.store.CountActiveUsers(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}
	return &stats, nil
}

// Chart returns one point per calendar month for the last period months,
// oldest first, including months without submissions.
func (s *Service) Chart(ctx context.Context, period int) ([]models.ChartPoint, error) {
	if period < 1 {
		period = DefaultPeriod
	}
	if period > MaxPeriod {
		period = MaxPeriod
	}

	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(period - 1), 0)

	counts, err := s.store.MonthlySubmissionCounts(ctx, first)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart data: %w", err)
	}
	byMonth := make(map[time.Time]db.MonthCount, len(counts))
	for _, c := range counts {
		byMonth[c.Month] = c
	}

	points := make([]models.ChartPoint, 0, period)
	for i := 0; i < period; i++ {
		month := first.AddDate(0, i, 0)
		c := byMonth[month]
		points = append(points, models.ChartPoint{
			Name:        month.Format("Jan"),
			Month:       month.Format("2006-01"),
			Submissions: c.Submissions,
			Verified:    c.Approved,
		})
	}
	return points, nil
}

// Map returns the located submissions. status "all" or "" applies no filter.
func (s *Service) Map(ctx context.Context, status string) ([]models.MapPoint, error) {
	if status == "all" {
		status = ""
	}
	rows, err := s.store.MapRows(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to load map data: %w", err)
	}

	points := make([]models.MapPoint, 0, len(rows))
	for _, r := range rows {
		address := r.Address
		if address == "" {
			address = "Unknown"
		}
		points = append(points, models.MapPoint{
			ID:       r.ID,
			Lat:      r.Lat,
			Lng:      r.Lng,
			Title:    fmt.Sprintf("%s Plantation - %s", r.Type, address),
			Type:     r.Type,
			Verified: r.Status == models.StatusApproved,
			Date:     r.CreatedAt.UTC().Format("2006-01-02"),
			Credits:  r.EstimatedCredits,
			Status:   r.Status,
		})
	}
	return points, nil
}

// Activity merges recent submissions and credit issuances, newest first.
func (s *Service) Activity(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit < 1 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	var subs []models.Submission
	var credits []models.CarbonCredit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subs, err = s.store.RecentSubmissions(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		credits, err = s.store.RecentCredits(gctx, recentCreditsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}

	now := s.now()
	feed := make([]models.Activity, 0, len(subs)+len(credits))
	for _, sub := range subs {
		feed = append(feed, models.Activity{
			ID:        sub.ID,
			Icon:      "🌱",
			Text:      fmt.Sprintf("New %s plantation submitted by %s", sub.Type, sub.UserID),
			Time:      TimeAgo(now, sub.CreatedAt),
			Timestamp: sub.CreatedAt,
			Type:      models.ActivitySubmission,
		})
	}
	for _, c := range credits {
		feed = append(feed, models.Activity{
			ID:        c.ID,
			Icon:      "💰",
			Text:      fmt.Sprintf("%d carbon credits issued to user", c.Amount),
			Time:      TimeAgo(now, c.CreatedAt),
			Timestamp: c.CreatedAt,
			Type:      models.ActivityCreditIssuance,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

// TimeAgo renders the age of t relative to now, e.g. "5 minutes ago".
func TimeAgo(now, t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	secs := int64(now.Sub(t).Seconds())
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%d seconds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%d minutes ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%d hours ago", secs/3600)
	case secs < 30*86400:
		return fmt.Sprintf("%d days ago", secs/86400)
	default:
		return fmt.Sprintf("%d months ago", secs/(30*86400))
	}
}
