package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon/internal/db"
	"bluecarbon/internal/models"
)

type fakeStore struct {
	total, approved, credits, users int64
	countErr                        error
	monthly                         []db.MonthCount
	since                           time.Time
	mapRows                         []db.MapRow
	mapStatus                       string
	subs                            []models.Submission
	recentCredits                   []models.CarbonCredit
}

func (f *fakeStore) CountSubmissions(_ context.Context, status string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if status == models.StatusApproved {
		return f.approved, nil
	}
	return f.total, nil
}

func (f *fakeStore) SumActiveCredits(context.Context) (int64, error) { return f.credits, nil }
func (f *fakeStore) CountActiveUsers(context.Context) (int64, error) { return f.users, nil }

func (f *fakeStore) MonthlySubmissionCounts(_ context.Context, since time.Time) ([]db.MonthCount, error) {
	f.since = since
	return f.monthly, nil
}

func (f *fakeStore) MapRows(_ context.Context, status string) ([]db.MapRow, error) {
	f.mapStatus = status
	return f.mapRows, nil
}

func (f *fakeStore) RecentSubmissions(_ context.Context, limit int) ([]models.Submission, error) {
	if len(f.subs) > limit {
		return f.subs[:limit], nil
	}
	return f.subs, nil
}

func (f *fakeStore) RecentCredits(_ context.Context, limit int) ([]models.CarbonCredit, error) {
	if len(f.recentCredits) > limit {
		return f.recentCredits[:limit], nil
	}
	return f.recentCredits, nil
}

func fixedNow(s *Service, now time.Time) {
	s.now = func() time.Time { return now }
}

func TestStats(t *testing.T) {
	svc := NewService(&fakeStore{total: 9, approved: 4, credits: 600, users: 3})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{TotalSubmissions: 9, ApprovedSubmissions: 4, CreditsIssued: 600, ActiveUsers: 3}, *stats)

	svc = NewService(&fakeStore{countErr: errors.New("down")})
	_, err = svc.Stats(context.Background())
	require.Error(t, err)
}

func TestChart_FillsEmptyMonths(t *testing.T) {
	march := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{monthly: []db.MonthCount{{Month: march, Submissions: 5, Approved: 2}}}
	svc := NewService(store)
	fixedNow(svc, time.Date(2026, time.May, 17, 9, 0, 0, 0, time.UTC))

	points, err := svc.Chart(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), store.since)
	require.Len(t, points, 4)
	assert.Equal(t, []string{"Feb", "Mar", "Apr", "May"}, []string{points[0].Name, points[1].Name, points[2].Name, points[3].Name})
	assert.Equal(t, "2026-03", points[1].Month)
	assert.Equal(t, int64(5), points[1].Submissions)
	assert.Equal(t, int64(2), points[1].Verified)
	assert.Zero(t, points[0].Submissions)
}

func TestChart_PeriodBounds(t *testing.T) {
	svc := NewService(&fakeStore{})

	points, err := svc.Chart(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, points, DefaultPeriod)

	points, err = svc.Chart(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, points, MaxPeriod)
}

func TestMap(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{mapRows: []db.MapRow{{
		ID: id, Lat: -8.5, Lng: 115.2, Type: models.TypeMangrove, Status: models.StatusApproved,
		EstimatedCredits: 150, CreatedAt: time.Date(2026, time.April, 2, 23, 0, 0, 0, time.UTC),
	}}}
	svc := NewService(store)

	points, err := svc.Map(context.Background(), "all")
	require.NoError(t, err)
	assert.Empty(t, store.mapStatus)
	require.Len(t, points, 1)
	assert.Equal(t, models.MapPoint{
		ID: id, Lat: -8.5, Lng: 115.2, Title: "mangrove Plantation - Unknown", Type: models.TypeMangrove,
		Verified: true, Date: "2026-04-02", Credits: 150, Status: models.StatusApproved,
	}, points[0])

	_, err = svc.Map(context.Background(), models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, store.mapStatus)
}

func TestActivity_MergesNewestFirst(t *testing.T) {
	now := time.Date(2026, time.May, 17, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		subs: []models.Submission{
			{ID: uuid.New(), UserID: "u1", Type: "coral", CreatedAt: now.Add(-30 * time.Second)},
			{ID: uuid.New(), UserID: "u2", Type: "seagrass", CreatedAt: now.Add(-3 * time.Hour)},
		},
		recentCredits: []models.CarbonCredit{
			{ID: uuid.New(), Amount: 150, CreatedAt: now.Add(-10 * time.Minute)},
		},
	}
	svc := NewService(store)
	fixedNow(svc, now)

	feed, err := svc.Activity(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, feed, 3)

	assert.Equal(t, "New coral plantation submitted by u1", feed[0].Text)
	assert.Equal(t, "30 seconds ago", feed[0].Time)
	assert.Equal(t, "🌱", feed[0].Icon)
	assert.Equal(t, "150 carbon credits issued to user", feed[1].Text)
	assert.Equal(t, models.ActivityCreditIssuance, feed[1].Type)
	assert.Equal(t, "10 minutes ago", feed[1].Time)
	assert.Equal(t, "3 hours ago", feed[2].Time)

	feed, err = svc.Activity(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, feed, 2)
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, time.May, 17, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{5 * time.Second, "5 seconds ago"},
		{59 * time.Second, "59 seconds ago"},
		{60 * time.Second, "1 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{65 * 24 * time.Hour, "2 months ago"},
	}
	for _, tt := range tests {
		if got := TimeAgo(now, now.Add(-tt.ago)); got != tt.want {
			t.Errorf("TimeAgo(%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := TimeAgo(now, time.Time{}); got != "Unknown" {
		t.Errorf("TimeAgo(zero) = %q, want Unknown", got)
	}
}
