package submissions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bluecarbon/internal/db"
	"bluecarbon/internal/models"
)

// memStore is an in-memory Store that mirrors the database semantics the
// service relies on.
type memStore struct {
	mu          sync.Mutex
	subs        map[uuid.UUID]*models.Submission
	users       map[string]*models.User
	credits     []models.CarbonCredit
	verifyAfter map[uuid.UUID]time.Duration
	createErr   error

	// recordErr fails the approval after the ledger call succeeded.
	recordErr error
}

func newMemStore() *memStore {
	return &memStore{
		subs:        map[uuid.UUID]*models.Submission{},
		users:       map[string]*models.User{},
		verifyAfter: map[uuid.UUID]time.Duration{},
	}
}

func (m *memStore) CreateSubmission(_ context.Context, s *models.Submission, verifyAfter time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.subs[s.ID] = &cp
	m.verifyAfter[s.ID] = verifyAfter
	return nil
}

func (m *memStore) GetSubmissionByID(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, db.ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSubmissions(_ context.Context, f models.SubmissionFilter, limit, offset int) ([]models.Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Submission
	for _, s := range m.subs {
		if (f.UserID == "" || s.UserID == f.UserID) && (f.Status == "" || s.Status == f.Status) && (f.Type == "" || s.Type == f.Type) {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []models.Submission{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

func (m *memStore) SetLocationOnChain(_ context.Context, id uuid.UUID, loc *models.LocationOnChain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return db.ErrSubmissionNotFound
	}
	s.LocationOnChain = loc
	return nil
}

func (m *memStore) ApproveSubmission(ctx context.Context, id uuid.UUID, issue db.IssueFunc) (*models.Submission, *models.CarbonCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, nil, db.ErrSubmissionNotFound
	}
	if !s.IsPending() {
		return s, nil, db.ErrSubmissionNotPending
	}
	owner, ok := m.users[s.UserID]
	if !ok {
		return s, nil, db.ErrUserNotFound
	}
	receipt, err := issue(ctx, s, owner)
	if err != nil {
		return s, nil, err
	}
	if m.recordErr != nil {
		return s, nil, m.recordErr
	}
	s.Status = models.StatusApproved
	s.BlockchainTx = receipt
	credit := models.CarbonCredit{
		ID:           uuid.New(),
		UserID:       s.UserID,
		SubmissionID: s.ID,
		Amount:       s.EstimatedCredits,
		Type:         s.Type,
		Status:       models.CreditStatusActive,
		BlockchainTx: receipt.Hash,
		CreatedAt:    time.Now(),
	}
	m.credits = append(m.credits, credit)
	owner.TotalCredits += credit.Amount
	owner.VerifiedSubmissions++
	cp := *s
	return &cp, &credit, nil
}

func (m *memStore) RejectSubmission(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return db.ErrSubmissionNotFound
	}
	if s.IsApproved() {
		return db.ErrSubmissionApproved
	}
	s.Status = models.StatusRejected
	s.RejectionReason = &reason
	return nil
}

func (m *memStore) EnsureUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		m.users[id] = &models.User{ID: id, Status: models.UserStatusActive}
	}
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[user.ID]
	if !ok {
		u = &models.User{ID: user.ID, Status: models.UserStatusActive}
		m.users[user.ID] = u
	}
	if user.Name != "" {
		u.Name = user.Name
	}
	if user.Email != "" {
		u.Email = user.Email
	}
	*user = *u
	return nil
}

func (m *memStore) SetWalletAddress(_ context.Context, id, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = &models.User{ID: id, Status: models.UserStatusActive}
		m.users[id] = u
	}
	u.WalletAddress = address
	return nil
}

func (m *memStore) ListUsers(_ context.Context, status string, limit, offset int) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.User
	for _, u := range m.users {
		if status == "" || u.Status == status {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []models.User{}, total, nil
	}
	return all[offset:min(offset+limit, len(all))], total, nil
}

func (m *memStore) ListCreditsByUser(_ context.Context, userID string, limit, offset int) ([]models.CarbonCredit, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.CarbonCredit
	for _, c := range m.credits {
		if c.UserID == userID {
			list = append(list, c)
		}
	}
	total := int64(len(list))
	if offset >= len(list) {
		return []models.CarbonCredit{}, total, nil
	}
	return list[offset:min(offset+limit, len(list))], total, nil
}

func (m *memStore) SumActiveCreditsByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, c := range m.credits {
		if c.UserID == userID && c.Status == models.CreditStatusActive {
			sum += c.Amount
		}
	}
	return sum, nil
}

func (m *memStore) creditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.credits)
}

type fakeLedger struct {
	mu          sync.Mutex
	issueErr    error
	locationErr error
	issued      []int64
}

func (f *fakeLedger) IssueCredits(_ context.Context, wallet string, amount int64, _ uuid.UUID) (*models.LedgerTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issued = append(f.issued, amount)
	return &models.LedgerTx{Hash: "0xabc", BlockNumber: 42, GasUsed: 21000}, nil
}

func (f *fakeLedger) RecordLocation(_ context.Context, _ uuid.UUID, lat, lng float64) (*models.LocationOnChain, error) {
	if f.locationErr != nil {
		return nil, f.locationErr
	}
	return &models.LocationOnChain{TxHash: "0xloc", BlockNumber: 7, LatE7: int64(lat * 1e7), LngE7: int64(lng * 1e7)}, nil
}

func (f *fakeLedger) issueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issued)
}

type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeScheduler) Schedule(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
}

type fakeNotifier struct {
	mu       sync.Mutex
	approved []uuid.UUID
	rejected []string
}

func (f *fakeNotifier) NotifySubmissionApproved(sub *models.Submission, _ *models.User, _ *models.CarbonCredit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, sub.ID)
}

func (f *fakeNotifier) NotifySubmissionRejected(_ *models.Submission, _ *models.User, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, reason)
}

// failingObjects fails the nth Put and records deletes.
type failingObjects struct {
	mu      sync.Mutex
	failOn  int
	puts    int
	deleted []string
}

func (f *failingObjects) Put(_ context.Context, path string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.puts == f.failOn {
		return "", errors.New("bucket unavailable")
	}
	return "https://storage.test/" + path, nil
}

func (f *failingObjects) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return nil
}
