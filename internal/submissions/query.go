package submissions

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"bluecarbon/internal/models"
	"bluecarbon/internal/validation"
)

// Get returns one submission.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	sub, err := s.store.GetSubmissionByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return sub, nil
}

// List returns a page of submissions matching filter, newest first.
func (s *Service) List(ctx context.Context, filter models.SubmissionFilter, page, limit, defaultLimit int) ([]models.Submission, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, defaultLimit)
	subs, total, err := s.store.ListSubmissions(ctx, filter, limit, models.Offset(page, limit))
	if err != nil {
		return nil, models.Pagination{}, &StorageError{Op: "failed to list submissions", Err: err}
	}
	return subs, models.NewPagination(page, limit, total), nil
}

// Profile returns a user with the sum of their active credits as totalCredits.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	total, err := s.store.SumActiveCreditsByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "failed to sum credits", Err: err}
	}
	user.TotalCredits = total
	user.Name = user.DisplayName()
	return user, nil
}

// Credits returns a page of a user's credit records.
func (s *Service) Credits(ctx context.Context, userID string, page, limit, defaultLimit int) ([]models.CarbonCredit, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, defaultLimit)
	list, total, err := s.store.ListCreditsByUser(ctx, userID, limit, models.Offset(page, limit))
	if err != nil {
		return nil, models.Pagination{}, &StorageError{Op: "failed to list credits", Err: err}
	}
	return list, models.NewPagination(page, limit, total), nil
}

// UpdateProfile stores a user's name and email, creating the user if needed.
// Empty values keep what is stored.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (*models.User, error) {
	if !validation.ValidateUserID(userID) {
		return nil, &ValidationError{Invalid: []string{"userId"}}
	}
	email = strings.TrimSpace(email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, &ValidationError{Invalid: []string{"email"}}
	}
	user := &models.User{ID: userID, Name: strings.TrimSpace(name), Email: email}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, &StorageError{Op: "failed to update profile", Err: err}
	}
	return user, nil
}

// SetWallet stores the wallet credits are issued to.
func (s *Service) SetWallet(ctx context.Context, userID, address string) error {
	address = strings.TrimSpace(address)
	verr := &ValidationError{}
	if !validation.ValidateUserID(userID) {
		verr.Invalid = append(verr.Invalid, "userId")
	}
	if address == "" {
		verr.Missing = append(verr.Missing, "walletAddress")
	} else if !validation.ValidateWalletAddress(address) {
		verr.Invalid = append(verr.Invalid, "walletAddress")
	}
	if !verr.empty() {
		return verr
	}
	if err := s.store.SetWalletAddress(ctx, userID, address); err != nil {
		return &StorageError{Op: "failed to set wallet", Err: err}
	}
	return nil
}

// User returns one user.
func (s *Service) User(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// Users returns a page of users, optionally filtered by status.
func (s *Service) Users(ctx context.Context, status string, page, limit, defaultLimit int) ([]models.User, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, defaultLimit)
	users, total, err := s.store.ListUsers(ctx, status, limit, models.Offset(page, limit))
	if err != nil {
		return nil, models.Pagination{}, &StorageError{Op: "failed to list users", Err: err}
	}
	return users, models.NewPagination(page, limit, total), nil
}
