package db

import "errors"

// Domain-level database error sentinels.
var (
	// Submission errors
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrSubmissionNotPending = errors.New("submission is not pending")
	ErrSubmissionApproved   = errors.New("submission is already approved")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Credit errors
	ErrDuplicateCredit = errors.New("credits already issued for this submission")
)
