package models

import (
	"strings"
	"time"
)

// User status constants
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// User is a mobile app contributor. ID is the Firebase uid.
type User struct {
	ID                  string    `json:"userId"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	WalletAddress       string    `json:"walletAddress"`
	TotalCredits        int64     `json:"totalCredits"`
	TotalSubmissions    int64     `json:"totalSubmissions"` // counted, not stored
	VerifiedSubmissions int64     `json:"verifiedSubmissions"`
	Status              string    `json:"status"`
	JoinDate            time.Time `json:"joinDate"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// HasWallet returns true if a wallet address is set.
func (u *User) HasWallet() bool {
	return strings.TrimSpace(u.WalletAddress) != ""
}

// IsActive returns true if the user is active.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// DisplayName returns the name, falling back to "Unknown".
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "Unknown"
	}
	return u.Name
}
