package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/boomsapp/boomsd/internal/core/fees"
)

// User lifecycle errors.
var (
	ErrUserNotFound  = errors.New("USER_NOT_FOUND: no such user")
	ErrUserSuspended = errors.New("USER_SUSPENDED: account is suspended")
	ErrUserBanned    = errors.New("USER_BANNED: account is banned")
)

// Status is a user's lifecycle state. Exactly one applies at a time.
type Status string

const (
	StatusActive    Status = "active"
	StatusReview    Status = "review"
	StatusLimited   Status = "limited"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusReview, StatusLimited, StatusSuspended, StatusBanned:
		return true
	}
	return false
}

// User is a platform account.
type User struct {
	ID           int64
	Phone        string
	Email        string
	PasswordHash string
	FullName     string

	Status         Status
	SuspendedUntil *time.Time
	BannedAt       *time.Time
	IsAdmin        bool

	Tier fees.Tier

	CreatedAt time.Time
}

// CanTransact verifies the user may initiate ledger-mutating pipelines.
// Suspended and banned users may only reach the public complaint channel.
func (u *User) CanTransact(now time.Time) error {
	switch u.Status {
	case StatusBanned:
		return ErrUserBanned
	case StatusSuspended:
		if u.SuspendedUntil != nil && now.After(*u.SuspendedUntil) {
			// Suspension lapsed; the status row is refreshed by the
			// caller's transaction.
			return nil
		}
		return ErrUserSuspended
	case StatusActive, StatusReview, StatusLimited:
		return nil
	}
	return fmt.Errorf("unknown user status %q", u.Status)
}
