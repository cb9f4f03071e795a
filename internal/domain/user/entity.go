package user

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMember  Role = "member"
	RoleCoach   Role = "coach"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

type PackageType string

const (
	PackageBasic    PackageType = "basic"
	PackageStandard PackageType = "standard"
	PackagePremium  PackageType = "premium"
)

// DurationMonths is the membership length bought by a package.
func (p PackageType) DurationMonths() int {
	switch p {
	case PackageStandard:
		return 3
	case PackagePremium:
		return 12
	default:
		return 1
	}
}

// MembershipEnd returns the end of a membership starting at start.
func (p PackageType) MembershipEnd(start time.Time) time.Time {
	return start.AddDate(0, p.DurationMonths(), 0)
}

type User struct {
	ID                     uuid.UUID
	Username               string
	Email                  string
	PasswordHashed         string
	FirstName              string
	LastName               string
	PhoneNumber            string
	NICNumber              *string
	Address                *string
	HeightCM               *float64
	WeightKG               *float64
	PackageType            PackageType
	Role                   Role
	Status                 Status
	MembershipStartDate    time.Time
	MembershipEndDate      *time.Time
	AssignedCoachID        *uuid.UUID
	RefreshToken           *string
	PasswordResetTokenHash *string
	PasswordResetExpiresAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// HasRefreshToken compares the presented token with the persisted one in
// constant time. A user without a persisted token matches nothing.
func (u *User) HasRefreshToken(token string) bool {
	if u.RefreshToken == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(token)) == 1
}
