package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks

// Repository is the credential store.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)

	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateStatus(ctx context.Context, userID uuid.UUID, status Status) error
	UpdateRole(ctx context.Context, userID uuid.UUID, role Role) error

	// UpdateRefreshToken overwrites the persisted refresh token; nil clears it.
	UpdateRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is
	// still the persisted value, otherwise ErrRefreshTokenMismatch.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string) error

	SetPasswordReset(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
}
