package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrOTPNotFound = errors.New("otp not found")

// Repository is the OTP store. Implementations must only return records
// created after notBefore from FindLatest.
type Repository interface {
	Create(ctx context.Context, otp *OTP) error
	// FindLatest returns the most recently created record for (email, code)
	// with the given verified flag, or ErrOTPNotFound.
	FindLatest(ctx context.Context, email, code string, verified bool, notBefore time.Time) (*OTP, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	DeleteByEmail(ctx context.Context, email string) (int64, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sender delivers a code to its owner out of band.
type Sender interface {
	SendOTP(ctx context.Context, email, code string) error
}
