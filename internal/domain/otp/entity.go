package otp

import (
	"time"

	"github.com/google/uuid"
)

// RetentionWindow bounds how long a code may authorise anything.
const RetentionWindow = 10 * time.Minute

type OTP struct {
	ID        uuid.UUID
	Email     string
	Code      string
	Verified  bool
	CreatedAt time.Time
}

// Cutoff is the oldest creation time still inside the retention window.
func Cutoff(now time.Time) time.Time {
	return now.Add(-RetentionWindow)
}
