package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	UserRegistered         Type = "user_registered"
	LoginSucceeded         Type = "login_succeeded"
	TokenRefreshed         Type = "token_refreshed"
	LoggedOut              Type = "logged_out"
	PasswordResetRequested Type = "password_reset_requested"
	OTPVerified            Type = "otp_verified"
	PasswordReset          Type = "password_reset"
	PasswordChanged        Type = "password_changed"
	StatusChanged          Type = "status_changed"
	RoleChanged            Type = "role_changed"
)

// AuthEvent is a security-relevant change to a user's credentials. It never
// carries secrets.
type AuthEvent struct {
	Type       Type              `json:"type"`
	UserID     uuid.UUID         `json:"user_id"`
	Email      string            `json:"email,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func New(t Type, userID uuid.UUID, email string) AuthEvent {
	return AuthEvent{
		Type:       t,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt AuthEvent) error
}
