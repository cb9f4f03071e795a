package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountNotActive        = errors.New("account is not active")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrUnauthorized            = errors.New("unauthorized access")
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidCoach      = errors.New("assigned coach must be a user with the coach role")
	ErrInvalidStatus     = errors.New("invalid account status")

	ErrInvalidOrExpiredOTP = errors.New("invalid or expired OTP")
	ErrOTPNotVerified      = errors.New("OTP has not been verified")

	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeWeakPassword = "WEAK_PASSWORD"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewValidationError(err error) *AppError {
	return NewAppError(CodeValidation, "Invalid input", err)
}
