package user

import (
	"errors"

	appErrors "gym-management/pkg/errors"
)

var (
	ErrUserNotFound      = appErrors.ErrUserNotFound
	ErrUserAlreadyExists = appErrors.ErrUserAlreadyExists

	// ErrRefreshTokenMismatch is returned by a conditional rotation when the
	// persisted token no longer equals the expected one.
	ErrRefreshTokenMismatch = errors.New("persisted refresh token does not match")
)
