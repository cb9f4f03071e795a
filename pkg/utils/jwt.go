package utils

import (
	"errors"
	"fmt"
	"time"

	appErrors "gym-management/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed assertion carried by both access and refresh tokens.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// TokenSettings holds the secrets and lifetimes used to sign a token pair.
// Access and refresh tokens are signed with different secrets so one can
// never be presented in place of the other.
type TokenSettings struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func GenerateToken(userID uuid.UUID, secret string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("signing secret is empty")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

func GenerateTokenPair(userID uuid.UUID, settings TokenSettings) (*TokenPair, error) {
	accessToken, accessExpiresAt, err := GenerateToken(userID, settings.AccessSecret, settings.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	refreshToken, _, err := GenerateToken(userID, settings.RefreshSecret, settings.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExpiresAt.Unix(),
	}, nil
}

// ValidateToken returns ErrTokenExpired for a well-signed token past its
// expiry and ErrTokenInvalid for everything else.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.ErrTokenExpired
		}
		return nil, appErrors.ErrTokenInvalid
	}

	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, appErrors.ErrTokenInvalid
	}

	return claims, nil
}
