package utils

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	PasswordMinLength = 8
	// PasswordMaxBytes is bcrypt's input limit, counted in bytes.
	PasswordMaxBytes = 72
)

// BcryptCost is lowered by tests; production keeps the library default.
var BcryptCost = bcrypt.DefaultCost

var ErrWeakPassword = errors.New("password must be at least 8 characters and contain uppercase, " +
	"lowercase, number and special symbol")

var ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(bytes), err
}

func CheckPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

func ValidatePassword(password string) error {
	var hasUpper, hasLower, hasNumber, hasSpecial bool

	if len(password) < PasswordMinLength {
		return ErrWeakPassword
	}
	if len(password) > PasswordMaxBytes {
		return ErrPasswordTooLong
	}

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower || !hasNumber || !hasSpecial {
		return ErrWeakPassword
	}

	return nil
}
