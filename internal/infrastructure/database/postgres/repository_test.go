package postgres

import (
	"errors"
	"fmt"
	"gym-management/internal/domain/user"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestUserModelRoundTrip(t *testing.T) {
	nic := "200012345678"
	token := "refresh"
	coach := uuid.New()
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	u := &user.User{
		ID:                  uuid.New(),
		Username:            "jane_doe",
		Email:               "jane@example.com",
		PasswordHashed:      "hash",
		FirstName:           "Jane",
		LastName:            "Doe",
		PhoneNumber:         "+94771234567",
		NICNumber:           &nic,
		PackageType:         user.PackageStandard,
		Role:                user.RoleMember,
		Status:              user.StatusSuspended,
		MembershipStartDate: end.AddDate(0, -3, 0),
		MembershipEndDate:   &end,
		AssignedCoachID:     &coach,
		RefreshToken:        &token,
	}

	m := toUserModel(u)
	assert.Equal(t, "standard", m.PackageType)
	assert.Equal(t, "suspended", m.Status)

	assert.Equal(t, u, toUserEntity(m))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isDuplicateKey(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isDuplicateKey(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.False(t, isDuplicateKey(errors.New("connection refused")))
}
