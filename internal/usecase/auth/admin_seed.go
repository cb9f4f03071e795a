package auth

import (
	"context"
	"errors"
	"fmt"
	domainUser "gym-management/internal/domain/user"
	"gym-management/internal/logger"
	appErrors "gym-management/pkg/errors"
	"gym-management/pkg/utils"

	"go.uber.org/zap"
)

var ErrAdminSeedConflict = errors.New("admin seed email belongs to a non-admin account")

// AdminSeed is the bootstrap administrator created at startup.
type AdminSeed struct {
	Email    string `validate:"required,email,max=255"`
	Username string `validate:"required,username"`
	Password string `validate:"required"`
	Phone    string `validate:"omitempty,phone"`
}

// EnsureAdmin creates the bootstrap administrator unless an admin with the
// same email already exists. Existing accounts are never modified.
func (s *Service) EnsureAdmin(ctx context.Context, seed AdminSeed) error {
	seed.Email = utils.SanitizeEmail(seed.Email)
	seed.Username = utils.SanitizeIdentifier(seed.Username)
	seed.Phone = utils.SanitizePhone(seed.Phone)

	if err := utils.ValidateStruct(&seed); err != nil {
		return appErrors.NewValidationError(err)
	}
	if err := utils.ValidatePassword(seed.Password); err != nil {
		return appErrors.NewAppError(appErrors.CodeWeakPassword, err.Error(), nil)
	}

	existing, err := s.userRepo.GetByEmail(ctx, seed.Email)
	if err == nil {
		if existing.Role != domainUser.RoleAdmin {
			return ErrAdminSeedConflict
		}
		logger.Info("Admin account already present",
			zap.String("user_id", existing.ID.String()),
		)
		return nil
	}
	if !errors.Is(err, domainUser.ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hashedPassword, err := utils.HashPassword(seed.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	admin := &domainUser.User{
		Username:            seed.Username,
		Email:               seed.Email,
		PasswordHashed:      hashedPassword,
		FirstName:           "Gym",
		LastName:            "Administrator",
		PhoneNumber:         seed.Phone,
		PackageType:         domainUser.PackageBasic,
		Role:                domainUser.RoleAdmin,
		Status:              domainUser.StatusActive,
		MembershipStartDate: now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, domainUser.ErrUserAlreadyExists) {
			return appErrors.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	logger.Info("Admin account created",
		zap.String("user_id", admin.ID.String()),
		zap.String("email", admin.Email),
		zap.String("event", "admin_seeded"),
	)
	return nil
}
