package postgres

import (
	"context"
	"errors"
	"fmt"
	"gym-management/internal/domain/user"
	"gym-management/internal/infrastructure/database/postgres/models"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

// UserRepository implements domain.User.Repository interface
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	dbModel := toUserModel(u)
	if err := r.db.DB.WithContext(ctx).Create(dbModel).Error; err != nil {
		if isDuplicateKey(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = dbModel.ID
	u.CreatedAt = dbModel.CreatedAt
	u.UpdatedAt = dbModel.UpdatedAt

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return r.getOne(ctx, "id = ?", userID)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*user.User, error) {
	var dbModel models.UserModel
	err := r.db.DB.WithContext(ctx).Where(query, arg).First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toUserEntity(&dbModel), nil
}

func (r *UserRepository) GetAll(ctx context.Context) ([]*user.User, error) {
	var dbModels []models.UserModel
	err := r.db.DB.WithContext(ctx).Order("created_at DESC").Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	users := make([]*user.User, len(dbModels))
	for i := range dbModels {
		users[i] = toUserEntity(&dbModels[i])
	}

	return users, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.update(ctx, userID, "password", map[string]interface{}{
		"password_hashed":           passwordHash,
		"password_reset_token_hash": nil,
		"password_reset_expires_at": nil,
	})
}

func (r *UserRepository) UpdateStatus(ctx context.Context, userID uuid.UUID, status user.Status) error {
	return r.update(ctx, userID, "status", map[string]interface{}{
		"status": string(status),
	})
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role user.Role) error {
	return r.update(ctx, userID, "role", map[string]interface{}{
		"role": string(role),
	})
}

func (r *UserRepository) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error {
	return r.update(ctx, userID, "refresh token", map[string]interface{}{
		"refresh_token": token,
	})
}

func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string) error {
	result := r.db.DB.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ? AND refresh_token = ?", userID, oldToken).
		Updates(map[string]interface{}{
			"refresh_token": newToken,
			"updated_at":    time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrRefreshTokenMismatch
	}

	return nil
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.update(ctx, userID, "password reset", map[string]interface{}{
		"password_reset_token_hash": tokenHash,
		"password_reset_expires_at": expiresAt,
	})
}

func (r *UserRepository) update(ctx context.Context, userID uuid.UUID, what string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()

	result := r.db.DB.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", userID).
		Updates(fields)

	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", what, result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

// Helper functions to convert between domain entities and database models

func toUserModel(u *user.User) *models.UserModel {
	return &models.UserModel{
		ID:                     u.ID,
		Username:               u.Username,
		Email:                  u.Email,
		PasswordHashed:         u.PasswordHashed,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		PhoneNumber:            u.PhoneNumber,
		NICNumber:              u.NICNumber,
		Address:                u.Address,
		HeightCM:               u.HeightCM,
		WeightKG:               u.WeightKG,
		PackageType:            string(u.PackageType),
		Role:                   string(u.Role),
		Status:                 string(u.Status),
		MembershipStartDate:    u.MembershipStartDate,
		MembershipEndDate:      u.MembershipEndDate,
		AssignedCoachID:        u.AssignedCoachID,
		RefreshToken:           u.RefreshToken,
		PasswordResetTokenHash: u.PasswordResetTokenHash,
		PasswordResetExpiresAt: u.PasswordResetExpiresAt,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
	}
}

func toUserEntity(m *models.UserModel) *user.User {
	return &user.User{
		ID:                     m.ID,
		Username:               m.Username,
		Email:                  m.Email,
		PasswordHashed:         m.PasswordHashed,
		FirstName:              m.FirstName,
		LastName:               m.LastName,
		PhoneNumber:            m.PhoneNumber,
		NICNumber:              m.NICNumber,
		Address:                m.Address,
		HeightCM:               m.HeightCM,
		WeightKG:               m.WeightKG,
		PackageType:            user.PackageType(m.PackageType),
		Role:                   user.Role(m.Role),
		Status:                 user.Status(m.Status),
		MembershipStartDate:    m.MembershipStartDate,
		MembershipEndDate:      m.MembershipEndDate,
		AssignedCoachID:        m.AssignedCoachID,
		RefreshToken:           m.RefreshToken,
		PasswordResetTokenHash: m.PasswordResetTokenHash,
		PasswordResetExpiresAt: m.PasswordResetExpiresAt,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}
