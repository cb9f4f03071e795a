package postgres

import (
	"context"
	"errors"
	"fmt"
	"gym-management/internal/domain/otp"
	"gym-management/internal/infrastructure/database/postgres/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPRepository implements otp.Repository on the otps table.
type OTPRepository struct {
	db *DB
}

func NewOTPRepository(db *DB) otp.Repository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) Create(ctx context.Context, o *otp.OTP) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	dbModel := toOTPModel(o)
	if err := r.db.DB.WithContext(ctx).Create(dbModel).Error; err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}

	o.ID = dbModel.ID
	return nil
}

func (r *OTPRepository) FindLatest(ctx context.Context, email, code string, verified bool, notBefore time.Time) (*otp.OTP, error) {
	var dbModel models.OTPModel
	err := r.db.DB.WithContext(ctx).
		Where("email = ? AND code = ? AND verified = ? AND created_at > ?", email, code, verified, notBefore).
		Order("created_at DESC").
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, otp.ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}

	return toOTPEntity(&dbModel), nil
}

func (r *OTPRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.OTPModel{}).
		Where("id = ?", id).
		Update("verified", true)

	if result.Error != nil {
		return fmt.Errorf("failed to mark otp verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return otp.ErrOTPNotFound
	}

	return nil
}

func (r *OTPRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	result := r.db.DB.WithContext(ctx).Where("email = ?", email).Delete(&models.OTPModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete otps: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *OTPRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.OTPModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep otps: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func toOTPModel(o *otp.OTP) *models.OTPModel {
	return &models.OTPModel{
		ID:        o.ID,
		Email:     o.Email,
		Code:      o.Code,
		Verified:  o.Verified,
		CreatedAt: o.CreatedAt,
	}
}

func toOTPEntity(m *models.OTPModel) *otp.OTP {
	return &otp.OTP{
		ID:        m.ID,
		Email:     m.Email,
		Code:      m.Code,
		Verified:  m.Verified,
		CreatedAt: m.CreatedAt,
	}
}
