package auth

import (
	"time"

	domainUser "gym-management/internal/domain/user"
	"gym-management/pkg/utils"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username        string     `json:"username" validate:"required,username"`
	Email           string     `json:"email" validate:"required,email,max=255"`
	Password        string     `json:"password" validate:"required,min=8,max=72"`
	FirstName       string     `json:"firstName" validate:"required,min=1,max=50"`
	LastName        string     `json:"lastName" validate:"required,min=1,max=50"`
	PhoneNumber     string     `json:"mobileNumber" validate:"required,phone"`
	NICNumber       *string    `json:"nicNumber" validate:"omitempty,nic"`
	Address         *string    `json:"address" validate:"omitempty,max=200"`
	HeightCM        *float64   `json:"height" validate:"omitempty,gt=0,lte=300"`
	WeightKG        *float64   `json:"weight" validate:"omitempty,gt=0,lte=500"`
	PackageType     string     `json:"packageType" validate:"omitempty,oneof=basic standard premium"`
	AssignedCoachID *uuid.UUID `json:"assignedCoach"`
}

// normalize sanitizes the request in place so the length rules apply to
// the values that are stored.
func (r *RegisterRequest) normalize() {
	r.Username = utils.SanitizeIdentifier(r.Username)
	r.Email = utils.SanitizeEmail(r.Email)
	r.FirstName = utils.SanitizeString(r.FirstName)
	r.LastName = utils.SanitizeString(r.LastName)
	r.PhoneNumber = utils.SanitizePhone(r.PhoneNumber)
	r.Address = sanitizeOptional(r.Address)
}

// LoginRequest accepts either identifier (email or username) or the legacy
// email field.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required_without=Email,max=255"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required"`
}

func (r *LoginRequest) identifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Email
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordResponse carries the code only when exposure is enabled
// outside production.
type ForgotPasswordResponse struct {
	OTP string `json:"otp,omitempty"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp_code"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,otp_code"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

// UpdateRoleRequest grants or revokes a staff role. Admin is never
// assignable over HTTP.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=member coach trainer"`
}

type UserResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	PhoneNumber         string     `json:"mobileNumber"`
	NICNumber           *string    `json:"nicNumber,omitempty"`
	Address             *string    `json:"address,omitempty"`
	HeightCM            *float64   `json:"height,omitempty"`
	WeightKG            *float64   `json:"weight,omitempty"`
	PackageType         string     `json:"packageType"`
	Role                string     `json:"role"`
	Status              string     `json:"status"`
	MembershipStartDate time.Time  `json:"membershipStartDate"`
	MembershipEndDate   *time.Time `json:"membershipEndDate,omitempty"`
	AssignedCoachID     *uuid.UUID `json:"assignedCoach,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

type AuthResponse struct {
	User         *UserResponse `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresAt    int64         `json:"expiresAt"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

func ToUserResponse(u *domainUser.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		PhoneNumber:         u.PhoneNumber,
		NICNumber:           u.NICNumber,
		Address:             u.Address,
		HeightCM:            u.HeightCM,
		WeightKG:            u.WeightKG,
		PackageType:         string(u.PackageType),
		Role:                string(u.Role),
		Status:              string(u.Status),
		MembershipStartDate: u.MembershipStartDate,
		MembershipEndDate:   u.MembershipEndDate,
		AssignedCoachID:     u.AssignedCoachID,
		CreatedAt:           u.CreatedAt,
	}
}
