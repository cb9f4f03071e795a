package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"gym-management/internal/config"
	"gym-management/internal/domain/event"
	domainOTP "gym-management/internal/domain/otp"
	domainUser "gym-management/internal/domain/user"
	"gym-management/internal/logger"
	appErrors "gym-management/pkg/errors"
	"gym-management/pkg/utils"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements the authentication and credential recovery use cases
type Service struct {
	userRepo  domainUser.Repository
	otpRepo   domainOTP.Repository
	otpSender domainOTP.Sender
	events    event.Publisher
	tokens    utils.TokenSettings
	exposeOTP bool
	resetKey  []byte
	now       func() time.Time
}

// NewService creates a new auth service
func NewService(
	userRepo domainUser.Repository,
	otpRepo domainOTP.Repository,
	otpSender domainOTP.Sender,
	events event.Publisher,
	cfg *config.Config,
) *Service {
	return &Service{
		userRepo:  userRepo,
		otpRepo:   otpRepo,
		otpSender: otpSender,
		events:    events,
		tokens: utils.TokenSettings{
			AccessSecret:  cfg.JWT.Secret,
			RefreshSecret: cfg.JWT.RefreshSecret,
			AccessTTL:     cfg.JWT.Expiry,
			RefreshTTL:    cfg.JWT.RefreshExpiry,
		},
		exposeOTP: cfg.ExposeOTP(),
		resetKey:  []byte(cfg.JWT.Secret),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeLoginTiming spends one bcrypt comparison so a missing account costs
// the same as a wrong password.
func equalizeLoginTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = utils.HashPassword("Dummy-Passw0rd!")
	})
	utils.CheckPassword(dummyHash, password)
}

// Register creates a member account. Staff roles are granted afterwards by
// an admin through UpdateRole.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.normalize()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err)
	}

	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeWeakPassword, err.Error(), nil)
	}

	email := req.Email
	username := req.Username

	if err := s.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	if req.AssignedCoachID != nil {
		if err := s.ensureCoach(ctx, *req.AssignedCoachID); err != nil {
			return nil, err
		}
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	packageType := domainUser.PackageBasic
	if req.PackageType != "" {
		packageType = domainUser.PackageType(req.PackageType)
	}

	now := s.now()
	membershipEnd := packageType.MembershipEnd(now)

	user := &domainUser.User{
		Username:            username,
		Email:               email,
		PasswordHashed:      hashedPassword,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		PhoneNumber:         req.PhoneNumber,
		NICNumber:           req.NICNumber,
		Address:             req.Address,
		HeightCM:            req.HeightCM,
		WeightKG:            req.WeightKG,
		PackageType:         packageType,
		Role:                domainUser.RoleMember,
		Status:              domainUser.StatusActive,
		MembershipStartDate: now,
		MembershipEndDate:   &membershipEnd,
		AssignedCoachID:     req.AssignedCoachID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domainUser.ErrUserAlreadyExists) {
			logger.Warn("Registration rejected by unique constraint",
				zap.String("email", email),
				zap.String("event", "registration_failed_duplicate"),
			)
			return nil, appErrors.ErrUserAlreadyExists
		}
		logger.Error("Failed to create user", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	tokenPair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
		zap.String("event", "user_registered"),
	)
	s.publish(ctx, event.New(event.UserRegistered, user.ID, user.Email))

	return &AuthResponse{
		User:         ToUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt,
	}, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err)
	}

	identifier := utils.SanitizeIdentifier(req.identifier())

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			equalizeLoginTiming(req.Password)
			logger.Warn("Login attempt with unknown identifier",
				zap.String("identifier", identifier),
				zap.String("event", "login_failed_unknown_identifier"),
			)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHashed, req.Password) {
		logger.Warn("Login attempt with invalid password",
			zap.String("user_id", user.ID.String()),
			zap.String("event", "login_failed_invalid_password"),
		)
		return nil, appErrors.ErrInvalidCredentials
	}

	if !user.IsActive() {
		logger.Warn("Login attempt for inactive user",
			zap.String("user_id", user.ID.String()),
			zap.String("status", string(user.Status)),
			zap.String("event", "login_failed_inactive_user"),
		)
		return nil, appErrors.ErrAccountNotActive
	}

	tokenPair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("event", "login_success"),
	)
	s.publish(ctx, event.New(event.LoginSucceeded, user.ID, user.Email))

	return &AuthResponse{
		User:         ToUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt,
	}, nil
}

// RefreshToken exchanges the persisted refresh token for a new pair. The
// swap is conditional on the old token still being persisted, so of two
// concurrent refreshes with the same token exactly one succeeds.
func (s *Service) RefreshToken(ctx context.Context, req *RefreshTokenRequest) (*TokenResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err)
	}

	claims, err := utils.ValidateToken(req.RefreshToken, s.tokens.RefreshSecret)
	if err != nil {
		logger.Warn("Refresh attempt with invalid token",
			zap.Error(err),
			zap.String("event", "refresh_failed_invalid_token"),
		)
		return nil, appErrors.ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return nil, appErrors.ErrInvalidRefreshToken
		}
		return nil, err
	}

	if !user.HasRefreshToken(req.RefreshToken) {
		logger.Warn("Refresh attempt with a rotated or revoked token",
			zap.String("user_id", user.ID.String()),
			zap.String("event", "refresh_failed_token_mismatch"),
		)
		return nil, appErrors.ErrInvalidRefreshToken
	}

	if !user.IsActive() {
		return nil, appErrors.ErrAccountNotActive
	}

	tokenPair, err := utils.GenerateTokenPair(user.ID, s.tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.userRepo.RotateRefreshToken(ctx, user.ID, req.RefreshToken, tokenPair.RefreshToken); err != nil {
		if errors.Is(err, domainUser.ErrRefreshTokenMismatch) {
			logger.Warn("Concurrent refresh lost the rotation",
				zap.String("user_id", user.ID.String()),
				zap.String("event", "refresh_failed_concurrent_rotation"),
			)
			return nil, appErrors.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	logger.Info("Refresh token rotated",
		zap.String("user_id", user.ID.String()),
		zap.String("event", "token_refreshed"),
	)
	s.publish(ctx, event.New(event.TokenRefreshed, user.ID, ""))

	return &TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt,
	}, nil
}

// Logout clears the persisted refresh token. Calling it again is a no-op.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return nil
		}
		logger.Error("Failed to clear refresh token", zap.String("user_id", userID.String()), zap.Error(err))
		return err
	}

	logger.Info("User logged out",
		zap.String("user_id", userID.String()),
		zap.String("event", "logout"),
	)
	s.publish(ctx, event.New(event.LoggedOut, userID, ""))

	return nil
}

func (s *Service) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err)
	}

	email := utils.SanitizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			logger.Info("Password reset requested for non-existent email",
				zap.String("email", email),
				zap.String("event", "password_reset_requested_non_existent_email"),
			)
		}
		return nil, err
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &domainOTP.OTP{
		Email:     email,
		Code:      code,
		CreatedAt: now,
	}
	if err := s.otpRepo.Create(ctx, record); err != nil {
		logger.Error("Failed to store otp", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if err := s.userRepo.SetPasswordReset(ctx, user.ID, s.resetMarker(email, code), now.Add(domainOTP.RetentionWindow)); err != nil {
		logger.Error("Failed to record password reset request", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, err
	}

	if err := s.otpSender.SendOTP(ctx, email, code); err != nil {
		logger.Error("Failed to deliver otp",
			zap.String("user_id", user.ID.String()),
			zap.String("event", "otp_delivery_failed"),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Info("Password reset otp issued",
		zap.String("user_id", user.ID.String()),
		zap.String("otp_id", record.ID.String()),
		zap.String("event", "password_reset_otp_issued"),
	)
	s.publish(ctx, event.New(event.PasswordResetRequested, user.ID, email))

	resp := &ForgotPasswordResponse{}
	if s.exposeOTP {
		resp.OTP = code
	}
	return resp, nil
}

func (s *Service) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return appErrors.NewValidationError(err)
	}

	email := utils.SanitizeEmail(req.Email)

	record, err := s.otpRepo.FindLatest(ctx, email, req.OTP, false, domainOTP.Cutoff(s.now()))
	if err != nil {
		if errors.Is(err, domainOTP.ErrOTPNotFound) {
			logger.Warn("OTP verification failed",
				zap.String("email", email),
				zap.String("event", "otp_verification_failed"),
			)
			return appErrors.ErrInvalidOrExpiredOTP
		}
		return err
	}

	if err := s.otpRepo.MarkVerified(ctx, record.ID); err != nil {
		if errors.Is(err, domainOTP.ErrOTPNotFound) {
			return appErrors.ErrInvalidOrExpiredOTP
		}
		return err
	}

	logger.Info("OTP verified",
		zap.String("email", email),
		zap.String("otp_id", record.ID.String()),
		zap.String("event", "otp_verified"),
	)
	s.publish(ctx, event.New(event.OTPVerified, uuid.Nil, email))

	return nil
}

// ResetPassword consumes a verified code. Every code for the email is
// deleted afterwards and every session of the user ends.
func (s *Service) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return appErrors.NewValidationError(err)
	}

	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return appErrors.NewAppError(appErrors.CodeWeakPassword, err.Error(), nil)
	}

	email := utils.SanitizeEmail(req.Email)

	if _, err := s.otpRepo.FindLatest(ctx, email, req.OTP, true, domainOTP.Cutoff(s.now())); err != nil {
		if errors.Is(err, domainOTP.ErrOTPNotFound) {
			logger.Warn("Password reset without a verified otp",
				zap.String("email", email),
				zap.String("event", "password_reset_failed_unverified_otp"),
			)
			return appErrors.ErrOTPNotVerified
		}
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return err
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, nil); err != nil {
		logger.Error("Failed to revoke sessions after password reset",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return err
	}

	deleted, err := s.otpRepo.DeleteByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to delete otps after password reset",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return err
	}

	logger.Info("Password reset successfully",
		zap.String("user_id", user.ID.String()),
		zap.Int64("otps_deleted", deleted),
		zap.String("event", "password_reset_success"),
	)
	s.publish(ctx, event.New(event.PasswordReset, user.ID, email))

	return nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return ToUserResponse(user), nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return appErrors.NewValidationError(err)
	}

	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return appErrors.NewAppError(appErrors.CodeWeakPassword, err.Error(), nil)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !utils.CheckPassword(user.PasswordHashed, req.CurrentPassword) {
		logger.Warn("Password change attempt with invalid current password",
			zap.String("user_id", user.ID.String()),
			zap.String("event", "password_change_failed_invalid_current_password"),
		)
		return appErrors.ErrInvalidCredentials
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return err
	}

	logger.Info("Password changed successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("event", "password_change_success"),
	)
	s.publish(ctx, event.New(event.PasswordChanged, user.ID, user.Email))

	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*UserResponse, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, ToUserResponse(user))
	}

	return responses, nil
}

// UpdateStatus changes an account's status. Leaving the active state also
// revokes the persisted refresh token.
func (s *Service) UpdateStatus(ctx context.Context, userID uuid.UUID, req *UpdateStatusRequest) (*UserResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err)
	}

	status := domainUser.Status(req.Status)
	if !status.Valid() {
		return nil, appErrors.ErrInvalidStatus
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		return nil, err
	}

	if status != domainUser.StatusActive {
		if err := s.userRepo.UpdateRefreshToken(ctx, userID, nil); err != nil {
			return nil, err
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	logger.Info("User status changed",
		zap.String("user_id", userID.String()),
		zap.String("status", string(status)),
		zap.String("event", "status_changed"),
	)
	evt := event.New(event.StatusChanged, userID, user.Email)
	evt.Metadata = map[string]string{"status": string(status)}
	s.publish(ctx, evt)

	return ToUserResponse(user), nil
}

// UpdateRole moves an account between member and the staff roles. The
// admin role is only ever created by EnsureAdmin.
func (s *Service) UpdateRole(ctx context.Context, userID uuid.UUID, req *UpdateRoleRequest) (*UserResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err)
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == domainUser.RoleAdmin {
		return nil, appErrors.ErrInsufficientPermissions
	}

	role := domainUser.Role(req.Role)
	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	target.Role = role

	logger.Info("User role changed",
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
		zap.String("event", "role_changed"),
	)
	evt := event.New(event.RoleChanged, userID, target.Email)
	evt.Metadata = map[string]string{"role": string(role)}
	s.publish(ctx, evt)

	return ToUserResponse(target), nil
}

// startSession issues a token pair and overwrites the persisted refresh
// token, ending any previous session.
func (s *Service) startSession(ctx context.Context, user *domainUser.User) (*utils.TokenPair, error) {
	tokenPair, err := utils.GenerateTokenPair(user.ID, s.tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, &tokenPair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	user.RefreshToken = &tokenPair.RefreshToken

	return tokenPair, nil
}

func (s *Service) findByIdentifier(ctx context.Context, identifier string) (*domainUser.User, error) {
	if utils.IsEmailIdentifier(identifier) {
		return s.userRepo.GetByEmail(ctx, identifier)
	}
	return s.userRepo.GetByUsername(ctx, identifier)
}

func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		logger.Warn("Registration attempt with existing email",
			zap.String("email", email),
			zap.String("event", "registration_failed_duplicate_email"),
		)
		return appErrors.ErrUserAlreadyExists
	} else if !errors.Is(err, domainUser.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		logger.Warn("Registration attempt with existing username",
			zap.String("username", username),
			zap.String("event", "registration_failed_duplicate_username"),
		)
		return appErrors.ErrUserAlreadyExists
	} else if !errors.Is(err, domainUser.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	return nil
}

func (s *Service) ensureCoach(ctx context.Context, coachID uuid.UUID) error {
	coach, err := s.userRepo.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, domainUser.ErrUserNotFound) {
			return appErrors.ErrInvalidCoach
		}
		return fmt.Errorf("failed to load coach: %w", err)
	}
	if coach.Role != domainUser.RoleCoach {
		return appErrors.ErrInvalidCoach
	}
	return nil
}

// publish logs and drops publisher errors.
func (s *Service) publish(ctx context.Context, evt event.AuthEvent) {
	if err := s.events.Publish(ctx, evt); err != nil {
		logger.Warn("Failed to publish auth event",
			zap.String("type", string(evt.Type)),
			zap.Error(err),
		)
	}
}

// resetMarker records which code was issued without storing it. The code
// space is small, so the digest is keyed.
func (s *Service) resetMarker(email, code string) string {
	mac := hmac.New(sha256.New, s.resetKey)
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := utils.SanitizeText(*s)
	return &v
}
