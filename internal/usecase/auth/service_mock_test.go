package auth

import (
	"context"
	"errors"
	"gym-management/internal/domain/user"
	"gym-management/internal/domain/user/mocks"
	"gym-management/internal/testutil"
	appErrors "gym-management/pkg/errors"
	"gym-management/pkg/utils"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockedService(t *testing.T) (*Service, *mocks.MockRepository) {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	svc := NewService(repo, testutil.NewOTPRepository(), &testutil.RecordingSender{}, &testutil.RecordingPublisher{}, testConfig())
	return svc, repo
}

func TestLogin_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	svc, repo := newMockedService(t)
	dbErr := errors.New("connection reset")

	repo.EXPECT().GetByEmail(gomock.Any(), "a@x.com").Return(nil, dbErr)

	_, err := svc.Login(context.Background(), &LoginRequest{Identifier: "a@x.com", Password: "Secret1!"})
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestRefreshToken_LostRotationIsInvalidRefreshToken(t *testing.T) {
	svc, repo := newMockedService(t)
	userID := uuid.New()

	token, _, err := utils.GenerateToken(userID, "refresh-secret", svc.tokens.RefreshTTL)
	require.NoError(t, err)

	repo.EXPECT().GetByID(gomock.Any(), userID).Return(&user.User{
		ID:           userID,
		Status:       user.StatusActive,
		RefreshToken: &token,
	}, nil)
	repo.EXPECT().RotateRefreshToken(gomock.Any(), userID, token, gomock.Any()).Return(user.ErrRefreshTokenMismatch)

	_, err = svc.RefreshToken(context.Background(), &RefreshTokenRequest{RefreshToken: token})
	assert.ErrorIs(t, err, appErrors.ErrInvalidRefreshToken)
}

func TestRegister_UniqueViolationOnCreate(t *testing.T) {
	svc, repo := newMockedService(t)

	repo.EXPECT().GetByEmail(gomock.Any(), "a@x.com").Return(nil, user.ErrUserNotFound)
	repo.EXPECT().GetByUsername(gomock.Any(), "ada").Return(nil, user.ErrUserNotFound)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(user.ErrUserAlreadyExists)

	_, err := svc.Register(context.Background(), validRegistration("a@x.com", "ada"))
	assert.ErrorIs(t, err, appErrors.ErrUserAlreadyExists)
}

func TestRegister_SessionPersistFailure(t *testing.T) {
	svc, repo := newMockedService(t)

	repo.EXPECT().GetByEmail(gomock.Any(), "a@x.com").Return(nil, user.ErrUserNotFound)
	repo.EXPECT().GetByUsername(gomock.Any(), "ada").Return(nil, user.ErrUserNotFound)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *user.User) error {
		u.ID = uuid.New()
		return nil
	})
	repo.EXPECT().UpdateRefreshToken(gomock.Any(), gomock.Any(), gomock.Not(gomock.Nil())).Return(errors.New("timeout"))

	_, err := svc.Register(context.Background(), validRegistration("a@x.com", "ada"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store refresh token")
}
