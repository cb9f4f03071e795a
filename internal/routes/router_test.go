package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"gym-management/internal/config"
	"gym-management/internal/delivery/http/handler"
	"gym-management/internal/domain/user"
	"gym-management/internal/testutil"
	"gym-management/internal/usecase/auth"
	"gym-management/pkg/utils"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	users  *testutil.UserRepository
	sender *testutil.RecordingSender
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		JWT: config.JWTConfig{
			Secret:        "access-secret",
			RefreshSecret: "refresh-secret",
			Expiry:        time.Hour,
			RefreshExpiry: 24 * time.Hour,
		},
		OTP: config.OTPConfig{ExposeInResponse: true},
		RateLimit: config.RateLimitConfig{
			GeneralRPS:   1000,
			GeneralBurst: 1000,
			AuthRPS:      1000,
			AuthBurst:    1000,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
			AllowedMethods: []string{"GET", "POST", "PATCH"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
	}
}

func newTestServer(t *testing.T, checks map[string]handler.HealthCheck) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), checks)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, checks map[string]handler.HealthCheck) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	users := testutil.NewUserRepository()
	sender := &testutil.RecordingSender{}
	svc := auth.NewService(users, testutil.NewOTPRepository(), sender, &testutil.RecordingPublisher{}, cfg)

	return &testServer{
		router: SetupRoutes(ctx, cfg, Dependencies{AuthService: svc, UserRepo: users, HealthChecks: checks}),
		users:  users,
		sender: sender,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func registration(email, username string) map[string]interface{} {
	return map[string]interface{}{
		"username":     username,
		"email":        email,
		"password":     "Secret1!",
		"firstName":    "Ada",
		"lastName":     "Lovelace",
		"mobileNumber": "+94771234567",
	}
}

func (s *testServer) login(t *testing.T, identifier, password string) (int, auth.AuthResponse) {
	t.Helper()

	w, env := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": identifier, "password": password}, "")
	var resp auth.AuthResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(env.Data, &resp))
	}
	return w.Code, resp
}

func TestRegisterThenMe(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "Secret1!")

	var registered auth.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	assert.Equal(t, "member", registered.User.Role)
	assert.Equal(t, "active", registered.User.Status)
	assert.NotEmpty(t, registered.AccessToken)

	code, session := s.login(t, "ada@gym.test", "Secret1!")
	require.Equal(t, http.StatusOK, code)

	w, env = s.do(t, http.MethodGet, "/api/auth/me", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User auth.UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, registered.User.ID, me.User.ID)
	assert.Equal(t, "ada", me.User.Username)
	assert.Equal(t, "ada@gym.test", me.User.Email)

	code, byUsername := s.login(t, "ada", "Secret1!")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, registered.User.ID, byUsername.User.ID)
}

func TestRegisterConflictAndValidation(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "other"), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)

	weak := registration("bob@gym.test", "bob")
	weak["password"] = "short"
	w, _ = s.do(t, http.MethodPost, "/api/auth/register", weak, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterIgnoresRequestedRole(t *testing.T) {
	s := newTestServer(t, nil)

	body := registration("ada@gym.test", "ada")
	body["role"] = "coach"
	w, env := s.do(t, http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered auth.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	assert.Equal(t, "member", registered.User.Role)

	stored, err := s.users.GetByEmail(context.Background(), "ada@gym.test")
	require.NoError(t, err)
	assert.Equal(t, user.RoleMember, stored.Role)
}

func TestMultibytePasswordOverByteLimit(t *testing.T) {
	s := newTestServer(t, nil)
	long := "Aa1!" + strings.Repeat("é", 68)

	body := registration("ada@gym.test", "ada")
	body["password"] = long
	w, env := s.do(t, http.MethodPost, "/api/auth/register", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.False(t, env.Success)

	w, _ = s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)
	_, session := s.login(t, "ada@gym.test", "Secret1!")

	w, _ = s.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": "Secret1!",
		"newPassword":     long,
	}, session.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email":       "ada@gym.test",
		"otp":         "123456",
		"newPassword": long,
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func loginFrom(s *testServer, forwardedFor string) int {
	raw, _ := json.Marshal(map[string]string{"identifier": "ghost@gym.test", "password": "Wrong1!x"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Code
}

func TestAuthRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.AuthRPS = 0.001
	cfg.RateLimit.AuthBurst = 2
	s := newTestServerWithConfig(t, cfg, nil)

	codes := map[int]int{}
	for i := 0; i < 10; i++ {
		codes[loginFrom(s, fmt.Sprintf("203.0.113.%d", i+1))]++
	}

	assert.Equal(t, 2, codes[http.StatusUnauthorized])
	assert.Equal(t, 8, codes[http.StatusTooManyRequests])
}

func TestAuthRateLimitHonoursTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.AuthRPS = 0.001
	cfg.RateLimit.AuthBurst = 1
	// httptest requests arrive from 192.0.2.1.
	cfg.Server.TrustedProxies = []string{"192.0.2.1"}
	s := newTestServerWithConfig(t, cfg, nil)

	assert.Equal(t, http.StatusUnauthorized, loginFrom(s, "203.0.113.1"))
	assert.Equal(t, http.StatusUnauthorized, loginFrom(s, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(s, "203.0.113.2"))
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t, nil)
	w, _ := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)

	code, _ := s.login(t, "ada@gym.test", "Wrong1!x")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.login(t, "nobody@gym.test", "Secret1!")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header required", env.Message)

	w, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordRecoveryFlow(t *testing.T) {
	s := newTestServer(t, nil)
	w, _ := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ada@gym.test"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var issued auth.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	require.Len(t, issued.OTP, 6)
	assert.Equal(t, s.sender.Last("ada@gym.test"), issued.OTP)

	w, _ = s.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "ada@gym.test", "otp": "000000x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "ada@gym.test", "otp": issued.OTP}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email":       "ada@gym.test",
		"otp":         issued.OTP,
		"newPassword": "Fresh2@pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code, _ := s.login(t, "ada@gym.test", "Secret1!")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.login(t, "ada@gym.test", "Fresh2@pass")
	assert.Equal(t, http.StatusOK, code)

	// The code is consumed by the reset.
	w, _ = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email":       "ada@gym.test",
		"otp":         issued.OTP,
		"newPassword": "Third3#pass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	s := newTestServer(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@gym.test"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	s := newTestServer(t, nil)
	w, _ := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)

	_, session := s.login(t, "ada@gym.test", "Secret1!")

	const callers = 8
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, _ := json.Marshal(map[string]string{"refreshToken": session.RefreshToken})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusUnauthorized, code)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	w, _ := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)
	_, session := s.login(t, "ada@gym.test", "Secret1!")

	w, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": session.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func seedAdmin(t *testing.T, users *testutil.UserRepository) {
	t.Helper()

	hash, err := utils.HashPassword("Admin1!pass")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &user.User{
		Username:            "root",
		Email:               "root@gym.test",
		PasswordHashed:      hash,
		FirstName:           "Root",
		LastName:            "Admin",
		PhoneNumber:         "+94770000000",
		PackageType:         user.PackageBasic,
		Role:                user.RoleAdmin,
		Status:              user.StatusActive,
		MembershipStartDate: time.Now().UTC(),
	}))
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	seedAdmin(t, s.users)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", registration("ada@gym.test", "ada"), "")
	require.Equal(t, http.StatusCreated, w.Code)
	var member auth.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &member))

	w, _ = s.do(t, http.MethodGet, "/api/admin/users", nil, member.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	code, admin := s.login(t, "root@gym.test", "Admin1!pass")
	require.Equal(t, http.StatusOK, code)

	w, env = s.do(t, http.MethodGet, "/api/admin/users", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []auth.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 2)

	w, _ = s.do(t, http.MethodPatch, "/api/admin/users/not-a-uuid/status", map[string]string{"status": "suspended"}, admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/admin/users/"+member.User.ID.String()+"/status",
		map[string]string{"status": "suspended"}, admin.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A suspended account keeps a signed token but is refused everywhere.
	w, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, member.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	code, _ = s.login(t, "ada@gym.test", "Secret1!")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAdminGrantsStaffRole(t *testing.T) {
	s := newTestServer(t, nil)
	seedAdmin(t, s.users)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", registration("coach@gym.test", "coach_kim"), "")
	require.Equal(t, http.StatusCreated, w.Code)
	var member auth.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &member))

	path := "/api/admin/users/" + member.User.ID.String() + "/role"

	w, _ = s.do(t, http.MethodPatch, path, map[string]string{"role": "coach"}, member.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, admin := s.login(t, "root@gym.test", "Admin1!pass")

	w, _ = s.do(t, http.MethodPatch, path, map[string]string{"role": "admin"}, admin.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPatch, path, map[string]string{"role": "coach"}, admin.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated auth.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "coach", updated.Role)

	w, _ = s.do(t, http.MethodPatch, "/api/admin/users/"+admin.User.ID.String()+"/role",
		map[string]string{"role": "member"}, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		w, _ := s.do(t, http.MethodGet, "/health", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("degraded", func(t *testing.T) {
		s := newTestServer(t, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		w, _ := s.do(t, http.MethodGet, "/health", nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
