package middleware

import (
	"errors"
	"gym-management/internal/domain/user"
	"gym-management/internal/logger"
	appErrors "gym-management/pkg/errors"
	"gym-management/pkg/utils"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
	ContextUser   = "user"
)

// AuthMiddleware authenticates bearer access tokens and loads the caller.
// Only active accounts pass.
func AuthMiddleware(secret string, userRepo user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, appErrors.ErrTokenExpired) {
				message = "Token has expired"
			}
			utils.ErrorResponse(c, http.StatusUnauthorized, message)
			c.Abort()
			return
		}

		u, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				utils.ErrorResponse(c, http.StatusUnauthorized, "User no longer exists")
				c.Abort()
				return
			}
			logger.WithRequestID(GetRequestID(c)).Error("Failed to load authenticated user",
				zap.String("user_id", claims.UserID.String()),
				zap.Error(err),
			)
			utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
			c.Abort()
			return
		}

		if !u.IsActive() {
			utils.ErrorResponse(c, http.StatusForbidden, appErrors.ErrAccountNotActive.Error())
			c.Abort()
			return
		}

		c.Set(ContextUserID, u.ID)
		c.Set(ContextRole, u.Role)
		c.Set(ContextUser, u)

		c.Next()
	}
}

// GetUserID returns the authenticated caller's id.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
