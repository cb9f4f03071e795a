package handler

import (
	"errors"
	"fmt"
	"gym-management/internal/logger"
	"gym-management/internal/middleware"
	appErrors "gym-management/pkg/errors"
	"gym-management/pkg/utils"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func respondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, appErrors.ErrUserAlreadyExists):
		utils.ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErrors.ErrInvalidCredentials),
		errors.Is(err, appErrors.ErrInvalidRefreshToken),
		errors.Is(err, appErrors.ErrTokenInvalid),
		errors.Is(err, appErrors.ErrTokenExpired),
		errors.Is(err, appErrors.ErrUnauthorized):
		utils.ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, appErrors.ErrAccountNotActive),
		errors.Is(err, appErrors.ErrInsufficientPermissions):
		utils.ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, appErrors.ErrUserNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErrors.ErrInvalidOrExpiredOTP),
		errors.Is(err, appErrors.ErrOTPNotVerified),
		errors.Is(err, appErrors.ErrInvalidCoach),
		errors.Is(err, appErrors.ErrInvalidStatus):
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) {
			utils.ErrorResponse(c, http.StatusBadRequest, appErrorMessage(appErr))
			return
		}

		logger.WithRequestID(middleware.GetRequestID(c)).Error("Internal server error",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// appErrorMessage names the offending fields of a validation failure.
func appErrorMessage(appErr *appErrors.AppError) string {
	var validationErrs validator.ValidationErrors
	if appErr.Code != appErrors.CodeValidation || !errors.As(appErr.Err, &validationErrs) {
		return appErr.Message
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return appErr.Message + ": " + strings.Join(fields, ", ")
}
