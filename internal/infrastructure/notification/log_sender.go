package notification

import (
	"context"
	"gym-management/internal/logger"

	"go.uber.org/zap"
)

// LogSender stands in for SMTP when no mail host is configured. The code
// itself is never logged.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (LogSender) SendOTP(_ context.Context, email, _ string) error {
	logger.Info("OTP delivery skipped, SMTP not configured",
		zap.String("event", "otp_delivery_skipped"),
		zap.String("email", email),
	)
	return nil
}
