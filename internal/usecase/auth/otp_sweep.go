package auth

import (
	"context"
	domainOTP "gym-management/internal/domain/otp"
	"gym-management/internal/logger"
	"time"

	"go.uber.org/zap"
)

// StartOTPSweepJob deletes OTPs older than the retention window every
// interval until ctx is cancelled.
func (s *Service) StartOTPSweepJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("OTP sweep job started",
		zap.Duration("interval", interval),
		zap.Duration("retention", domainOTP.RetentionWindow),
	)

	s.sweepExpiredOTPs(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("OTP sweep job stopped")
			return
		case <-ticker.C:
			s.sweepExpiredOTPs(ctx)
		}
	}
}

func (s *Service) sweepExpiredOTPs(ctx context.Context) {
	cutoff := domainOTP.Cutoff(s.now())

	deleted, err := s.otpRepo.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("Failed to sweep expired otps", zap.Error(err), zap.String("event", "otp_sweep_failed"))
		return
	}

	logger.Debug("Expired otps swept",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
		zap.String("event", "otp_sweep"),
	)
}
