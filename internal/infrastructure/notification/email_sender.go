package notification

import (
	"context"
	"fmt"
	"gym-management/internal/config"
	"gym-management/internal/domain/otp"

	"gopkg.in/gomail.v2"
)

const otpSubject = "Your password reset code"

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers OTP codes over SMTP.
type EmailSender struct {
	from   string
	dialer mailDialer
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *EmailSender) SendOTP(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", otpSubject)
	m.SetBody("text/plain", otpText(code))
	m.AddAlternative("text/html", otpHTML(code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}
	return nil
}

func otpText(code string) string {
	return fmt.Sprintf(
		"Your password reset code is %s.\nIt expires in %d minutes. If you did not request a reset, ignore this email.\n",
		code, int(otp.RetentionWindow.Minutes()),
	)
}

func otpHTML(code string) string {
	return fmt.Sprintf(
		"<p>Your password reset code is <strong>%s</strong>.</p><p>It expires in %d minutes. If you did not request a reset, ignore this email.</p>",
		code, int(otp.RetentionWindow.Minutes()),
	)
}
