package notification

import (
	"bytes"
	"context"
	"errors"
	"gym-management/internal/logger"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestEmailSender_SendOTP(t *testing.T) {
	dialer := &fakeDialer{}
	sender := &EmailSender{from: "noreply@gym.example", dialer: dialer}

	require.NoError(t, sender.SendOTP(context.Background(), "member@example.com", "482913"))
	require.Len(t, dialer.sent, 1)

	m := dialer.sent[0]
	assert.Equal(t, []string{"member@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"noreply@gym.example"}, m.GetHeader("From"))
	assert.Equal(t, []string{otpSubject}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "482913")
}

func TestEmailSender_DialFailure(t *testing.T) {
	sender := &EmailSender{from: "noreply@gym.example", dialer: &fakeDialer{err: errors.New("connection refused")}}

	err := sender.SendOTP(context.Background(), "member@example.com", "482913")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmailSender_CancelledContext(t *testing.T) {
	dialer := &fakeDialer{}
	sender := &EmailSender{dialer: dialer}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sender.SendOTP(ctx, "member@example.com", "482913"), context.Canceled)
	assert.Empty(t, dialer.sent)
}

func TestLogSender_DoesNotLogCode(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	require.NoError(t, NewLogSender().SendOTP(context.Background(), "member@example.com", "482913"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "member@example.com", entries[0].ContextMap()["email"])
	for _, v := range entries[0].ContextMap() {
		assert.NotEqual(t, "482913", v)
	}
}
