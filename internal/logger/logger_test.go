package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersBeforeInitAreNoop(t *testing.T) {
	current.Store(nil)

	assert.NotPanics(t, func() {
		Info("not initialised", zap.String("k", "v"))
		WithRequestID("req-1").Warn("still fine")
		Sync()
	})
}

func TestSetRoutesHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { current.Store(nil) })

	Info("otp issued", zap.String("event", "otp_issued"))
	WithRequestID("req-42").Error("boom")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "otp issued", entries[0].Message)
		assert.Equal(t, "otp_issued", entries[0].ContextMap()["event"])
		assert.Equal(t, "req-42", entries[1].ContextMap()["request_id"])
	}
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { current.Store(nil) })

	assert.NoError(t, Init("production"))
	assert.NotNil(t, L())
}
