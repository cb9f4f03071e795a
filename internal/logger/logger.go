package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggers struct {
	base *zap.Logger
	// wrapped skips one frame so the package helpers report their caller.
	wrapped *zap.Logger
}

var current atomic.Pointer[loggers]

var nop = &loggers{base: zap.NewNop(), wrapped: zap.NewNop()}

func Init(environment string) error {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"

	built, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	Set(built)
	return nil
}

// Set replaces the process logger. Tests use it to install an observer.
func Set(l *zap.Logger) {
	current.Store(&loggers{base: l, wrapped: l.WithOptions(zap.AddCallerSkip(1))})
	zap.ReplaceGlobals(l)
}

func load() *loggers {
	if l := current.Load(); l != nil {
		return l
	}
	return nop
}

// L returns the process logger, or a no-op logger before Init.
func L() *zap.Logger {
	return load().base
}

func Sync() {
	_ = load().base.Sync()
}

func WithRequestID(requestID string) *zap.Logger {
	return L().With(zap.String("request_id", requestID))
}

func Debug(msg string, fields ...zap.Field) {
	load().wrapped.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	load().wrapped.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	load().wrapped.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	load().wrapped.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	load().wrapped.Fatal(msg, fields...)
}
