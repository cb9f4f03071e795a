package main

import (
	"context"
	"errors"
	"gym-management/internal/config"
	"gym-management/internal/delivery/http/handler"
	"gym-management/internal/domain/event"
	"gym-management/internal/domain/otp"
	"gym-management/internal/infrastructure/cache/redis"
	"gym-management/internal/infrastructure/database/postgres"
	"gym-management/internal/infrastructure/messaging"
	"gym-management/internal/infrastructure/notification"
	"gym-management/internal/logger"
	"gym-management/internal/routes"
	"gym-management/internal/usecase/auth"
	"gym-management/pkg/mqtt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting application",
		zap.String("environment", env),
		zap.String("otp_store", cfg.OTP.Store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server exited properly")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	checks := map[string]handler.HealthCheck{"database": db.Health}

	var otpRepo otp.Repository
	switch cfg.OTP.Store {
	case config.OTPStoreRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		otpRepo = redis.NewOTPRepository(client, cfg.Redis.Prefix)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	default:
		otpRepo = postgres.NewOTPRepository(db)
	}

	var sender otp.Sender = notification.NewLogSender()
	if cfg.SMTP.Host != "" {
		sender = notification.NewEmailSender(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set, OTP emails will only be logged")
	}

	var (
		publisher event.Publisher = messaging.NopPublisher{}
		async     *messaging.AsyncPublisher
	)
	if cfg.MQTT.Broker != "" {
		client := mqtt.NewClient(&mqtt.Config{
			Broker:               cfg.MQTT.Broker,
			ClientID:             cfg.MQTT.ClientID,
			Username:             cfg.MQTT.Username,
			Password:             cfg.MQTT.Password,
			CleanSession:         true,
			KeepAlive:            30,
			ConnectTimeout:       10,
			AutoReconnect:        true,
			MaxReconnectInterval: time.Minute,
		})
		if err := client.Connect(); err != nil {
			logger.Warn("MQTT broker unavailable, auth events disabled", zap.Error(err))
		} else {
			defer client.Disconnect()
			async = messaging.NewAsyncPublisher(
				messaging.NewMQTTPublisher(client, cfg.MQTT.EventsTopic, cfg.MQTT.QoS),
				messaging.DefaultQueueSize,
			)
			publisher = async
		}
	}

	userRepo := postgres.NewUserRepository(db)
	authService := auth.NewService(userRepo, otpRepo, sender, publisher, cfg)

	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, auth.AdminSeed{
			Email:    cfg.Admin.Email,
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
			Phone:    cfg.Admin.Phone,
		}); err != nil {
			return err
		}
	}

	router := routes.SetupRoutes(ctx, cfg, routes.Dependencies{
		AuthService:  authService,
		UserRepo:     userRepo,
		HealthChecks: checks,
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		authService.StartOTPSweepJob(gctx, cfg.OTP.SweepInterval)
		return nil
	})

	if async != nil {
		g.Go(func() error {
			async.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
