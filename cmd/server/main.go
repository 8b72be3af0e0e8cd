package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lexpertease/docs" // swagger docs
	"lexpertease/internal/auth"
	"lexpertease/internal/cache"
	"lexpertease/internal/config"
	"lexpertease/internal/db"
	"lexpertease/internal/handler"
	"lexpertease/internal/logging"
	"lexpertease/internal/mailer"
	"lexpertease/internal/router"
	"lexpertease/internal/service"
	"lexpertease/internal/telemetry"
)

const (
	serviceName     = "lexpertease"
	shutdownTimeout = 15 * time.Second
)

// @title LexpertEase Account API
// @version 1.0
// @description Account service for the LexpertEase site: signup, login, token refresh, profile and password management over a tRPC-compatible wire format.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}

	store, err := db.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		// The denylist fails open; logout still revokes refresh sessions.
		logger.Warn("redis unavailable, access-token denylist disabled until it recovers", slog.Any("error", err))
	}

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret,
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	tokenStore := auth.NewTokenStore(cacheClient)
	sender := mailer.NewSMTPMailer(cfg.SMTP, logger)

	// Initialize services
	authService := service.NewAuthService(service.AuthDeps{
		Users:          store.Users(),
		Sessions:       store.Sessions(),
		PasswordResets: store.PasswordResets(),
		JWT:            jwtService,
		Tokens:         tokenStore,
		Mailer:         sender,
		Logger:         logger,
		AppURL:         cfg.AppURL,
		ResetTTL:       cfg.ResetTokenTTL,
	})
	userService := service.NewUserService(store.Users(), logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Register routes
	router.Register(e, cfg, router.Dependencies{
		Logger:   logger,
		JWT:      jwtService,
		Tokens:   tokenStore,
		Users:    store.Users(),
		Metrics:  telemetry.NewMetrics(reg),
		Gatherer: reg,
		Health: map[string]router.Pinger{
			"database": store,
			"redis":    cacheClient,
		},
	},
		handler.NewAuthHandler(authService, logger),
		handler.NewAdminHandler(userService, sender, logger),
	)

	addr := ":" + cfg.ServerPort
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", addr),
			slog.String("env", cfg.AppEnv),
			slog.String("db_driver", cfg.DBDriver),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server start: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	authService.Wait()
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("database close", slog.Any("error", err))
	}
	if err := cacheClient.Close(); err != nil {
		logger.Error("redis close", slog.Any("error", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", slog.Any("error", err))
	}
	return nil
}
