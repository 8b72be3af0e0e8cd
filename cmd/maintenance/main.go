package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lexpertease/internal/config"
	"lexpertease/internal/db"
	"lexpertease/internal/logging"
	"lexpertease/internal/repository"
)

// maintenance deletes expired sessions and spent or expired reset tokens.
// MongoDB does this itself through TTL indexes; SQL backends need this run
// on a schedule.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "maintenance: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := db.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer store.Close(ctx)

	return purge(ctx, store, time.Now(), logger)
}

func purge(ctx context.Context, store repository.Store, now time.Time, logger *slog.Logger) error {
	sessions, err := store.Sessions().PurgeExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	resets, err := store.PasswordResets().PurgeExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("purge password resets: %w", err)
	}
	logger.Info("purge complete",
		slog.Int64("sessions_deleted", sessions),
		slog.Int64("password_resets_deleted", resets),
	)
	return nil
}
