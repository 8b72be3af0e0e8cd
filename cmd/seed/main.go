package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"lexpertease/internal/auth"
	"lexpertease/internal/config"
	"lexpertease/internal/db"
	"lexpertease/internal/logging"
	"lexpertease/internal/model"
	"lexpertease/internal/repository"
)

// The admin role has no self-service path; this command creates an admin
// account or promotes an existing one.
func main() {
	var (
		email     = flag.String("email", "", "admin email (required)")
		password  = flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "password for a new account (defaults to $SEED_ADMIN_PASSWORD)")
		firstName = flag.String("first-name", "Site", "first name for a new account")
		lastName  = flag.String("last-name", "Admin", "last name for a new account")
		phone     = flag.String("phone", "+10000000000", "phone for a new account")
	)
	flag.Parse()

	if err := run(*email, *password, *firstName, *lastName, *phone); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(email, password, firstName, lastName, phone string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("-email is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	store, err := db.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer store.Close(ctx)

	users := store.Users()
	existing, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == model.RoleAdmin {
			logger.Info("user is already an admin", slog.String("user_id", existing.ID))
			return nil
		}
		if _, err := users.UpdateRole(ctx, existing.ID, model.RoleAdmin); err != nil {
			return fmt.Errorf("promote user: %w", err)
		}
		logger.Info("user promoted to admin", slog.String("user_id", existing.ID))
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("find user: %w", err)
	}

	if len(password) < 8 {
		return errors.New("a password of at least 8 characters is required to create an account")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &model.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsVerified:   true,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("admin account created", slog.String("user_id", user.ID))
	return nil
}
