package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"lexpertease/internal/model"
)

type gormStore struct {
	db             *gorm.DB
	users          UserRepository
	sessions       SessionRepository
	passwordResets PasswordResetRepository
}

// NewGormStore builds a Store over a SQL database opened with GORM.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:             db,
		users:          NewUserRepository(db),
		sessions:       NewSessionRepository(db),
		passwordResets: NewPasswordResetRepository(db),
	}
}

// AutoMigrate creates or updates the tables backing the store.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Session{}, &model.PasswordReset{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (s *gormStore) Users() UserRepository                   { return s.users }
func (s *gormStore) Sessions() SessionRepository             { return s.sessions }
func (s *gormStore) PasswordResets() PasswordResetRepository { return s.passwordResets }

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *gormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateGormError maps driver errors onto the package sentinels.
func translateGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// isUniqueConstraintError catches drivers that bypass gorm's error translation.
func isUniqueConstraintError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Duplicate entry") ||
		strings.Contains(s, "duplicate key") ||
		strings.Contains(s, "unique constraint")
}
