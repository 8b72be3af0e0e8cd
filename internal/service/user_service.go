package service

import (
	"context"
	"errors"
	"log/slog"

	apperrors "lexpertease/internal/errors"
	"lexpertease/internal/model"
	"lexpertease/internal/repository"
	"lexpertease/internal/telemetry"
)

// UserService exposes administrative user operations.
type UserService interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	// SetRole changes the role of userID. Admins cannot change their own role.
	SetRole(ctx context.Context, actorID, userID string, role model.Role) (*model.User, error)
}

type userService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService builds a UserService over repo.
func NewUserService(repo repository.UserRepository, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{repo: repo, logger: logger}
}

func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(MsgUserNotFound)
		}
		return nil, apperrors.Database("Failed to get user", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Database("Failed to list users", err)
	}
	return users, nil
}

func (s *userService) SetRole(ctx context.Context, actorID, userID string, role model.Role) (user *model.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "admin.set_role")
	defer func() { telemetry.EndSpan(span, err) }()

	if !role.Valid() {
		return nil, apperrors.Validation("Invalid role", map[string]string{"role": "Role must be client or admin"})
	}
	if actorID == userID {
		return nil, apperrors.Forbidden("You cannot change your own role")
	}

	user, err = s.repo.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(MsgUserNotFound)
		}
		return nil, apperrors.Database("Failed to update role", err)
	}

	s.logger.InfoContext(ctx, "user role changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	return user, nil
}
