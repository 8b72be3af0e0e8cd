package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"lexpertease/internal/auth"
	apperrors "lexpertease/internal/errors"
	"lexpertease/internal/mailer"
	"lexpertease/internal/model"
	"lexpertease/internal/repository"
	"lexpertease/internal/telemetry"
)

const (
	// DefaultResetTokenExpiry is how long a password reset token stays usable.
	DefaultResetTokenExpiry = 15 * time.Minute
	defaultMailTimeout      = 30 * time.Second
)

// Caller-visible messages. Login failures share one message whether or not
// the account exists.
const (
	MsgEmailTaken          = "Email address is already registered"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgInvalidRefreshToken = "Invalid or expired refresh token"
	MsgUserNotFound        = "User not found"
	MsgWrongPassword       = "Current password is incorrect"
	MsgInvalidResetToken   = "Invalid or expired password reset token"
)

// SignupInput carries the validated signup fields.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// ClientInfo describes the device a session is issued to.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// TokenPair is an access token and the refresh token that renews it.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User *model.User
	TokenPair
}

// AuthService handles authentication operations.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput, client ClientInfo) (*AuthResult, error)
	Login(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error)
	// Logout revokes refreshToken, or every refresh session of the user when
	// it is empty. A non-nil access token is denylisted until it expires.
	Logout(ctx context.Context, userID, refreshToken string, access *auth.Claims) error
	RefreshToken(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error)
	Me(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (*model.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	// Wait blocks until in-flight reset emails have been handed off.
	Wait()
}

// AuthDeps wires an AuthService.
type AuthDeps struct {
	Users          repository.UserRepository
	Sessions       repository.SessionRepository
	PasswordResets repository.PasswordResetRepository
	JWT            *auth.JWTService
	Tokens         auth.TokenStoreInterface
	Mailer         mailer.Sender
	Logger         *slog.Logger
	// AppURL is the public site the reset link points at.
	AppURL      string
	ResetTTL    time.Duration
	MailTimeout time.Duration
	Now         func() time.Time
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	resets   repository.PasswordResetRepository
	jwt      *auth.JWTService
	tokens   auth.TokenStoreInterface
	mailer   mailer.Sender
	logger   *slog.Logger

	appURL      string
	resetTTL    time.Duration
	mailTimeout time.Duration
	now         func() time.Time

	mailWG sync.WaitGroup
}

// NewAuthService creates a new authentication service.
func NewAuthService(d AuthDeps) AuthService {
	s := &authService{
		users:       d.Users,
		sessions:    d.Sessions,
		resets:      d.PasswordResets,
		jwt:         d.JWT,
		tokens:      d.Tokens,
		mailer:      d.Mailer,
		logger:      d.Logger,
		appURL:      d.AppURL,
		resetTTL:    d.ResetTTL,
		mailTimeout: d.MailTimeout,
		now:         d.Now,
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTokenExpiry
	}
	if s.mailTimeout <= 0 {
		s.mailTimeout = defaultMailTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a new client account and signs it in.
func (s *authService) Signup(ctx context.Context, in SignupInput, client ClientInfo) (res *AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.signup")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Failed to create user account"
	email := NormalizeEmail(in.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.Auth(MsgEmailTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Database(failMsg, err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal(failMsg, err)
	}

	user := &model.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         model.RoleClient,
		// Email verification is not implemented; accounts start verified.
		IsVerified: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Auth(MsgEmailTaken)
		}
		return nil, apperrors.Database(failMsg, err)
	}

	pair, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, wrapDB(failMsg, err)
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID))
	return &AuthResult{User: user, TokenPair: *pair}, nil
}

// Login authenticates a user and returns a new token pair.
func (s *authService) Login(ctx context.Context, email, password string, client ClientInfo) (res *AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Login failed"

	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.BurnCompare(password)
			return nil, apperrors.Auth(MsgInvalidCredentials)
		}
		return nil, apperrors.Database(failMsg, err)
	}

	if !auth.ComparePassword(user.PasswordHash, password) {
		return nil, apperrors.Auth(MsgInvalidCredentials)
	}

	// one refresh session per user: a new login ends the previous ones
	if err := s.sessions.RevokeAll(ctx, user.ID, model.SessionRefresh); err != nil {
		return nil, apperrors.Database(failMsg, err)
	}

	pair, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, wrapDB(failMsg, err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, TokenPair: *pair}, nil
}

// Logout revokes one or all refresh sessions of the user.
func (s *authService) Logout(ctx context.Context, userID, refreshToken string, access *auth.Claims) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.logout")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Logout failed"

	if refreshToken != "" {
		err = s.sessions.Revoke(ctx, userID, refreshToken, model.SessionRefresh)
	} else {
		err = s.sessions.RevokeAll(ctx, userID, model.SessionRefresh)
	}
	if err != nil {
		return apperrors.Database(failMsg, err)
	}

	if access != nil && s.tokens != nil {
		if err := s.tokens.BlacklistAccessToken(ctx, access.ID, s.jwt.RemainingTTL(access)); err != nil {
			s.logger.WarnContext(ctx, "failed to denylist access token", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// new pair is issued. A token can be rotated at most once.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string, client ClientInfo) (pair *TokenPair, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.refresh_token")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Token refresh failed"

	claims, err := s.jwt.ValidateToken(refreshToken)
	if err != nil || claims.Type != model.SessionRefresh {
		return nil, apperrors.Auth(MsgInvalidRefreshToken)
	}

	session, err := s.sessions.Consume(ctx, refreshToken, model.SessionRefresh, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Auth(MsgInvalidRefreshToken)
		}
		return nil, apperrors.Database(failMsg, err)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Auth(MsgUserNotFound)
		}
		return nil, apperrors.Database(failMsg, err)
	}

	if client.UserAgent == "" {
		client.UserAgent = session.UserAgent
	}
	pair, err = s.issue(ctx, user, client)
	if err != nil {
		return nil, wrapDB(failMsg, err)
	}
	return pair, nil
}

// Me returns the current user.
func (s *authService) Me(ctx context.Context, userID string) (user *model.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.me")
	defer func() { telemetry.EndSpan(span, err) }()

	user, err = s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Auth(MsgUserNotFound)
		}
		return nil, apperrors.Database("Failed to get user information", err)
	}
	return user, nil
}

// UpdateProfile applies a partial profile update.
func (s *authService) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (user *model.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.update_profile")
	defer func() { telemetry.EndSpan(span, err) }()

	patch = trimPatch(patch)
	user, err = s.users.UpdateProfile(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Auth(MsgUserNotFound)
		}
		return nil, apperrors.Database("Failed to update profile", err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one and
// signs the user out everywhere.
func (s *authService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.change_password")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Failed to change password"

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Auth(MsgUserNotFound)
		}
		return apperrors.Database(failMsg, err)
	}

	if !auth.ComparePassword(user.PasswordHash, currentPassword) {
		return apperrors.Auth(MsgWrongPassword)
	}

	if err := s.setPassword(ctx, user.ID, newPassword, failMsg); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	return nil
}

// ForgotPassword issues a reset token and emails it. The outcome is the
// same whether or not the address belongs to an account; only storage
// failures are returned, and callers are expected to hide them too.
func (s *authService) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.forgot_password")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Failed to process password reset request"
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.Database(failMsg, err)
	}

	token, err := auth.NewResetToken()
	if err != nil {
		return apperrors.Internal(failMsg, err)
	}

	if err := s.resets.InvalidateForUser(ctx, user.ID); err != nil {
		return apperrors.Database(failMsg, err)
	}

	reset := &model.PasswordReset{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return apperrors.Database(failMsg, err)
	}

	msg, err := mailer.PasswordResetMessage(s.appURL, user.Email, token, s.resetTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to render password reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}
	s.dispatch(ctx, user.ID, msg)
	return nil
}

// ResetPassword redeems a reset token, sets the new password and signs the
// user out everywhere.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.reset_password")
	defer func() { telemetry.EndSpan(span, err) }()

	const failMsg = "Failed to reset password"

	reset, err := s.resets.Consume(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Auth(MsgInvalidResetToken)
		}
		return apperrors.Database(failMsg, err)
	}

	if _, err := s.users.FindByID(ctx, reset.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Auth(MsgUserNotFound)
		}
		return apperrors.Database(failMsg, err)
	}

	if err := s.setPassword(ctx, reset.UserID, newPassword, failMsg); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", reset.UserID))
	return nil
}

func (s *authService) Wait() {
	s.mailWG.Wait()
}

// issue mints a token pair and persists the refresh session.
func (s *authService) issue(ctx context.Context, user *model.User, client ClientInfo) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal("generate access token", err)
	}
	_, refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.Internal("generate refresh token", err)
	}

	session := &model.Session{
		UserID:    user.ID,
		Token:     refresh,
		Type:      model.SessionRefresh,
		ExpiresAt: s.now().Add(s.jwt.RefreshTTL()),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return &TokenPair{Token: access, RefreshToken: refresh}, nil
}

// setPassword stores a new hash and revokes every refresh session.
func (s *authService) setPassword(ctx context.Context, userID, password, failMsg string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperrors.Internal(failMsg, err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Auth(MsgUserNotFound)
		}
		return apperrors.Database(failMsg, err)
	}
	if err := s.sessions.RevokeAll(ctx, userID, model.SessionRefresh); err != nil {
		return apperrors.Database(failMsg, err)
	}
	return nil
}

// dispatch hands msg to the mailer off the request path. Failures are
// logged and never reach the caller.
func (s *authService) dispatch(ctx context.Context, userID string, msg mailer.Message) {
	if s.mailer == nil {
		s.logger.WarnContext(ctx, "no mailer configured, password reset email dropped", slog.String("user_id", userID))
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		defer cancel()
		if err := s.mailer.Send(sendCtx, msg); err != nil {
			s.logger.ErrorContext(sendCtx, "failed to send password reset email", slog.String("user_id", userID), slog.Any("error", err))
			return
		}
		s.logger.InfoContext(sendCtx, "password reset email sent", slog.String("user_id", userID))
	}()
}

// wrapDB keeps typed errors and classifies the rest as storage failures.
func wrapDB(msg string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Database(msg, err)
}

func trimPatch(p model.ProfilePatch) model.ProfilePatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	return model.ProfilePatch{
		FirstName: trim(p.FirstName),
		LastName:  trim(p.LastName),
		Phone:     trim(p.Phone),
	}
}
